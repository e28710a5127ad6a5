// Package sheets defines the spreadsheet export of recorded payments.
package sheets

import (
	"context"
	"time"

	"backoffice/internal/core"
)

// PaymentRow is one exported payment line.
type PaymentRow struct {
	MessageID  string
	TaskID     core.ID
	ClientID   core.ID
	ClientName string
	TaskTitle  string
	Amount     core.Money
	Paid       core.Money
	Cost       core.Money
	At         time.Time
}

// Ports for outbound adapters.
type (
	PaymentExporter interface {
		AppendPayment(ctx context.Context, row PaymentRow) (rowRef string, err error)
	}

	// PaymentLister reads back the rows exported for a year.
	PaymentLister interface {
		ListPayments(ctx context.Context, year int) ([]PaymentRow, error)
	}
)
