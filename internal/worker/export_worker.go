// Package worker consumes ledger events and mirrors payments to the
// spreadsheet export.
package worker

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/amqp"
	"backoffice/internal/cache"
	"backoffice/internal/core"
	"backoffice/internal/ledger"
	"backoffice/internal/log"
	"backoffice/internal/sheets"
)

// ClientNames resolves a client id to its display name.
type ClientNames interface {
	GetClient(ctx context.Context, id core.ID) (core.Client, error)
}

// ExportWorker appends one spreadsheet row per recorded payment. Message
// ids already exported are remembered so redeliveries do not duplicate rows.
type ExportWorker struct {
	exporter sheets.PaymentExporter
	clients  ClientNames
	seen     *cache.LRU[struct{}]
	logger   *log.Logger
}

// DefaultSeenTTL bounds how long exported message ids are remembered.
const DefaultSeenTTL = 24 * time.Hour

func NewExportWorker(exporter sheets.PaymentExporter, clients ClientNames, seen *cache.LRU[struct{}]) *ExportWorker {
	if seen == nil {
		seen = cache.NewLRU[struct{}](10000, DefaultSeenTTL)
	}
	return &ExportWorker{
		exporter: exporter,
		clients:  clients,
		seen:     seen,
		logger:   log.Default().WithComponent(log.ComponentWorker),
	}
}

// Handle exports payment.recorded events and ignores every other type.
func (w *ExportWorker) Handle(ctx context.Context, msg *amqp.LedgerMessage) error {
	if msg.Type != ledger.EventPaymentRecorded {
		w.logger.DebugContext(ctx, "Ignoring ledger event",
			log.FieldEventType, msg.Type, log.FieldTaskID, msg.TaskID)
		return nil
	}
	if msg.MessageID != "" {
		if _, dup := w.seen.Get(msg.MessageID); dup {
			w.logger.InfoContext(ctx, "Skipping already exported payment",
				log.FieldTaskID, msg.TaskID, "message_id", msg.MessageID)
			return nil
		}
	}

	row := sheets.PaymentRow{
		MessageID: msg.MessageID,
		TaskID:    msg.TaskID,
		ClientID:  msg.ClientID,
		TaskTitle: msg.Title,
		Amount:    msg.Amount,
		Paid:      msg.Paid,
		Cost:      msg.Cost,
		At:        msg.At,
	}
	if w.clients != nil && msg.ClientID != "" {
		if c, err := w.clients.GetClient(ctx, msg.ClientID); err == nil {
			row.ClientName = c.Name
		} else {
			// The export still goes out with a blank name column.
			w.logger.WarnContext(ctx, "Client lookup failed for export",
				log.FieldClientID, msg.ClientID, log.FieldError, err)
		}
	}

	ref, err := w.exporter.AppendPayment(ctx, row)
	if err != nil {
		return fmt.Errorf("export payment for task %s: %w", msg.TaskID, err)
	}
	if msg.MessageID != "" {
		w.seen.Set(msg.MessageID, struct{}{})
	}
	w.logger.InfoContext(ctx, "Payment exported",
		log.FieldTaskID, msg.TaskID, log.FieldAmountCents, msg.Amount.Cents, "ref", ref)
	return nil
}

// Prime remembers the message ids already present in the export for year,
// so a restart does not re-export redelivered messages.
func (w *ExportWorker) Prime(ctx context.Context, lister sheets.PaymentLister, year int) (int, error) {
	rows, err := lister.ListPayments(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("list exported payments: %w", err)
	}
	n := 0
	for _, r := range rows {
		if r.MessageID == "" {
			continue
		}
		w.seen.Set(r.MessageID, struct{}{})
		n++
	}
	w.logger.InfoContext(ctx, "Export worker primed", "known_messages", n, "year", year)
	return n, nil
}
