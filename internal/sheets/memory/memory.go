// Package memory keeps exported payment rows in process.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"backoffice/internal/sheets"
)

var (
	_ sheets.PaymentExporter = (*Store)(nil)
	_ sheets.PaymentLister   = (*Store)(nil)
)

type Store struct {
	mu   sync.Mutex
	rows []sheets.PaymentRow
}

func New() *Store { return &Store{} }

// AppendPayment stores the row and returns a synthetic row reference.
func (s *Store) AppendPayment(_ context.Context, row sheets.PaymentRow) (string, error) {
	if row.TaskID == "" || !row.Amount.IsPositive() {
		return "", errors.New("payment row needs a task id and a positive amount")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) ListPayments(_ context.Context, year int) ([]sheets.PaymentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sheets.PaymentRow
	for _, r := range s.rows {
		if r.At.Year() == year {
			out = append(out, r)
		}
	}
	return out, nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.PaymentRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.PaymentRow(nil), s.rows...)
}
