// Package report turns clients and tasks into dashboard view models. All
// functions are pure: they take the current time explicitly and never touch
// storage.
package report

import (
	"time"

	"backoffice/internal/core"
)

type PayState string

const (
	PayFull    PayState = "full"
	PayPartial PayState = "partial"
	PayNone    PayState = "none"
)

// EffectivePaid reconciles the explicit paid field with the payment log,
// taking the larger of the two and capping it at cost.
func EffectivePaid(t core.Task) core.Money {
	paid := core.MaxMoney(t.Paid, t.PaymentsTotal())
	return core.MaxMoney(core.MinMoney(t.Cost, paid), core.Money{})
}

func Remaining(t core.Task) core.Money {
	return core.MaxMoney(t.Cost.Sub(EffectivePaid(t)), core.Money{})
}

// Classify reports full only for tasks that cost something.
func Classify(t core.Task) PayState {
	paid := EffectivePaid(t)
	remaining := Remaining(t)
	switch {
	case remaining.Cents == 0 && t.Cost.Cents > 0:
		return PayFull
	case paid.Cents > 0 && remaining.Cents > 0:
		return PayPartial
	default:
		return PayNone
	}
}

// Row is a task joined with its client and derived balance.
type Row struct {
	Task       core.Task
	ClientName string
	Orphaned   bool
	Paid       core.Money
	Remaining  core.Money
	State      PayState
	Due        time.Time
	HasDue     bool
}

// LastPaymentAt returns the time of the most recent log entry.
func (r Row) LastPaymentAt() (time.Time, bool) {
	if n := len(r.Task.Payments); n > 0 {
		return r.Task.Payments[n-1].At, true
	}
	return time.Time{}, false
}

// Rows joins tasks with their clients in task order. Due dates are read in
// loc.
func Rows(clients []core.Client, tasks []core.Task, loc *time.Location) []Row {
	names := make(map[core.ID]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}
	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		name, ok := names[t.ClientID]
		due, hasDue := core.ParseDue(t.Date, loc)
		rows = append(rows, Row{
			Task:       t,
			ClientName: name,
			Orphaned:   !ok,
			Paid:       EffectivePaid(t),
			Remaining:  Remaining(t),
			State:      Classify(t),
			Due:        due,
			HasDue:     hasDue,
		})
	}
	return rows
}
