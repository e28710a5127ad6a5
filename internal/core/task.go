package core

import (
	"strings"
	"time"
)

type Status string

const (
	StatusNotStarted Status = "Δεν Ξεκίνησε"
	StatusInProgress Status = "Σε Εξέλιξη"
	StatusCompleted  Status = "Ολοκληρώθηκε"

	// statusCompletedLegacy is the spelling used by older records.
	statusCompletedLegacy Status = "Ολοκληρωμένο"
)

// Statuses lists the statuses in workflow order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted}

// ParseStatus normalizes s. Empty input maps to the default status.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.TrimSpace(s)); st {
	case "":
		return StatusNotStarted, true
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return st, true
	case statusCompletedLegacy:
		return StatusCompleted, true
	default:
		return st, false
	}
}

// Normalized folds legacy spellings; unknown values count as not started.
func (s Status) Normalized() Status {
	if st, ok := ParseStatus(string(s)); ok {
		return st
	}
	return StatusNotStarted
}

type Priority string

const (
	PriorityLow    Priority = "Χαμηλή"
	PriorityMedium Priority = "Μέτρια"
	PriorityHigh   Priority = "Υψηλή"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority normalizes p. Empty input maps to the default priority.
func ParsePriority(p string) (Priority, bool) {
	switch pr := Priority(strings.TrimSpace(p)); pr {
	case "":
		return PriorityMedium, true
	case PriorityLow, PriorityMedium, PriorityHigh:
		return pr, true
	default:
		return pr, false
	}
}

// Payment is one entry of a task's append-only payment log.
type Payment struct {
	Amount Money     `json:"amount"`
	At     time.Time `json:"at"`
}

// Task is a billable job for a client. Paid always mirrors the sum of
// Payments for records written by the ledger.
type Task struct {
	ID          ID        `json:"id"`
	ClientID    ID        `json:"clientId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Cost        Money     `json:"cost"`
	Date        string    `json:"date"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Paid        Money     `json:"paid"`
	Payments    []Payment `json:"payments"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PaymentsTotal sums the payment log.
func (t Task) PaymentsTotal() Money {
	var total Money
	for _, p := range t.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// Clone returns a copy that shares no slice memory with t.
func (t Task) Clone() Task {
	c := t
	if t.Payments != nil {
		c.Payments = make([]Payment, len(t.Payments))
		copy(c.Payments, t.Payments)
	}
	return c
}

// dueLayouts are the accepted due date encodings, most common first.
var dueLayouts = []string{"2006-01-02", time.RFC3339Nano, "2006-01-02T15:04"}

// ParseDue parses a due date string in loc. Empty or malformed input
// reports false.
func ParseDue(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// Due returns the task due date in the local zone.
func (t Task) Due() (time.Time, bool) {
	return ParseDue(t.Date, time.Local)
}

// NormalizePayments drops non-positive entries, stamps missing times with
// now and truncates the log so its total never exceeds cost.
func NormalizePayments(in []Payment, cost Money, now time.Time) []Payment {
	out := make([]Payment, 0, len(in))
	var total Money
	for _, p := range in {
		if !p.Amount.IsPositive() {
			continue
		}
		room := cost.Sub(total)
		if !room.IsPositive() {
			break
		}
		if p.Amount.Cents > room.Cents {
			p.Amount = room
		}
		if p.At.IsZero() {
			p.At = now
		}
		out = append(out, p)
		total = total.Add(p.Amount)
	}
	return out
}

func samePayments(a, b []Payment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Amount != b[i].Amount || !a[i].At.Equal(b[i].At) {
			return false
		}
	}
	return true
}

// NormalizeLegacy brings a stored record in line with the ledger rules: the
// payment log holds only positive amounts and never exceeds cost, and an
// explicit paid value above the log becomes an opening payment. Paid is
// then the log total. It reports whether t changed.
func (t *Task) NormalizeLegacy() bool {
	changed := false
	if st := t.Status.Normalized(); st != t.Status {
		t.Status = st
		changed = true
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
		changed = true
	}

	at := t.UpdatedAt
	if at.IsZero() {
		at = t.CreatedAt
	}
	payments := NormalizePayments(t.Payments, t.Cost, at)
	if !samePayments(payments, t.Payments) {
		changed = true
	}
	t.Payments = payments

	sum := t.PaymentsTotal()
	target := t.Paid.Clamp(Money{}, MaxMoney(t.Cost, Money{}))
	if target.Cents > sum.Cents {
		opening := Payment{Amount: target.Sub(sum), At: at}
		t.Payments = append([]Payment{opening}, t.Payments...)
		sum = target
		changed = true
	}
	if t.Paid != sum {
		t.Paid = sum
		changed = true
	}
	return changed
}
