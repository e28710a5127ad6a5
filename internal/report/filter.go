package report

import (
	"strings"

	"backoffice/internal/core"
)

// TaskFilter narrows rows for listings and the dashboard. Zero fields match
// everything.
type TaskFilter struct {
	Query    string
	ClientID core.ID
	Status   core.Status
	Priority core.Priority
	PayState string
	Window   Range
}

// matchesPayState accepts the dashboard vocabulary (paid, unpaid, partial)
// as well as the classification names.
func matchesPayState(r Row, state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "", "all":
		return true
	case "paid", string(PayFull):
		return r.Task.Cost.Cents > 0 && r.Remaining.Cents == 0
	case "unpaid", string(PayNone):
		return r.Paid.Cents == 0
	case string(PayPartial):
		return r.Paid.Cents > 0 && r.Remaining.Cents > 0
	default:
		return false
	}
}

func (f TaskFilter) Match(r Row) bool {
	if f.ClientID != "" && r.Task.ClientID != f.ClientID {
		return false
	}
	if f.Status != "" && r.Task.Status.Normalized() != f.Status.Normalized() {
		return false
	}
	if f.Priority != "" && r.Task.Priority != f.Priority {
		return false
	}
	if !matchesPayState(r, f.PayState) {
		return false
	}
	if !f.Window.ContainsDue(r.Due, r.HasDue) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hay := strings.ToLower(r.Task.Title + "\n" + r.Task.Description + "\n" + r.ClientName)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

// Filter returns the matching rows in their original order.
func Filter(rows []Row, f TaskFilter) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}
