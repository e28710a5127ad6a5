package report

import (
	"fmt"
	"math"
	"sort"
	"time"

	"backoffice/internal/core"
)

// TopN caps the ranked lists on the dashboard.
const TopN = 12

type StatusCount struct {
	Status core.Status `json:"status"`
	Count  int         `json:"count"`
}

// StatusTally counts rows per status in workflow order. Legacy spellings
// count under their current status.
func StatusTally(rows []Row) []StatusCount {
	counts := make(map[core.Status]int, len(core.Statuses))
	for _, r := range rows {
		counts[r.Task.Status.Normalized()]++
	}
	out := make([]StatusCount, 0, len(core.Statuses))
	for _, st := range core.Statuses {
		out = append(out, StatusCount{Status: st, Count: counts[st]})
	}
	return out
}

type MonthFlow struct {
	Month     string     `json:"month"`
	Cost      core.Money `json:"cost"`
	Paid      core.Money `json:"paid"`
	Remaining core.Money `json:"remaining"`
}

// MonthlyFlow sums rows per YYYY-MM of the due date, falling back to the
// creation month.
func MonthlyFlow(rows []Row) []MonthFlow {
	byMonth := make(map[string]*MonthFlow)
	for _, r := range rows {
		var key string
		switch {
		case r.HasDue:
			key = r.Due.Format("2006-01")
		case !r.Task.CreatedAt.IsZero():
			key = r.Task.CreatedAt.Format("2006-01")
		default:
			continue
		}
		m, ok := byMonth[key]
		if !ok {
			m = &MonthFlow{Month: key}
			byMonth[key] = m
		}
		m.Cost = m.Cost.Add(r.Task.Cost)
		m.Paid = m.Paid.Add(r.Paid)
		m.Remaining = m.Remaining.Add(r.Remaining)
	}
	out := make([]MonthFlow, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

type WeekPayments struct {
	Week   string     `json:"week"`
	Amount core.Money `json:"amount"`
	Count  int        `json:"count"`
}

// ISOWeekKey formats t as YYYY-Www.
func ISOWeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// WeeklyPayments sums the payment log of rows per ISO week, keeping only
// payments inside window.
func WeeklyPayments(rows []Row, window Range) []WeekPayments {
	byWeek := make(map[string]*WeekPayments)
	for _, r := range rows {
		for _, p := range r.Task.Payments {
			if !window.Contains(p.At) {
				continue
			}
			key := ISOWeekKey(p.At)
			w, ok := byWeek[key]
			if !ok {
				w = &WeekPayments{Week: key}
				byWeek[key] = w
			}
			w.Amount = w.Amount.Add(p.Amount)
			w.Count++
		}
	}
	out := make([]WeekPayments, 0, len(byWeek))
	for _, w := range byWeek {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out
}

type AgingBucket struct {
	Bucket    string     `json:"bucket"`
	Count     int        `json:"count"`
	Remaining core.Money `json:"remaining"`
}

// AgingBuckets are the bucket labels in display order.
var AgingBuckets = []string{"0-7", "8-30", "31-60", "60+"}

// DaysPastDue counts calendar days from due's date to now's date, both read
// in now's location. A due date of today is 0 whatever the hour.
func DaysPastDue(due, now time.Time) int {
	dy, dm, dd := due.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	from := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / (24 * time.Hour))
}

func agingBucket(days int) string {
	switch {
	case days <= 7:
		return "0-7"
	case days <= 30:
		return "8-30"
	case days <= 60:
		return "31-60"
	default:
		return "60+"
	}
}

// Aging buckets the outstanding balance of past-due rows. Every bucket is
// present in the result, empty ones included.
func Aging(rows []Row, now time.Time) []AgingBucket {
	out := make([]AgingBucket, len(AgingBuckets))
	idx := make(map[string]int, len(AgingBuckets))
	for i, b := range AgingBuckets {
		out[i] = AgingBucket{Bucket: b}
		idx[b] = i
	}
	for _, r := range rows {
		if !r.HasDue || !r.Remaining.IsPositive() {
			continue
		}
		days := DaysPastDue(r.Due, now)
		if days <= 0 {
			continue
		}
		b := &out[idx[agingBucket(days)]]
		b.Count++
		b.Remaining = b.Remaining.Add(r.Remaining)
	}
	return out
}

type ClientTotals struct {
	ClientID   core.ID    `json:"clientId"`
	ClientName string     `json:"clientName"`
	Orphaned   bool       `json:"orphaned,omitempty"`
	Paid       core.Money `json:"paid"`
	Remaining  core.Money `json:"remaining"`
}

// ClientStack sums paid and remaining per client and keeps the n largest by
// total.
func ClientStack(rows []Row, n int) []ClientTotals {
	byClient := make(map[core.ID]*ClientTotals)
	var order []core.ID
	for _, r := range rows {
		c, ok := byClient[r.Task.ClientID]
		if !ok {
			c = &ClientTotals{ClientID: r.Task.ClientID, ClientName: r.ClientName, Orphaned: r.Orphaned}
			byClient[r.Task.ClientID] = c
			order = append(order, r.Task.ClientID)
		}
		c.Paid = c.Paid.Add(r.Paid)
		c.Remaining = c.Remaining.Add(r.Remaining)
	}
	out := make([]ClientTotals, 0, len(order))
	for _, id := range order {
		out = append(out, *byClient[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Paid.Add(out[i].Remaining).Cents > out[j].Paid.Add(out[j].Remaining).Cents
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TaskView is the flattened task shape used by dashboard lists.
type TaskView struct {
	ID            core.ID       `json:"id"`
	ClientID      core.ID       `json:"clientId"`
	ClientName    string        `json:"clientName"`
	Title         string        `json:"title"`
	Status        core.Status   `json:"status"`
	Priority      core.Priority `json:"priority"`
	Date          string        `json:"date"`
	Cost          core.Money    `json:"cost"`
	Paid          core.Money    `json:"paid"`
	Remaining     core.Money    `json:"remaining"`
	PayState      PayState      `json:"payState"`
	LastPaymentAt *time.Time    `json:"lastPaymentAt,omitempty"`
	DaysOverdue   int           `json:"daysOverdue,omitempty"`
}

func viewOf(r Row) TaskView {
	v := TaskView{
		ID:         r.Task.ID,
		ClientID:   r.Task.ClientID,
		ClientName: r.ClientName,
		Title:      r.Task.Title,
		Status:     r.Task.Status.Normalized(),
		Priority:   r.Task.Priority,
		Date:       r.Task.Date,
		Cost:       r.Task.Cost,
		Paid:       r.Paid,
		Remaining:  r.Remaining,
		PayState:   r.State,
	}
	if at, ok := r.LastPaymentAt(); ok {
		v.LastPaymentAt = &at
	}
	return v
}

// Views flattens rows for JSON output.
func Views(rows []Row) []TaskView {
	out := make([]TaskView, 0, len(rows))
	for _, r := range rows {
		out = append(out, viewOf(r))
	}
	return out
}

// UpcomingDue lists open rows due today or later, soonest first.
func UpcomingDue(rows []Row, now time.Time, n int) []TaskView {
	today := startOfDay(now)
	var due []Row
	for _, r := range rows {
		if r.HasDue && !r.Due.Before(today) && r.Remaining.IsPositive() {
			due = append(due, r)
		}
	}
	Sort(due, SortDueAsc)
	if n > 0 && len(due) > n {
		due = due[:n]
	}
	return Views(due)
}

// Overdue lists open rows due before today, oldest first.
func Overdue(rows []Row, now time.Time) []TaskView {
	today := startOfDay(now)
	var late []Row
	for _, r := range rows {
		if r.HasDue && r.Due.Before(today) && r.Remaining.IsPositive() {
			late = append(late, r)
		}
	}
	Sort(late, SortDueAsc)
	out := Views(late)
	for i := range out {
		out[i].DaysOverdue = DaysPastDue(late[i].Due, now)
	}
	return out
}

type PaymentView struct {
	TaskID     core.ID    `json:"taskId"`
	TaskTitle  string     `json:"taskTitle"`
	ClientID   core.ID    `json:"clientId"`
	ClientName string     `json:"clientName"`
	Amount     core.Money `json:"amount"`
	At         time.Time  `json:"at"`
}

// RecentPayments flattens every payment of rows, newest first, keeping n.
func RecentPayments(rows []Row, n int) []PaymentView {
	var out []PaymentView
	for _, r := range rows {
		for _, p := range r.Task.Payments {
			out = append(out, PaymentView{
				TaskID:     r.Task.ID,
				TaskTitle:  r.Task.Title,
				ClientID:   r.Task.ClientID,
				ClientName: r.ClientName,
				Amount:     p.Amount,
				At:         p.At,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []PaymentView{}
	}
	return out
}

// PaidTasks lists rows with any payment, largest paid amount first.
func PaidTasks(rows []Row) []TaskView {
	var paid []Row
	for _, r := range rows {
		if r.Paid.IsPositive() {
			paid = append(paid, r)
		}
	}
	sort.SliceStable(paid, func(i, j int) bool { return paid[i].Paid.Cents > paid[j].Paid.Cents })
	return Views(paid)
}

type KPIs struct {
	TotalClients   int        `json:"totalClients"`
	TotalTasks     int        `json:"totalTasks"`
	TotalCost      core.Money `json:"totalCost"`
	TotalPaid      core.Money `json:"totalPaid"`
	TotalRemaining core.Money `json:"totalRemaining"`
	// PaidPct is the share of tasks whose cost is fully covered, rounded to
	// a whole percent.
	PaidPct int `json:"paidPct"`
}

func ComputeKPIs(clients int, rows []Row) KPIs {
	k := KPIs{TotalClients: clients, TotalTasks: len(rows)}
	settled := 0
	for _, r := range rows {
		k.TotalCost = k.TotalCost.Add(r.Task.Cost)
		k.TotalPaid = k.TotalPaid.Add(r.Paid)
		k.TotalRemaining = k.TotalRemaining.Add(r.Remaining)
		if r.Paid.Cents >= r.Task.Cost.Cents {
			settled++
		}
	}
	if len(rows) > 0 {
		k.PaidPct = int(math.Round(float64(settled) * 100 / float64(len(rows))))
	}
	return k
}
