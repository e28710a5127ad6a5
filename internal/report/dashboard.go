package report

import (
	"time"

	"backoffice/internal/core"
)

// Query selects the slice of the ledger a dashboard covers.
type Query struct {
	Preset   Preset
	From     time.Time
	To       time.Time
	ClientID core.ID
	Status   core.Status
	PayState string
	Search   string
}

type Dashboard struct {
	Preset         Preset         `json:"preset"`
	Range          Range          `json:"range"`
	GeneratedAt    time.Time      `json:"generatedAt"`
	KPIs           KPIs           `json:"kpis"`
	Status         []StatusCount  `json:"status"`
	MonthlyFlow    []MonthFlow    `json:"monthlyFlow"`
	PaymentsByWeek []WeekPayments `json:"paymentsByWeek"`
	Aging          []AgingBucket  `json:"aging"`
	ClientStack    []ClientTotals `json:"clientStack"`
	UpcomingDue    []TaskView     `json:"upcomingDue"`
	Overdue        []TaskView     `json:"overdue"`
	RecentPayments []PaymentView  `json:"recentPayments"`
	PaidTasks      []TaskView     `json:"paidTasks"`
}

// Build computes the dashboard for q at now. Times are interpreted in now's
// location.
func Build(clients []core.Client, tasks []core.Task, q Query, now time.Time) (Dashboard, error) {
	preset := q.Preset
	if preset == "" {
		preset = PresetAll
	}
	window, err := Window(preset, now, q.From, q.To)
	if err != nil {
		return Dashboard{}, err
	}
	rows := Filter(Rows(clients, tasks, now.Location()), TaskFilter{
		Query:    q.Search,
		ClientID: q.ClientID,
		Status:   q.Status,
		PayState: q.PayState,
		Window:   window,
	})

	return Dashboard{
		Preset:         preset,
		Range:          window,
		GeneratedAt:    now,
		KPIs:           ComputeKPIs(len(clients), rows),
		Status:         StatusTally(rows),
		MonthlyFlow:    MonthlyFlow(rows),
		PaymentsByWeek: WeeklyPayments(rows, window),
		Aging:          Aging(rows, now),
		ClientStack:    ClientStack(rows, TopN),
		UpcomingDue:    UpcomingDue(rows, now, TopN),
		Overdue:        Overdue(rows, now),
		RecentPayments: RecentPayments(rows, TopN),
		PaidTasks:      PaidTasks(rows),
	}, nil
}
