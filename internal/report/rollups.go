package report

import (
	"sort"
	"time"

	"backoffice/internal/core"
)

// OrphanedRollupID groups tasks whose client no longer exists.
const OrphanedRollupID core.ID = "orphaned"

type ClientRollup struct {
	ClientID      core.ID    `json:"clientId"`
	ClientName    string     `json:"clientName"`
	Company       string     `json:"company,omitempty"`
	Tasks         int        `json:"tasks"`
	OpenTasks     int        `json:"openTasks"`
	Cost          core.Money `json:"cost"`
	Paid          core.Money `json:"paid"`
	Remaining     core.Money `json:"remaining"`
	LastPaymentAt *time.Time `json:"lastPaymentAt,omitempty"`
}

func (c *ClientRollup) add(r Row) {
	c.Tasks++
	if r.Task.Status.Normalized() != core.StatusCompleted {
		c.OpenTasks++
	}
	c.Cost = c.Cost.Add(r.Task.Cost)
	c.Paid = c.Paid.Add(r.Paid)
	c.Remaining = c.Remaining.Add(r.Remaining)
	if at, ok := r.LastPaymentAt(); ok && (c.LastPaymentAt == nil || at.After(*c.LastPaymentAt)) {
		c.LastPaymentAt = &at
	}
}

// ClientRollups returns one rollup per client in client order, followed by
// an orphaned rollup when some tasks reference a missing client.
func ClientRollups(clients []core.Client, rows []Row) []ClientRollup {
	out := make([]ClientRollup, 0, len(clients)+1)
	idx := make(map[core.ID]int, len(clients))
	for _, c := range clients {
		idx[c.ID] = len(out)
		out = append(out, ClientRollup{ClientID: c.ID, ClientName: c.Name, Company: c.Company})
	}
	var orphaned *ClientRollup
	for _, r := range rows {
		if i, ok := idx[r.Task.ClientID]; ok {
			out[i].add(r)
			continue
		}
		if orphaned == nil {
			orphaned = &ClientRollup{ClientID: OrphanedRollupID, ClientName: string(OrphanedRollupID)}
		}
		orphaned.add(r)
	}
	if orphaned != nil {
		out = append(out, *orphaned)
	}
	return out
}

type CalendarEvent struct {
	ID       core.ID   `json:"id"`
	TaskID   core.ID   `json:"taskId"`
	ClientID core.ID   `json:"clientId"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	AllDay   bool      `json:"allDay"`
	PayState PayState  `json:"payState"`
	Overdue  bool      `json:"overdue"`
}

// CalendarEvents returns one all-day event per dated row inside window,
// ordered by date.
func CalendarEvents(rows []Row, window Range, now time.Time) []CalendarEvent {
	today := startOfDay(now)
	out := make([]CalendarEvent, 0, len(rows))
	for _, r := range rows {
		if !r.HasDue || !window.Contains(r.Due) {
			continue
		}
		title := r.Task.Title
		if r.ClientName != "" {
			title += " (" + r.ClientName + ")"
		}
		out = append(out, CalendarEvent{
			ID:       r.Task.ID,
			TaskID:   r.Task.ID,
			ClientID: r.Task.ClientID,
			Title:    title,
			Start:    r.Due,
			End:      r.Due,
			AllDay:   true,
			PayState: r.State,
			Overdue:  r.Due.Before(today) && r.Remaining.IsPositive(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
