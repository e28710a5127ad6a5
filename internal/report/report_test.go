package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/core"
)

// Friday 2024-05-10, mid morning.
var now = time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC)

func eur(v int64) core.Money { return core.Cents(v * 100) }

func task(id string, cost int64, date string, payments ...int64) core.Task {
	t := core.Task{
		ID:        core.ID(id),
		ClientID:  "c1",
		Title:     "task " + id,
		Cost:      eur(cost),
		Date:      date,
		Status:    core.StatusNotStarted,
		Priority:  core.PriorityMedium,
		Payments:  []core.Payment{},
		CreatedAt: now.Add(-time.Hour),
	}
	for i, p := range payments {
		t.Payments = append(t.Payments, core.Payment{Amount: eur(p), At: now.Add(-time.Duration(i+1) * 24 * time.Hour)})
	}
	t.Paid = t.PaymentsTotal()
	return t
}

func rows(tasks ...core.Task) []Row {
	return Rows([]core.Client{{ID: "c1", Name: "Alpha"}}, tasks, time.UTC)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		task core.Task
		want PayState
	}{
		{"zero cost", task("1", 0, ""), PayNone},
		{"unpaid", task("2", 100, ""), PayNone},
		{"partial", task("3", 100, "", 40), PayPartial},
		{"full", task("4", 100, "", 40, 60), PayFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.task))
		})
	}
}

func TestEffectivePaidPrefersLargerAndCaps(t *testing.T) {
	tk := task("1", 100, "", 30)
	tk.Paid = eur(50)
	assert.Equal(t, eur(50), EffectivePaid(tk))
	assert.Equal(t, eur(50), Remaining(tk))

	tk.Paid = eur(150)
	assert.Equal(t, eur(100), EffectivePaid(tk))
	assert.Equal(t, core.Money{}, Remaining(tk))
}

func TestWindow(t *testing.T) {
	endToday := time.Date(2024, 5, 10, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		preset   Preset
		from, to time.Time
	}{
		{PresetToday, day(2024, 5, 10), endToday},
		{PresetThisWeek, day(2024, 5, 6), endToday},
		{PresetLast7, day(2024, 5, 4), endToday},
		{PresetLast30, day(2024, 4, 11), endToday},
		{PresetThisMonth, day(2024, 5, 1), endToday},
		{PresetPrevMonth, day(2024, 4, 1), time.Date(2024, 4, 30, 23, 59, 59, int(999*time.Millisecond), time.UTC)},
		{PresetQTD, day(2024, 4, 1), endToday},
		{PresetYTD, day(2024, 1, 1), endToday},
		{PresetPrevQuarter, day(2024, 1, 1), time.Date(2024, 3, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC)},
		{PresetPrevYear, day(2023, 1, 1), time.Date(2023, 12, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.preset), func(t *testing.T) {
			r, err := Window(tt.preset, now, time.Time{}, time.Time{})
			require.NoError(t, err)
			assert.Equal(t, tt.from, r.From)
			assert.Equal(t, tt.to, r.To)
		})
	}
}

func TestWindowPrevQuarterRollsOverYear(t *testing.T) {
	feb := time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)
	r, err := Window(PresetPrevQuarter, feb, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, 2023, r.To.Year())
	assert.Equal(t, time.December, r.To.Month())
	assert.Equal(t, 31, r.To.Day())
}

func TestWindowRejectsUnknownAndInverted(t *testing.T) {
	_, err := Window("fortnight", now, time.Time{}, time.Time{})
	assert.Error(t, err)

	_, err = Window(PresetCustom, now, now, now.AddDate(0, 0, -1))
	assert.Error(t, err)

	r, err := Window(PresetCustom, now, now, time.Time{})
	require.NoError(t, err)
	assert.True(t, r.Contains(now.AddDate(1, 0, 0)))
}

func TestFilterWindowExcludesUndated(t *testing.T) {
	rs := rows(task("1", 100, "2024-05-09"), task("2", 100, ""))
	r, err := Window(PresetThisWeek, now, time.Time{}, time.Time{})
	require.NoError(t, err)

	got := Filter(rs, TaskFilter{Window: r})
	require.Len(t, got, 1)
	assert.Equal(t, core.ID("1"), got[0].Task.ID)

	assert.Len(t, Filter(rs, TaskFilter{}), 2)
}

func TestFilterQueryAndPayState(t *testing.T) {
	a := task("1", 100, "", 100)
	a.Description = "Wedding VIDEO"
	b := task("2", 100, "", 20)
	c := task("3", 100, "")
	rs := rows(a, b, c)

	assert.Len(t, Filter(rs, TaskFilter{Query: "video"}), 1)
	assert.Len(t, Filter(rs, TaskFilter{Query: "alpha"}), 3, "client name is searched")
	assert.Len(t, Filter(rs, TaskFilter{PayState: "paid"}), 1)
	assert.Len(t, Filter(rs, TaskFilter{PayState: "partial"}), 1)
	assert.Len(t, Filter(rs, TaskFilter{PayState: "unpaid"}), 1)
}

func TestAgingBucket(t *testing.T) {
	tk := task("1", 50, now.AddDate(0, 0, -10).Format("2006-01-02"))
	buckets := Aging(rows(tk), now)

	require.Len(t, buckets, 4)
	for _, b := range buckets {
		if b.Bucket == "8-30" {
			assert.Equal(t, eur(50), b.Remaining)
			assert.Equal(t, 1, b.Count)
		} else {
			assert.Zero(t, b.Remaining.Cents, b.Bucket)
		}
	}
}

func TestAgingSkipsPaidAndFuture(t *testing.T) {
	paid := task("1", 50, "2024-04-01", 50)
	future := task("2", 50, "2024-06-01")
	for _, b := range Aging(rows(paid, future), now) {
		assert.Zero(t, b.Count, b.Bucket)
	}
}

func TestSortModes(t *testing.T) {
	a := task("1", 100, "2024-05-20")
	b := task("2", 100, "")
	c := task("3", 100, "2024-05-01", 90)
	a.CreatedAt = now.Add(-3 * time.Hour)
	b.CreatedAt = now.Add(-3 * time.Hour)
	c.CreatedAt = now

	ids := func(rs []Row) []core.ID {
		out := make([]core.ID, len(rs))
		for i, r := range rs {
			out[i] = r.Task.ID
		}
		return out
	}

	rs := rows(a, b, c)
	Sort(rs, SortNewest)
	assert.Equal(t, []core.ID{"3", "2", "1"}, ids(rs), "ties fall back to numeric id")

	Sort(rs, SortDueAsc)
	assert.Equal(t, []core.ID{"3", "1", "2"}, ids(rs))

	Sort(rs, SortDueDesc)
	assert.Equal(t, []core.ID{"1", "3", "2"}, ids(rs))

	Sort(rs, SortAmountRemainingDesc)
	assert.Equal(t, []core.ID{"2", "1", "3"}, ids(rs))
}

func TestParseSortMode(t *testing.T) {
	m, err := ParseSortMode("")
	require.NoError(t, err)
	assert.Equal(t, SortNewest, m)
	_, err = ParseSortMode("random")
	assert.Error(t, err)
}

func TestGroupings(t *testing.T) {
	a := task("1", 100, "2024-05-02", 40, 60)
	b := task("2", 200, "2024-04-15", 50)
	b.Status = "Ολοκληρωμένο"
	c := task("3", 80, "")
	c.CreatedAt = time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	rs := rows(a, b, c)

	tally := StatusTally(rs)
	assert.Equal(t, []StatusCount{
		{Status: core.StatusNotStarted, Count: 2},
		{Status: core.StatusInProgress, Count: 0},
		{Status: core.StatusCompleted, Count: 1},
	}, tally)

	flow := MonthlyFlow(rs)
	require.Len(t, flow, 3)
	assert.Equal(t, "2024-03", flow[0].Month)
	assert.Equal(t, "2024-04", flow[1].Month)
	assert.Equal(t, eur(150), flow[1].Remaining)
	assert.Equal(t, "2024-05", flow[2].Month)
	assert.Equal(t, eur(100), flow[2].Paid)

	weeks := WeeklyPayments(rs, Range{})
	total := core.Money{}
	for _, w := range weeks {
		total = total.Add(w.Amount)
	}
	assert.Equal(t, eur(150), total)

	kpi := ComputeKPIs(5, rs)
	assert.Equal(t, 5, kpi.TotalClients)
	assert.Equal(t, 3, kpi.TotalTasks)
	assert.Equal(t, eur(380), kpi.TotalCost)
	assert.Equal(t, eur(150), kpi.TotalPaid)
	assert.Equal(t, eur(230), kpi.TotalRemaining)
	assert.Equal(t, 33, kpi.PaidPct)

	recent := RecentPayments(rs, 2)
	require.Len(t, recent, 2)
	assert.True(t, !recent[0].At.Before(recent[1].At))
	assert.Equal(t, "Alpha", recent[0].ClientName)
}

func TestUpcomingAndOverdue(t *testing.T) {
	late := task("1", 100, "2024-05-01")
	today := task("2", 100, "2024-05-10")
	later := task("3", 100, "2024-05-20")
	settled := task("4", 100, "2024-05-12", 100)
	rs := rows(later, today, late, settled)

	up := UpcomingDue(rs, now, TopN)
	require.Len(t, up, 2)
	assert.Equal(t, core.ID("2"), up[0].ID)
	assert.Equal(t, core.ID("3"), up[1].ID)

	over := Overdue(rs, now)
	require.Len(t, over, 1)
	assert.Equal(t, core.ID("1"), over[0].ID)
	assert.Equal(t, 9, over[0].DaysOverdue)
}

func TestClientRollupsGroupsOrphans(t *testing.T) {
	a := task("1", 100, "", 40)
	orphan := task("2", 70, "")
	orphan.ClientID = "gone"
	clients := []core.Client{{ID: "c1", Name: "Alpha"}, {ID: "c2", Name: "Beta"}}

	got := ClientRollups(clients, Rows(clients, []core.Task{a, orphan}, time.UTC))
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Tasks)
	assert.Equal(t, eur(60), got[0].Remaining)
	require.NotNil(t, got[0].LastPaymentAt)
	assert.Equal(t, 0, got[1].Tasks)
	assert.Equal(t, OrphanedRollupID, got[2].ClientID)
	assert.Equal(t, eur(70), got[2].Cost)
}

func TestCalendarEvents(t *testing.T) {
	a := task("1", 100, "2024-05-01")
	b := task("2", 100, "")
	c := task("3", 100, "2024-06-01")

	events := CalendarEvents(rows(c, a, b), Range{}, now)
	require.Len(t, events, 2)
	assert.Equal(t, "task 1 (Alpha)", events[0].Title)
	assert.True(t, events[0].AllDay)
	assert.True(t, events[0].Overdue)
	assert.Equal(t, events[0].Start, events[0].End)
	assert.False(t, events[1].Overdue)

	window := Range{From: time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)}
	assert.Len(t, CalendarEvents(rows(a, c), window, now), 1)
}

func TestBuildDashboard(t *testing.T) {
	a := task("1", 100, "2024-05-08", 40)
	b := task("2", 100, "2023-01-01")
	d, err := Build([]core.Client{{ID: "c1", Name: "Alpha"}}, []core.Task{a, b}, Query{Preset: PresetThisMonth}, now)
	require.NoError(t, err)

	assert.Equal(t, PresetThisMonth, d.Preset)
	assert.Equal(t, 1, d.KPIs.TotalTasks)
	assert.Equal(t, eur(40), d.KPIs.TotalPaid)
	require.Len(t, d.Overdue, 1)
	assert.Len(t, d.PaidTasks, 1)

	_, err = Build(nil, nil, Query{Preset: "bogus"}, now)
	assert.Error(t, err)
}

func TestBuildDigest(t *testing.T) {
	d := BuildDigest(rows(task("1", 50, "2024-04-30"), task("2", 30, "2024-01-01", 10)), now)
	assert.Equal(t, 2, d.Count)
	assert.Equal(t, eur(70), d.TotalRemaining)
}

func TestDaysPastDueCountsCalendarDays(t *testing.T) {
	assert.Equal(t, 0, DaysPastDue(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 1, DaysPastDue(time.Date(2024, 5, 9, 23, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 1, DaysPastDue(time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, -3, DaysPastDue(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC), now))

	athens, err := time.LoadLocation("Europe/Athens")
	if err != nil {
		t.Skipf("zone database unavailable: %v", err)
	}
	// 2024-03-31 is 23 hours long in Athens.
	due := time.Date(2024, 3, 31, 0, 0, 0, 0, athens)
	assert.Equal(t, 1, DaysPastDue(due, time.Date(2024, 4, 1, 0, 30, 0, 0, athens)))
	assert.Equal(t, 0, DaysPastDue(due, time.Date(2024, 3, 31, 23, 59, 0, 0, athens)))
}

func TestOverdueDaysMatchCalendar(t *testing.T) {
	late := task("late", 100, "2024-05-09")
	got := Overdue(rows(late), time.Date(2024, 5, 10, 0, 5, 0, 0, time.UTC))
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].DaysOverdue)

	buckets := Aging(rows(late), time.Date(2024, 5, 10, 0, 5, 0, 0, time.UTC))
	assert.Equal(t, 1, buckets[0].Count)
}
