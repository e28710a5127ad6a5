package report

import (
	"fmt"
	"time"
)

type Preset string

const (
	PresetAll         Preset = "all"
	PresetToday       Preset = "today"
	PresetThisWeek    Preset = "thisWeek"
	PresetLast7       Preset = "last7"
	PresetThisMonth   Preset = "thisMonth"
	PresetLast30      Preset = "last30"
	PresetLast60      Preset = "last60"
	PresetLast90      Preset = "last90"
	PresetPrevMonth   Preset = "prevMonth"
	PresetQTD         Preset = "qtd"
	PresetYTD         Preset = "ytd"
	PresetPrevQuarter Preset = "prevQuarter"
	PresetPrevYear    Preset = "prevYear"
	PresetCustom      Preset = "custom"
)

// Presets lists every supported preset.
var Presets = []Preset{
	PresetAll, PresetToday, PresetThisWeek, PresetLast7, PresetThisMonth,
	PresetLast30, PresetLast60, PresetLast90, PresetPrevMonth, PresetQTD,
	PresetYTD, PresetPrevQuarter, PresetPrevYear, PresetCustom,
}

// Range is an inclusive interval. A zero bound is open.
type Range struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

func (r Range) Unbounded() bool { return r.From.IsZero() && r.To.IsZero() }

// Contains reports whether t lies in the range, bounds included.
func (r Range) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// ContainsDue applies the range to an optional due date: a task without one
// only matches an unbounded range.
func (r Range) ContainsDue(due time.Time, ok bool) bool {
	if r.Unbounded() {
		return true
	}
	return ok && r.Contains(due)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Window maps a preset to its date range relative to now. Rolling presets
// end at the end of today. custom uses from and to as given; either may be
// zero. Weeks start on Monday.
func Window(p Preset, now time.Time, from, to time.Time) (Range, error) {
	loc := now.Location()
	y, m, _ := now.Date()
	today := startOfDay(now)
	endToday := endOfDay(now)
	daysBack := func(n int) Range {
		return Range{From: today.AddDate(0, 0, -(n - 1)), To: endToday}
	}

	switch p {
	case PresetAll, "":
		return Range{}, nil
	case PresetToday:
		return Range{From: today, To: endToday}, nil
	case PresetThisWeek:
		offset := (int(now.Weekday()) + 6) % 7
		return Range{From: today.AddDate(0, 0, -offset), To: endToday}, nil
	case PresetLast7:
		return daysBack(7), nil
	case PresetThisMonth:
		return Range{From: time.Date(y, m, 1, 0, 0, 0, 0, loc), To: endToday}, nil
	case PresetLast30:
		return daysBack(30), nil
	case PresetLast60:
		return daysBack(60), nil
	case PresetLast90:
		return daysBack(90), nil
	case PresetPrevMonth:
		start := time.Date(y, m-1, 1, 0, 0, 0, 0, loc)
		return Range{From: start, To: endOfDay(time.Date(y, m, 0, 0, 0, 0, 0, loc))}, nil
	case PresetQTD:
		qStart := time.Month((int(m)-1)/3*3 + 1)
		return Range{From: time.Date(y, qStart, 1, 0, 0, 0, 0, loc), To: endToday}, nil
	case PresetYTD:
		return Range{From: time.Date(y, time.January, 1, 0, 0, 0, 0, loc), To: endToday}, nil
	case PresetPrevQuarter:
		qStart := time.Month((int(m)-1)/3*3 + 1)
		start := time.Date(y, qStart-3, 1, 0, 0, 0, 0, loc)
		end := time.Date(y, qStart, 0, 0, 0, 0, 0, loc)
		return Range{From: start, To: endOfDay(end)}, nil
	case PresetPrevYear:
		return Range{
			From: time.Date(y-1, time.January, 1, 0, 0, 0, 0, loc),
			To:   endOfDay(time.Date(y-1, time.December, 31, 0, 0, 0, 0, loc)),
		}, nil
	case PresetCustom:
		r := Range{From: from, To: to}
		if !from.IsZero() && !to.IsZero() && to.Before(from) {
			return Range{}, fmt.Errorf("custom range ends before it starts")
		}
		return r, nil
	default:
		return Range{}, fmt.Errorf("unknown preset %q", p)
	}
}
