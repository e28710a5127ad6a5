package report

import (
	"time"

	"backoffice/internal/core"
)

// OverdueDigest is the periodic summary of unpaid work past its due date.
type OverdueDigest struct {
	GeneratedAt    time.Time     `json:"generatedAt"`
	Count          int           `json:"count"`
	TotalRemaining core.Money    `json:"totalRemaining"`
	Aging          []AgingBucket `json:"aging"`
	Overdue        []TaskView    `json:"overdue"`
}

func BuildDigest(rows []Row, now time.Time) OverdueDigest {
	d := OverdueDigest{
		GeneratedAt: now,
		Aging:       Aging(rows, now),
		Overdue:     Overdue(rows, now),
	}
	d.Count = len(d.Overdue)
	for _, t := range d.Overdue {
		d.TotalRemaining = d.TotalRemaining.Add(t.Remaining)
	}
	return d
}
