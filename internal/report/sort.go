package report

import (
	"fmt"
	"sort"
	"strings"
)

type SortMode string

const (
	SortNewest              SortMode = "newest"
	SortDueAsc              SortMode = "dueAsc"
	SortDueDesc             SortMode = "dueDesc"
	SortAmountRemainingDesc SortMode = "amountRemainingDesc"
)

func ParseSortMode(s string) (SortMode, error) {
	switch m := SortMode(strings.TrimSpace(s)); m {
	case "":
		return SortNewest, nil
	case SortNewest, SortDueAsc, SortDueDesc, SortAmountRemainingDesc:
		return m, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q", s)
	}
}

// newerFirst orders by createdAt, then numeric id, then raw id, all
// descending.
func newerFirst(a, b Row) bool {
	if !a.Task.CreatedAt.Equal(b.Task.CreatedAt) {
		return a.Task.CreatedAt.After(b.Task.CreatedAt)
	}
	an, aok := a.Task.ID.Numeric()
	bn, bok := b.Task.ID.Numeric()
	if aok && bok && an != bn {
		return an > bn
	}
	return a.Task.ID > b.Task.ID
}

// Sort orders rows in place. Rows without a due date go last under both due
// orders.
func Sort(rows []Row, mode SortMode) {
	var less func(a, b Row) bool
	switch mode {
	case SortDueAsc:
		less = func(a, b Row) bool {
			if a.HasDue != b.HasDue {
				return a.HasDue
			}
			if !a.Due.Equal(b.Due) {
				return a.Due.Before(b.Due)
			}
			return newerFirst(a, b)
		}
	case SortDueDesc:
		less = func(a, b Row) bool {
			if a.HasDue != b.HasDue {
				return a.HasDue
			}
			if !a.Due.Equal(b.Due) {
				return a.Due.After(b.Due)
			}
			return newerFirst(a, b)
		}
	case SortAmountRemainingDesc:
		less = func(a, b Row) bool {
			if a.Remaining != b.Remaining {
				return a.Remaining.Cents > b.Remaining.Cents
			}
			return newerFirst(a, b)
		}
	default:
		less = newerFirst
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}
