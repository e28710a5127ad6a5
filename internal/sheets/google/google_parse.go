package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"backoffice/internal/core"
	ports "backoffice/internal/sheets"
)

const sheetTimeLayout = "2006-01-02 15:04"

func formatRow(r ports.PaymentRow, loc *time.Location) []any {
	return []any{
		r.At.In(loc).Format(sheetTimeLayout),
		r.ClientName,
		r.TaskTitle,
		r.Amount.Euros(),
		r.Paid.Euros(),
		r.Cost.Euros(),
		string(r.TaskID),
		r.MessageID,
	}
}

// parseRows converts a values matrix (as returned by the Sheets API) into
// payment rows. Rows whose amount does not parse, the header included, are
// skipped.
func parseRows(values [][]interface{}, loc *time.Location) []ports.PaymentRow {
	var out []ports.PaymentRow
	for _, raw := range values {
		row := toStrings(raw)
		amount, ok := parseEurosToCents(safeGet(row, 3))
		if !ok {
			continue
		}
		at, _ := time.ParseInLocation(sheetTimeLayout, safeGet(row, 0), loc)
		paid, _ := parseEurosToCents(safeGet(row, 4))
		cost, _ := parseEurosToCents(safeGet(row, 5))
		out = append(out, ports.PaymentRow{
			At:         at,
			ClientName: safeGet(row, 1),
			TaskTitle:  safeGet(row, 2),
			Amount:     core.Cents(amount),
			Paid:       core.Cents(paid),
			Cost:       core.Cents(cost),
			TaskID:     core.ID(safeGet(row, 6)),
			MessageID:  safeGet(row, 7),
		})
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseEurosToCents accepts sheet formatted numbers, with either decimal
// separator and an optional euro sign.
func parseEurosToCents(s string) (int64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "€"))
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if f < 0 {
		return int64(f*100.0 - 0.5), true
	}
	return int64(f*100.0 + 0.5), true
}
