package query

import (
	"fmt"
	"strings"
	"time"

	"sanitization-status-backend/internal/engine"
)

// StationFilter narrows a station list. Empty fields do not constrain.
type StationFilter struct {
	Text       string
	Department string
	Status     engine.Status
}

// FilterStations returns the stations matching every supplied filter, in input order.
// Text matches name or location case-insensitively.
func FilterStations(stations []engine.Station, f StationFilter) []engine.Station {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	out := make([]engine.Station, 0, len(stations))
	for _, st := range stations {
		if text != "" &&
			!strings.Contains(strings.ToLower(st.Name), text) &&
			!strings.Contains(strings.ToLower(st.Location), text) {
			continue
		}
		if f.Department != "" && st.Department != f.Department {
			continue
		}
		if f.Status != "" && st.Status != f.Status {
			continue
		}
		out = append(out, st)
	}
	return out
}

// DateRange selects history records relative to a reference time.
type DateRange string

const (
	RangeAll        DateRange = ""
	RangeToday      DateRange = "today"
	RangeYesterday  DateRange = "yesterday"
	RangeLast7Days  DateRange = "last7days"
	RangeLast30Days DateRange = "last30days"
)

// ParseDateRange accepts the canonical names plus "week", "month" and "all".
func ParseDateRange(raw string) (DateRange, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "all":
		return RangeAll, nil
	case "today":
		return RangeToday, nil
	case "yesterday":
		return RangeYesterday, nil
	case "last7days", "week":
		return RangeLast7Days, nil
	case "last30days", "month":
		return RangeLast30Days, nil
	}
	return RangeAll, fmt.Errorf("%w: unknown date range %q", engine.ErrValidation, raw)
}

// Contains reports whether ts falls in the range. Calendar comparisons use
// the location of now.
func (r DateRange) Contains(ts, now time.Time) bool {
	switch r {
	case RangeToday:
		return sameDate(ts.In(now.Location()), now)
	case RangeYesterday:
		return sameDate(ts.In(now.Location()), now.AddDate(0, 0, -1))
	case RangeLast7Days:
		return !ts.Before(now.AddDate(0, 0, -7))
	case RangeLast30Days:
		return !ts.Before(now.AddDate(0, 0, -30))
	}
	return true
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// HistoryFilter narrows history records. Empty fields do not constrain.
type HistoryFilter struct {
	Range      DateRange
	StationID  string
	Department string
	Status     engine.Status
}

// FilterHistory returns the records matching every supplied filter, in input
// order. departments maps station id to department.
func FilterHistory(records []engine.SanitizationRecord, departments map[string]string, f HistoryFilter, now time.Time) []engine.SanitizationRecord {
	out := make([]engine.SanitizationRecord, 0)
	for _, r := range records {
		if !f.Range.Contains(r.Timestamp, now) {
			continue
		}
		if f.StationID != "" && r.StationID != f.StationID {
			continue
		}
		if f.Department != "" && departments[r.StationID] != f.Department {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Recent returns up to n records, newest first.
func Recent(records []engine.SanitizationRecord, n int) []engine.SanitizationRecord {
	if n <= 0 {
		return []engine.SanitizationRecord{}
	}
	if n > len(records) {
		n = len(records)
	}
	out := make([]engine.SanitizationRecord, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}
	return out
}
