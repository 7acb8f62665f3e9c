package query

import (
	"sort"

	"sanitization-status-backend/internal/engine"
)

// AlertFilter narrows an alert list.
type AlertFilter struct {
	UnreadOnly bool
	Priority   engine.Priority
	StationID  string
}

// FilterAlerts returns the matching alerts newest first. Ties on timestamp
// put the higher priority first.
func FilterAlerts(alerts []engine.Alert, f AlertFilter) []engine.Alert {
	out := make([]engine.Alert, 0, len(alerts))
	for _, a := range alerts {
		if f.UnreadOnly && a.IsRead {
			continue
		}
		if f.Priority != "" && a.Priority != f.Priority {
			continue
		}
		if f.StationID != "" && a.StationID != f.StationID {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}
