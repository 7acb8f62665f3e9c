// Package query derives read-only views (summaries, filters, groupings) from
// engine snapshots. Nothing here mutates state.
package query

import (
	"math"
	"sort"

	"sanitization-status-backend/internal/engine"
)

// Summary counts stations by status.
type Summary struct {
	Total          int `json:"total"`
	Clean          int `json:"clean"`
	Dirty          int `json:"dirty"`
	InProgress     int `json:"inProgress"`
	NeedsAttention int `json:"needsAttention"`

	CleanPercent          int `json:"cleanPercent"`
	DirtyPercent          int `json:"dirtyPercent"`
	InProgressPercent     int `json:"inProgressPercent"`
	NeedsAttentionPercent int `json:"needsAttentionPercent"`
}

// Summarize counts stations by status. Percentages are rounded and are 0 when
// there are no stations.
func Summarize(stations []engine.Station) Summary {
	var s Summary
	for _, st := range stations {
		s.Total++
		switch st.Status {
		case engine.StatusClean:
			s.Clean++
		case engine.StatusDirty:
			s.Dirty++
		case engine.StatusInProgress:
			s.InProgress++
		case engine.StatusNeedsAttention:
			s.NeedsAttention++
		}
	}
	s.CleanPercent = Percent(s.Clean, s.Total)
	s.DirtyPercent = Percent(s.Dirty, s.Total)
	s.InProgressPercent = Percent(s.InProgress, s.Total)
	s.NeedsAttentionPercent = Percent(s.NeedsAttention, s.Total)
	return s
}

// Percent returns round(count/total*100), or 0 when total is not positive.
func Percent(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

// Departments returns the distinct non-empty departments, sorted.
func Departments(stations []engine.Station) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, st := range stations {
		if st.Department == "" {
			continue
		}
		if _, ok := seen[st.Department]; ok {
			continue
		}
		seen[st.Department] = struct{}{}
		out = append(out, st.Department)
	}
	sort.Strings(out)
	return out
}

// DepartmentIndex maps station id to department.
func DepartmentIndex(stations []engine.Station) map[string]string {
	idx := make(map[string]string, len(stations))
	for _, st := range stations {
		idx[st.ID] = st.Department
	}
	return idx
}
