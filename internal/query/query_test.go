package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanitization-status-backend/internal/engine"
)

func sampleStations() []engine.Station {
	return []engine.Station{
		{ID: "seat-101", Name: "Waiting Room Seat 1", Location: "Floor 1, West Wing", Department: "General Medicine", Status: engine.StatusClean},
		{ID: "seat-102", Name: "Waiting Room Seat 2", Location: "Floor 1, West Wing", Department: "General Medicine", Status: engine.StatusDirty},
		{ID: "seat-201", Name: "Pediatric Chair", Location: "Floor 2, East Wing", Department: "Pediatrics", Status: engine.StatusInProgress},
		{ID: "bed-301", Name: "Recovery Bed", Location: "Floor 3, North Wing", Department: "Surgery", Status: engine.StatusNeedsAttention},
		{ID: "kiosk", Name: "Lobby Kiosk", Location: "Main Lobby", Department: "", Status: engine.StatusClean},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleStations())
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Clean)
	assert.Equal(t, 1, s.Dirty)
	assert.Equal(t, 1, s.InProgress)
	assert.Equal(t, 1, s.NeedsAttention)
	assert.Equal(t, 40, s.CleanPercent)
	assert.Equal(t, 20, s.DirtyPercent)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestPercent_Rounds(t *testing.T) {
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 67, Percent(2, 3))
	assert.Equal(t, 0, Percent(5, 0))
}

func TestDepartments(t *testing.T) {
	assert.Equal(t, []string{"General Medicine", "Pediatrics", "Surgery"}, Departments(sampleStations()))
	idx := DepartmentIndex(sampleStations())
	assert.Equal(t, "Pediatrics", idx["seat-201"])
}

func TestFilterStations(t *testing.T) {
	stations := sampleStations()
	testCases := []struct {
		name   string
		filter StationFilter
		want   []string
	}{
		{name: "no filters", filter: StationFilter{}, want: []string{"seat-101", "seat-102", "seat-201", "bed-301", "kiosk"}},
		{name: "text on name", filter: StationFilter{Text: "waiting"}, want: []string{"seat-101", "seat-102"}},
		{name: "text on location", filter: StationFilter{Text: "EAST"}, want: []string{"seat-201"}},
		{name: "department", filter: StationFilter{Department: "Surgery"}, want: []string{"bed-301"}},
		{name: "status", filter: StationFilter{Status: engine.StatusClean}, want: []string{"seat-101", "kiosk"}},
		{name: "anded", filter: StationFilter{Text: "seat", Status: engine.StatusDirty}, want: []string{"seat-102"}},
		{name: "nothing matches", filter: StationFilter{Text: "zzz"}, want: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := FilterStations(stations, tc.filter)
			ids := make([]string, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestParseDateRange(t *testing.T) {
	testCases := []struct {
		raw     string
		want    DateRange
		wantErr bool
	}{
		{raw: "today", want: RangeToday},
		{raw: "Yesterday", want: RangeYesterday},
		{raw: "week", want: RangeLast7Days},
		{raw: "last30days", want: RangeLast30Days},
		{raw: "month", want: RangeLast30Days},
		{raw: "", want: RangeAll},
		{raw: "fortnight", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseDateRange(tc.raw)
			if tc.wantErr {
				assert.ErrorIs(t, err, engine.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFilterHistory_DateRanges(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 5, 10, 0, 30, 0, 0, loc)
	records := []engine.SanitizationRecord{
		{ID: "just-now", Timestamp: now.Add(-10 * time.Minute)},
		{ID: "late-yesterday", Timestamp: now.Add(-40 * time.Minute)},
		{ID: "25h-ago", Timestamp: now.Add(-25 * time.Hour)},
		{ID: "week-edge", Timestamp: now.AddDate(0, 0, -7)},
		{ID: "eight-days", Timestamp: now.AddDate(0, 0, -8)},
		{ID: "month-edge", Timestamp: now.AddDate(0, 0, -30)},
		{ID: "old", Timestamp: now.AddDate(0, 0, -31)},
	}

	testCases := []struct {
		r    DateRange
		want []string
	}{
		{r: RangeToday, want: []string{"just-now"}},
		{r: RangeYesterday, want: []string{"late-yesterday"}},
		{r: RangeLast7Days, want: []string{"just-now", "late-yesterday", "25h-ago", "week-edge"}},
		{r: RangeLast30Days, want: []string{"just-now", "late-yesterday", "25h-ago", "week-edge", "eight-days", "month-edge"}},
		{r: RangeAll, want: []string{"just-now", "late-yesterday", "25h-ago", "week-edge", "eight-days", "month-edge", "old"}},
	}
	for _, tc := range testCases {
		t.Run(string(tc.r), func(t *testing.T) {
			got := FilterHistory(records, nil, HistoryFilter{Range: tc.r}, now)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestFilterHistory_TodayIsCalendarDate(t *testing.T) {
	now := time.Date(2026, 5, 10, 23, 0, 0, 0, time.UTC)
	// 25 hours back lands on the 9th; 23 hours back is still the 10th.
	records := []engine.SanitizationRecord{
		{ID: "a", Timestamp: now.Add(-25 * time.Hour)},
		{ID: "b", Timestamp: now.Add(-23 * time.Hour)},
	}
	got := FilterHistory(records, nil, HistoryFilter{Range: RangeToday}, now)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)

	// Timestamps stored in another zone are compared in the zone of now.
	tokyo := time.FixedZone("JST", 9*60*60)
	utcNoon := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	late := []engine.SanitizationRecord{{ID: "c", Timestamp: time.Date(2026, 5, 11, 1, 0, 0, 0, tokyo)}}
	assert.Len(t, FilterHistory(late, nil, HistoryFilter{Range: RangeToday}, utcNoon), 1)
}

func TestFilterHistory_DepartmentAndStatus(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	departments := DepartmentIndex(sampleStations())
	records := []engine.SanitizationRecord{
		{ID: "1", StationID: "seat-101", Status: engine.StatusClean, Timestamp: now},
		{ID: "2", StationID: "seat-201", Status: engine.StatusClean, Timestamp: now},
		{ID: "3", StationID: "seat-102", Status: engine.StatusNeedsAttention, Timestamp: now},
		{ID: "4", StationID: "unknown", Status: engine.StatusClean, Timestamp: now},
	}

	got := FilterHistory(records, departments, HistoryFilter{Department: "General Medicine"}, now)
	assert.Len(t, got, 2)

	got = FilterHistory(records, departments, HistoryFilter{Department: "General Medicine", Status: engine.StatusClean}, now)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	got = FilterHistory(records, departments, HistoryFilter{StationID: "seat-201"}, now)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].ID)
}

func TestRecent(t *testing.T) {
	records := []engine.SanitizationRecord{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	got := Recent(records, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "2", got[1].ID)
	assert.Len(t, Recent(records, 10), 3)
	assert.Empty(t, Recent(records, 0))
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	testCases := []struct {
		ago  time.Duration
		want string
	}{
		{ago: 0, want: "Just now"},
		{ago: 59 * time.Second, want: "Just now"},
		{ago: time.Minute, want: "1m ago"},
		{ago: 59*time.Minute + 59*time.Second, want: "59m ago"},
		{ago: time.Hour, want: "1h ago"},
		{ago: 23*time.Hour + 59*time.Minute, want: "23h ago"},
		{ago: 24 * time.Hour, want: "1d ago"},
		{ago: 47 * time.Hour, want: "1d ago"},
		{ago: 72 * time.Hour, want: "3d ago"},
	}
	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, TimeAgo(now.Add(-tc.ago), now))
		})
	}
}

func TestFilterAlerts(t *testing.T) {
	t0 := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	alerts := []engine.Alert{
		{ID: "a", StationID: "seat-1", Priority: engine.PriorityLow, Timestamp: t0},
		{ID: "b", StationID: "seat-2", Priority: engine.PriorityHigh, Timestamp: t0.Add(time.Minute), IsRead: true},
		{ID: "c", StationID: "seat-1", Priority: engine.PriorityMedium, Timestamp: t0.Add(2 * time.Minute)},
		{ID: "d", StationID: "seat-3", Priority: engine.PriorityHigh, Timestamp: t0},
	}

	ids := func(in []engine.Alert) []string {
		out := make([]string, 0, len(in))
		for _, a := range in {
			out = append(out, a.ID)
		}
		return out
	}

	assert.Equal(t, []string{"c", "b", "d", "a"}, ids(FilterAlerts(alerts, AlertFilter{})))
	assert.Equal(t, []string{"c", "d", "a"}, ids(FilterAlerts(alerts, AlertFilter{UnreadOnly: true})))
	assert.Equal(t, []string{"b", "d"}, ids(FilterAlerts(alerts, AlertFilter{Priority: engine.PriorityHigh})))
	assert.Equal(t, []string{"c", "a"}, ids(FilterAlerts(alerts, AlertFilter{StationID: "seat-1"})))
	assert.Equal(t, "a", alerts[0].ID, "input is not reordered")
}

func TestGroupByFloor(t *testing.T) {
	groups := GroupByFloor(sampleStations())
	require.Len(t, groups, 4)

	assert.Equal(t, 1, groups[0].Floor)
	assert.Equal(t, "Floor 1", groups[0].Label)
	assert.Len(t, groups[0].Stations, 2)
	assert.Equal(t, 50, groups[0].Summary.CleanPercent)

	assert.Equal(t, 2, groups[1].Floor)
	assert.Equal(t, 3, groups[2].Floor)
	assert.Equal(t, 0, groups[3].Floor)
	assert.Equal(t, "Unassigned", groups[3].Label)
	assert.Equal(t, "kiosk", groups[3].Stations[0].ID)
}
