package engine

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanitization-status-backend/internal/clock"
)

var testStart = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type recordingListener struct {
	mu      sync.Mutex
	commits []Commit
	read    [][]string
	err     error
}

func (l *recordingListener) TransitionCommitted(c Commit) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commits = append(l.commits, c)
	return l.err
}

func (l *recordingListener) AlertsRead(ids []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.read = append(l.read, ids)
	return l.err
}

func (l *recordingListener) causes() []Cause {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Cause, 0, len(l.commits))
	for _, c := range l.commits {
		out = append(out, c.Transition.Cause)
	}
	return out
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *clock.Fake, *recordingListener) {
	t.Helper()
	fake := clock.NewFake(testStart)
	listener := &recordingListener{}
	base := []Option{
		WithClock(fake),
		WithIDGenerator(sequentialIDs()),
		WithLogger(log.New(io.Discard, "", 0)),
		WithListener(listener),
	}
	e, err := New(append(base, opts...)...)
	require.NoError(t, err)
	return e, fake, listener
}

func provision(t *testing.T, e *Engine, id string) Station {
	t.Helper()
	s, err := e.Provision(ProvisionRequest{ID: id, Name: "Room " + id, Location: "Floor 1, West Wing", Department: "General Medicine"})
	require.NoError(t, err)
	return s
}

// cleanStation drives a station through a successful session.
func cleanStation(t *testing.T, e *Engine, id string) {
	t.Helper()
	session, err := e.StartCleaning(id, "John Smith")
	require.NoError(t, err)
	outcome, err := e.Observe(session.ID, 100)
	require.NoError(t, err)
	require.Equal(t, OutcomeSucceeded, outcome.Result)
}

func countPriority(alerts []Alert, p Priority) int {
	n := 0
	for _, a := range alerts {
		if a.Priority == p {
			n++
		}
	}
	return n
}

func TestProvision(t *testing.T) {
	e, _, listener := newTestEngine(t)

	s := provision(t, e, "seat-101")
	assert.Equal(t, StatusDirty, s.Status)
	assert.Nil(t, s.LastCleaned)
	assert.Equal(t, testStart, s.NextScheduledCleaning)
	assert.Equal(t, []Cause{CauseProvision}, listener.causes())

	_, err := e.Provision(ProvisionRequest{ID: "seat-101", Name: "dup"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.Provision(ProvisionRequest{ID: " ", Name: "blank"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, e.Alerts().Alerts())
	assert.Equal(t, 0, e.History().Len())
}

func TestSuccessfulCleaningScenario(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	provision(t, e, "S")

	session, err := e.StartCleaning("S", "Maria Rodriguez")
	require.NoError(t, err)
	st, _ := e.Station("S")
	assert.Equal(t, StatusInProgress, st.Status)

	fake.Advance(20 * time.Second)
	var last SessionOutcome
	for i, delta := range []float64{40, 40, 25} {
		last, err = e.Observe(session.ID, delta)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, OutcomePending, last.Result)
		}
	}
	assert.Equal(t, OutcomeSucceeded, last.Result)
	assert.Equal(t, MaxScore, last.Score)
	assert.Equal(t, 3, last.Samples)

	now := fake.Now()
	st, err = e.Station("S")
	require.NoError(t, err)
	assert.Equal(t, StatusClean, st.Status)
	require.NotNil(t, st.LastCleaned)
	assert.Equal(t, now, *st.LastCleaned)
	assert.Equal(t, now.Add(DefaultSettings().CleaningIntervalAfterSuccess), st.NextScheduledCleaning)

	records := e.History().Records()
	require.Len(t, records, 1)
	assert.Equal(t, StatusClean, records[0].Status)
	assert.Equal(t, "Maria Rodriguez", records[0].PerformedBy)
	assert.Equal(t, VerifiedByAI, records[0].VerifiedBy)

	alerts := e.Alerts().Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, PriorityLow, alerts[0].Priority)
	assert.Equal(t, StatusClean, alerts[0].Status)
	assert.Equal(t, "Room S", alerts[0].StationName)
	assert.False(t, alerts[0].IsRead)

	_, err = e.Observe(session.ID, 10)
	assert.ErrorIs(t, err, ErrNotFound, "a finished session is discarded")
	_, err = e.ActiveSession("S")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartCleaning_IllegalStates(t *testing.T) {
	e, _, _ := newTestEngine(t)
	provision(t, e, "seat-1")
	provision(t, e, "seat-2")

	_, err := e.StartCleaning("seat-1", "a")
	require.NoError(t, err)

	_, err = e.StartCleaning("seat-1", "someone else")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cleanStation(t, e, "seat-2")
	_, err = e.StartCleaning("seat-2", "a")
	assert.ErrorIs(t, err, ErrInvalidTransition, "CLEAN is not a cleanable predecessor")

	_, err = e.StartCleaning("missing", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartCleaning_ConcurrentCallersSerialize(t *testing.T) {
	e, _, _ := newTestEngine(t)
	provision(t, e, "seat-1")

	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.StartCleaning("seat-1", "x")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrInvalidTransition):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(31), rejected.Load())
}

func TestObserve_Clamping(t *testing.T) {
	e, _, _ := newTestEngine(t)
	provision(t, e, "seat-1")
	session, err := e.StartCleaning("seat-1", "a")
	require.NoError(t, err)

	out, err := e.Observe(session.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, 30.0, out.Score)

	out, err = e.Observe(session.ID, -50)
	require.NoError(t, err)
	assert.Equal(t, 30.0, out.Score, "negative deltas never lower the score")
	assert.Equal(t, OutcomePending, out.Result)

	_, err = e.Observe(session.ID, math.NaN())
	assert.ErrorIs(t, err, ErrValidation)
	active, err := e.ActiveSession("seat-1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, active.Score)
	assert.Equal(t, 2, active.Samples)

	_, err = e.Observe("unknown-session", 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestObserve_TimeoutFailsSession(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	provision(t, e, "seat-1")
	session, err := e.StartCleaning("seat-1", "Thomas Brown")
	require.NoError(t, err)

	_, err = e.Observe(session.ID, 40)
	require.NoError(t, err)
	_, err = e.Observe(session.ID, 40)
	require.NoError(t, err)

	fake.Advance(DefaultSettings().SessionTimeout + time.Second)
	out, err := e.Observe(session.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, out.Result)
	assert.Equal(t, ReasonTimeout, out.Reason)
	assert.Equal(t, 80.0, out.Score, "the late delta is not applied")

	st, _ := e.Station("seat-1")
	assert.Equal(t, StatusNeedsAttention, st.Status)
	assert.Nil(t, st.LastCleaned)

	records := e.History().Records()
	require.Len(t, records, 1)
	assert.Equal(t, StatusNeedsAttention, records[0].Status)
	assert.Equal(t, VerifiedBySystem, records[0].VerifiedBy)

	alerts := e.Alerts().Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, PriorityHigh, alerts[0].Priority)

	_, err = e.Observe(session.ID, 40)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpireSessions(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	provision(t, e, "seat-1")
	provision(t, e, "seat-2")
	_, err := e.StartCleaning("seat-1", "a")
	require.NoError(t, err)

	fake.Advance(time.Minute)
	_, err = e.StartCleaning("seat-2", "b")
	require.NoError(t, err)

	fake.Advance(time.Minute + time.Second)
	outcomes := e.ExpireSessions()
	require.Len(t, outcomes, 1)
	assert.Equal(t, ReasonTimeout, outcomes[0].Reason)

	s1, _ := e.Station("seat-1")
	s2, _ := e.Station("seat-2")
	assert.Equal(t, StatusNeedsAttention, s1.Status)
	assert.Equal(t, StatusInProgress, s2.Status)

	assert.Empty(t, e.ExpireSessions(), "nothing else has expired")
}

func TestResetSession(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	provision(t, e, "seat-1")
	session, err := e.StartCleaning("seat-1", "a")
	require.NoError(t, err)

	_, err = e.Observe(session.ID, 70)
	require.NoError(t, err)
	fake.Advance(90 * time.Second)

	out, err := e.ResetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.Score)
	assert.Equal(t, OutcomePending, out.Result)

	// The timeout window restarts with the retry.
	fake.Advance(90 * time.Second)
	out, err = e.Observe(session.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, out.Result)
}

func TestCancelCleaning(t *testing.T) {
	e, _, listener := newTestEngine(t)
	provision(t, e, "seat-1")

	assert.ErrorIs(t, e.CancelCleaning("seat-1"), ErrInvalidTransition)
	assert.ErrorIs(t, e.CancelCleaning("nope"), ErrNotFound)

	session, err := e.StartCleaning("seat-1", "a")
	require.NoError(t, err)
	require.NoError(t, e.CancelCleaning("seat-1"))

	st, _ := e.Station("seat-1")
	assert.Equal(t, StatusDirty, st.Status)
	assert.Equal(t, 0, e.History().Len(), "an abandoned attempt is not recorded")
	assert.Empty(t, e.Alerts().Alerts())
	assert.Equal(t, []Cause{CauseProvision, CauseStart, CauseCancel}, listener.causes())

	_, err = e.Observe(session.ID, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFailures_RaiseHighAlerts(t *testing.T) {
	testCases := []struct {
		name       string
		fail       func(e *Engine, stationID, sessionID string) (SessionOutcome, error)
		reason     FailureReason
		verifiedBy string
	}{
		{
			name: "pipeline reports coverage unmet",
			fail: func(e *Engine, _, sessionID string) (SessionOutcome, error) {
				return e.FailSession(sessionID, "")
			},
			reason:     ReasonCoverage,
			verifiedBy: VerifiedByAI,
		},
		{
			name: "operator flags the session",
			fail: func(e *Engine, stationID, _ string) (SessionOutcome, error) {
				return e.FlagFailure(stationID, "Nurse Kim", "visible residue")
			},
			reason:     ReasonOperator,
			verifiedBy: "Nurse Kim",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			provision(t, e, "seat-1")
			session, err := e.StartCleaning("seat-1", "a")
			require.NoError(t, err)

			out, err := tc.fail(e, "seat-1", session.ID)
			require.NoError(t, err)
			assert.Equal(t, OutcomeFailed, out.Result)
			assert.Equal(t, tc.reason, out.Reason)

			st, _ := e.Station("seat-1")
			assert.Equal(t, StatusNeedsAttention, st.Status)
			records := e.History().Records()
			require.Len(t, records, 1)
			assert.Equal(t, tc.verifiedBy, records[0].VerifiedBy)
			alerts := e.Alerts().Alerts()
			require.Len(t, alerts, 1)
			assert.Equal(t, PriorityHigh, alerts[0].Priority)

			// NEEDS_ATTENTION is a cleanable predecessor.
			_, err = e.StartCleaning("seat-1", "a")
			assert.NoError(t, err)
		})
	}
}

func TestFlagFailure_WithoutSession(t *testing.T) {
	e, _, _ := newTestEngine(t)
	provision(t, e, "seat-1")
	_, err := e.FlagFailure("seat-1", "x", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestScan_EscalationScenario(t *testing.T) {
	settings := DefaultSettings()
	settings.AttentionEscalationThreshold = time.Hour
	e, fake, _ := newTestEngine(t, WithSettings(settings))
	provision(t, e, "T")
	cleanStation(t, e, "T")

	st, _ := e.Station("T")
	fake.Set(st.NextScheduledCleaning.Add(2 * time.Hour))
	now := fake.Now()

	findings := e.Scan(now)
	require.Len(t, findings, 1)
	assert.Equal(t, "T", findings[0].StationID)
	assert.Equal(t, 2*time.Hour, findings[0].Overdue)
	assert.Equal(t, StatusNeedsAttention, findings[0].Target)
	assert.Equal(t, findings, e.Scan(now), "scan is idempotent")

	applied, err := e.ApplyOverdue(findings[0])
	require.NoError(t, err)
	assert.True(t, applied)

	st, _ = e.Station("T")
	assert.Equal(t, StatusNeedsAttention, st.Status)
	alerts := e.Alerts().Alerts()
	assert.Equal(t, 1, countPriority(alerts, PriorityHigh))

	applied, err = e.ApplyOverdue(findings[0])
	require.NoError(t, err)
	assert.False(t, applied, "second application is a no-op")
	assert.Equal(t, 1, countPriority(e.Alerts().Alerts(), PriorityHigh))
	assert.Empty(t, e.Scan(now))

	records := e.History().Records()
	last := records[len(records)-1]
	assert.Equal(t, StatusNeedsAttention, last.Status)
	assert.Equal(t, PerformedByScheduled, last.PerformedBy)
	assert.Equal(t, VerifiedBySystem, last.VerifiedBy)
}

func TestScan_MissWithinThresholdGoesDirty(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	provision(t, e, "seat-1")
	provision(t, e, "seat-2")
	cleanStation(t, e, "seat-1")

	st, _ := e.Station("seat-1")
	fake.Set(st.NextScheduledCleaning)
	assert.Empty(t, e.Scan(fake.Now()), "exactly at the deadline is not overdue")

	fake.Advance(30 * time.Minute)
	findings := e.Scan(fake.Now())
	require.Len(t, findings, 1, "DIRTY stations are never reported")
	assert.Equal(t, StatusDirty, findings[0].Target)

	applied, err := e.ApplyOverdue(findings[0])
	require.NoError(t, err)
	require.True(t, applied)

	st, _ = e.Station("seat-1")
	assert.Equal(t, StatusDirty, st.Status)
	alerts := e.Alerts().Alerts()
	last := alerts[len(alerts)-1]
	assert.Equal(t, PriorityMedium, last.Priority)
	assert.Equal(t, StatusDirty, last.Status)
	assert.Equal(t, "Scheduled cleaning missed", last.Message)
}

func TestApplyOverdue_UnknownStation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.ApplyOverdue(OverdueFinding{StationID: "ghost", ObservedAt: testStart})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLastCleanedNeverDecreases(t *testing.T) {
	e, fake, _ := newTestEngine(t)
	provision(t, e, "seat-1")
	cleanStation(t, e, "seat-1")
	first, _ := e.Station("seat-1")

	st, _ := e.Station("seat-1")
	fake.Set(st.NextScheduledCleaning.Add(time.Minute))
	for _, f := range e.Scan(fake.Now()) {
		_, err := e.ApplyOverdue(f)
		require.NoError(t, err)
	}

	// A clock stepping backwards must not move lastCleaned back.
	fake.Set(testStart.Add(-time.Hour))
	cleanStation(t, e, "seat-1")
	second, _ := e.Station("seat-1")
	assert.False(t, second.LastCleaned.Before(*first.LastCleaned))
}

func TestMarkRead(t *testing.T) {
	e, _, listener := newTestEngine(t)
	provision(t, e, "seat-1")
	provision(t, e, "seat-2")
	cleanStation(t, e, "seat-1")
	cleanStation(t, e, "seat-2")

	alerts := e.Alerts().Alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, 2, e.Alerts().UnreadCount())

	require.NoError(t, e.MarkAlertRead(alerts[0].ID))
	require.NoError(t, e.MarkAlertRead(alerts[0].ID), "re-marking is not an error")
	assert.True(t, e.Alerts().Alerts()[0].IsRead)
	assert.Len(t, listener.read, 1, "only the first call changed anything")
	assert.False(t, alerts[0].IsRead, "earlier snapshots are not mutated")

	assert.ErrorIs(t, e.MarkAlertRead("nope"), ErrNotFound)

	assert.Equal(t, 1, e.MarkAllAlertsRead())
	assert.Equal(t, 0, e.MarkAllAlertsRead())
	assert.Equal(t, 0, e.Alerts().UnreadCount())
}

func TestListenerFailureDoesNotRollBack(t *testing.T) {
	failing := &recordingListener{err: errors.New("db down")}
	e, _, _ := newTestEngine(t, WithListener(failing))
	provision(t, e, "seat-1")
	cleanStation(t, e, "seat-1")

	st, _ := e.Station("seat-1")
	assert.Equal(t, StatusClean, st.Status)
	assert.Equal(t, 1, e.History().Len())
	assert.Equal(t, uint64(3), e.DeliveryFailures(), "provision, start and completion each failed once")
}

func TestUpdateSettings(t *testing.T) {
	e, _, _ := newTestEngine(t)

	next := DefaultSettings()
	next.SessionTimeout = 5 * time.Minute

	assert.ErrorIs(t, e.UpdateSettings(RoleStaff, next), ErrForbidden)
	assert.Equal(t, DefaultSettings(), e.Settings())

	bad := next
	bad.CoverageThreshold = 140
	assert.ErrorIs(t, e.UpdateSettings(RoleAdmin, bad), ErrValidation)

	require.NoError(t, e.UpdateSettings(RoleAdmin, next))
	assert.Equal(t, 5*time.Minute, e.Settings().SessionTimeout)
}

type settingsRecorder struct {
	recordingListener
	updates []Settings
}

func (l *settingsRecorder) SettingsUpdated(s Settings) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, s)
	return nil
}

func TestUpdateSettingsFunc_ConcurrentPartialUpdates(t *testing.T) {
	listener := &settingsRecorder{}
	e, _, _ := newTestEngine(t, WithListener(listener))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := e.UpdateSettingsFunc(RoleAdmin, func(s Settings) (Settings, error) {
			s.SessionTimeout = 5 * time.Minute
			return s, nil
		})
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := e.UpdateSettingsFunc(RoleAdmin, func(s Settings) (Settings, error) {
			s.AlertTimeout = 30 * time.Minute
			return s, nil
		})
		assert.NoError(t, err)
	}()
	wg.Wait()

	got := e.Settings()
	assert.Equal(t, 5*time.Minute, got.SessionTimeout)
	assert.Equal(t, 30*time.Minute, got.AlertTimeout)
	require.Len(t, listener.updates, 2)
	assert.Equal(t, got, listener.updates[1])

	_, err := e.UpdateSettingsFunc(RoleAdmin, func(s Settings) (Settings, error) {
		return s, fmt.Errorf("%w: bad input", ErrValidation)
	})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = e.UpdateSettingsFunc(RolePatient, func(s Settings) (Settings, error) { return s, nil })
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Len(t, listener.updates, 2, "rejected updates are not broadcast")
}

func TestApplyOverdue_MissedAlertsDisabled(t *testing.T) {
	settings := DefaultSettings()
	settings.MissedCleaningAlert = false
	e, fake, _ := newTestEngine(t, WithSettings(settings))
	provision(t, e, "seat-1")
	cleanStation(t, e, "seat-1")
	before := len(e.Alerts().Alerts())

	st, _ := e.Station("seat-1")
	fake.Set(st.NextScheduledCleaning.Add(10 * time.Minute))
	findings := e.Scan(fake.Now())
	require.Len(t, findings, 1)
	applied, err := e.ApplyOverdue(findings[0])
	require.NoError(t, err)
	require.True(t, applied)

	st, _ = e.Station("seat-1")
	assert.Equal(t, StatusDirty, st.Status, "the station still leaves CLEAN")
	assert.Len(t, e.Alerts().Alerts(), before)
	records := e.History().Records()
	assert.Equal(t, PerformedByScheduled, records[len(records)-1].PerformedBy)
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	bad := DefaultSettings()
	bad.SessionTimeout = -time.Second
	_, err := New(WithSettings(bad))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRestore(t *testing.T) {
	e, _, listener := newTestEngine(t)
	cleaned := testStart.Add(-time.Hour)
	e.Restore(
		[]Station{
			{ID: "seat-1", Name: "A", Status: StatusClean, LastCleaned: &cleaned, NextScheduledCleaning: testStart.Add(time.Hour)},
			{ID: "seat-2", Name: "B", Status: StatusInProgress},
		},
		[]SanitizationRecord{{ID: "r1", StationID: "seat-1", Status: StatusClean, Timestamp: cleaned}},
		[]Alert{{ID: "a1", StationID: "seat-1", Priority: PriorityLow}},
	)

	stations := e.Stations()
	require.Len(t, stations, 2)
	assert.Equal(t, StatusClean, stations[0].Status)
	assert.Equal(t, StatusDirty, stations[1].Status, "a session cannot survive a restart")
	assert.Equal(t, 1, e.History().Len())
	assert.Len(t, e.Alerts().Alerts(), 1)
	assert.Equal(t, []Cause{CauseCancel}, listener.causes())

	_, err := e.StartCleaning("seat-2", "a")
	assert.NoError(t, err)
}
