package engine

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sanitization-status-backend/internal/clock"
)

// CauseProvision marks the commit emitted when a station is first created.
const CauseProvision Cause = "provision"

// Listener receives committed state. Implementations must not block; a
// returned error is logged as a delivery failure and never rolls back state.
type Listener interface {
	TransitionCommitted(c Commit) error
	AlertsRead(ids []string) error
}

// SettingsListener is an optional Listener extension told about every
// accepted settings change.
type SettingsListener interface {
	SettingsUpdated(s Settings) error
}

// Role gates configuration changes.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStaff   Role = "STAFF"
	RolePatient Role = "PATIENT"
)

// stationEntry owns one station and its live session. mu serializes every
// transition of that station.
type stationEntry struct {
	mu        sync.Mutex
	station   Station
	session   *Session
	performer string
}

// Engine is the station state machine.
type Engine struct {
	clock     clock.Clock
	logger    *log.Logger
	newID     func() string
	settings  atomic.Pointer[Settings]
	settingMu sync.Mutex // serializes settings updates
	retention int

	mu       sync.RWMutex // guards stations membership only
	stations map[string]*stationEntry
	sessions sync.Map // session id -> station id

	alerts    *AlertGenerator
	history   *HistoryLog
	listeners []Listener

	deliveryFailures atomic.Uint64
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the default clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator overrides the uuid-based id generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithSettings sets the initial settings.
func WithSettings(s Settings) Option {
	return func(e *Engine) {
		e.settings.Store(&s)
	}
}

// WithListener registers listeners notified after every commit.
func WithListener(listeners ...Listener) Option {
	return func(e *Engine) {
		for _, l := range listeners {
			if l != nil {
				e.listeners = append(e.listeners, l)
			}
		}
	}
}

// WithAlertRetention caps the number of retained alerts; read alerts are evicted first.
func WithAlertRetention(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.retention = n
		}
	}
}

// New constructs an engine with no stations.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		clock:    clock.Real{},
		logger:   log.Default(),
		newID:    uuid.NewString,
		stations: make(map[string]*stationEntry),
		history:  NewHistoryLog(),
	}
	defaults := DefaultSettings()
	e.settings.Store(&defaults)
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Settings().Validate(); err != nil {
		return nil, err
	}
	e.alerts = NewAlertGenerator(e.clock, e.newID, e.Settings, e.retention)
	return e, nil
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	return *e.settings.Load()
}

// UpdateSettings replaces the settings. Only ADMIN may change them.
func (e *Engine) UpdateSettings(role Role, s Settings) error {
	_, err := e.UpdateSettingsFunc(role, func(Settings) (Settings, error) { return s, nil })
	return err
}

// UpdateSettingsFunc applies fn to the current settings and stores the
// result. Concurrent updates are serialized so a partial change never
// overwrites another one. Only ADMIN may change settings.
func (e *Engine) UpdateSettingsFunc(role Role, fn func(Settings) (Settings, error)) (Settings, error) {
	if role != RoleAdmin {
		return Settings{}, fmt.Errorf("%w: role %q may not update configuration", ErrForbidden, role)
	}

	e.settingMu.Lock()
	defer e.settingMu.Unlock()

	s, err := fn(e.Settings())
	if err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	e.settings.Store(&s)
	e.logger.Printf("settings updated: interval=%s escalation=%s session_timeout=%s alert_timeout=%s missed_alerts=%t delayed_alerts=%t",
		s.CleaningIntervalAfterSuccess, s.AttentionEscalationThreshold, s.SessionTimeout, s.AlertTimeout,
		s.MissedCleaningAlert, s.DelayedCleaningAlert)

	for _, l := range e.listeners {
		sl, ok := l.(SettingsListener)
		if !ok {
			continue
		}
		if err := sl.SettingsUpdated(s); err != nil {
			e.deliveryFailures.Add(1)
			e.logger.Printf("settings update: %v", fmt.Errorf("%w: %v", ErrDeliveryFailure, err))
		}
	}
	return s, nil
}

// Alerts exposes the alert generator for read access.
func (e *Engine) Alerts() *AlertGenerator {
	return e.alerts
}

// History exposes the history log for read access.
func (e *Engine) History() *HistoryLog {
	return e.history
}

// DeliveryFailures returns how many listener calls have failed.
func (e *Engine) DeliveryFailures() uint64 {
	return e.deliveryFailures.Load()
}

// ProvisionRequest describes a new station.
type ProvisionRequest struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	Location              string     `json:"location"`
	Department            string     `json:"department"`
	NextScheduledCleaning *time.Time `json:"nextScheduledCleaning,omitempty"`
}

// Provision registers a new station in DIRTY state.
func (e *Engine) Provision(req ProvisionRequest) (Station, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if req.ID == "" || req.Name == "" {
		return Station{}, fmt.Errorf("%w: station id and name are required", ErrValidation)
	}

	now := e.clock.Now()
	station := Station{
		ID:                    req.ID,
		Name:                  req.Name,
		Location:              strings.TrimSpace(req.Location),
		Department:            strings.TrimSpace(req.Department),
		Status:                StatusDirty,
		NextScheduledCleaning: now,
	}
	if req.NextScheduledCleaning != nil {
		station.NextScheduledCleaning = *req.NextScheduledCleaning
	}

	entry := &stationEntry{station: station}
	e.mu.Lock()
	if _, exists := e.stations[station.ID]; exists {
		e.mu.Unlock()
		return Station{}, fmt.Errorf("%w: station %q already provisioned", ErrValidation, station.ID)
	}
	e.stations[station.ID] = entry
	entry.mu.Lock()
	e.mu.Unlock()
	defer entry.mu.Unlock()

	e.notify(Commit{Transition: Transition{Station: station.clone(), To: StatusDirty, Cause: CauseProvision, At: now}})
	return station.clone(), nil
}

// Restore loads persisted state. Stations persisted IN_PROGRESS lost their
// session and are returned to DIRTY.
func (e *Engine) Restore(stations []Station, records []SanitizationRecord, alerts []Alert) {
	now := e.clock.Now()
	var abandoned []Commit

	e.mu.Lock()
	for _, s := range stations {
		if _, ok := ParseStatus(string(s.Status)); !ok {
			e.logger.Printf("restore: station %s has unknown status %q, treating as DIRTY", s.ID, s.Status)
			s.Status = StatusDirty
		}
		if s.Status == StatusInProgress {
			s.Status = StatusDirty
			abandoned = append(abandoned, Commit{Transition: Transition{
				Station: s.clone(), From: StatusInProgress, To: StatusDirty, Cause: CauseCancel, At: now,
			}})
		}
		e.stations[s.ID] = &stationEntry{station: s.clone()}
	}
	e.mu.Unlock()

	e.history.restore(records)
	e.alerts.restore(alerts)

	for _, c := range abandoned {
		e.logger.Printf("restore: station %s was mid-session at shutdown, reset to DIRTY", c.Transition.Station.ID)
		e.notify(c)
	}
}

func (e *Engine) entry(stationID string) (*stationEntry, error) {
	e.mu.RLock()
	entry, ok := e.stations[stationID]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: station %q", ErrNotFound, stationID)
	}
	return entry, nil
}

func (e *Engine) entries() []*stationEntry {
	e.mu.RLock()
	out := make([]*stationEntry, 0, len(e.stations))
	for _, entry := range e.stations {
		out = append(out, entry)
	}
	e.mu.RUnlock()
	return out
}

// Station returns a snapshot of one station.
func (e *Engine) Station(stationID string) (Station, error) {
	entry, err := e.entry(stationID)
	if err != nil {
		return Station{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.station.clone(), nil
}

// Stations returns snapshots of every station ordered by id.
func (e *Engine) Stations() []Station {
	entries := e.entries()
	out := make([]Station, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		out = append(out, entry.station.clone())
		entry.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveSession returns a copy of the station's live session.
func (e *Engine) ActiveSession(stationID string) (Session, error) {
	entry, err := e.entry(stationID)
	if err != nil {
		return Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session == nil {
		return Session{}, fmt.Errorf("%w: no active session for station %q", ErrNotFound, stationID)
	}
	return *entry.session, nil
}

// StartCleaning opens a detection session for a DIRTY or NEEDS_ATTENTION station.
func (e *Engine) StartCleaning(stationID, performedBy string) (Session, error) {
	entry, err := e.entry(stationID)
	if err != nil {
		return Session{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	from := entry.station.Status
	if entry.session != nil || from == StatusInProgress {
		return Session{}, fmt.Errorf("%w: station %q is already being cleaned", ErrInvalidTransition, stationID)
	}
	if !from.Cleanable() {
		return Session{}, fmt.Errorf("%w: cannot start cleaning station %q from %s", ErrInvalidTransition, stationID, from)
	}

	now := e.clock.Now()
	session := newSession(e.newID(), stationID, now)
	entry.session = session
	entry.performer = strings.TrimSpace(performedBy)
	entry.station.Status = StatusInProgress
	e.sessions.Store(session.ID, stationID)

	e.commit(entry, Transition{From: from, To: StatusInProgress, Cause: CauseStart, At: now}, nil)
	return *session, nil
}

// sessionEntry resolves a live session to its locked station entry. The
// caller must unlock entry.mu.
func (e *Engine) sessionEntry(sessionID string) (*stationEntry, error) {
	v, ok := e.sessions.Load(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: session %q", ErrNotFound, sessionID)
	}
	entry, err := e.entry(v.(string))
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	if entry.session == nil || entry.session.ID != sessionID {
		entry.mu.Unlock()
		return nil, fmt.Errorf("%w: session %q is no longer active", ErrNotFound, sessionID)
	}
	return entry, nil
}

// Observe feeds a confidence delta into a live session. A session past its
// timeout fails with reason TIMEOUT instead of accumulating.
func (e *Engine) Observe(sessionID string, delta float64) (SessionOutcome, error) {
	entry, err := e.sessionEntry(sessionID)
	if err != nil {
		return SessionOutcome{}, err
	}
	defer entry.mu.Unlock()

	now := e.clock.Now()
	session := entry.session
	if session.Expired(now, e.Settings().SessionTimeout) {
		outcome := session.Fail(ReasonTimeout)
		e.failSession(entry, now, CauseTimeout, VerifiedBySystem,
			fmt.Sprintf("Verification timed out at %.0f%% confidence", session.Score))
		return outcome, nil
	}

	outcome, err := session.Observe(delta)
	if err != nil {
		return outcome, err
	}
	if outcome.Result == OutcomeSucceeded {
		e.completeSession(entry, now)
	}
	return outcome, nil
}

// ResetSession restarts a live session at score zero for a manual retry.
func (e *Engine) ResetSession(sessionID string) (SessionOutcome, error) {
	entry, err := e.sessionEntry(sessionID)
	if err != nil {
		return SessionOutcome{}, err
	}
	defer entry.mu.Unlock()

	entry.session.Reset(e.clock.Now())
	return entry.session.outcome(OutcomePending, ""), nil
}

// FailSession fails a live session reported by the detection pipeline as not
// meeting its coverage criteria.
func (e *Engine) FailSession(sessionID, notes string) (SessionOutcome, error) {
	entry, err := e.sessionEntry(sessionID)
	if err != nil {
		return SessionOutcome{}, err
	}
	defer entry.mu.Unlock()

	if notes == "" {
		notes = "Partial cleaning detected, verification failed"
	}
	outcome := entry.session.Fail(ReasonCoverage)
	e.failSession(entry, e.clock.Now(), CauseDetectionFailed, VerifiedByAI, notes)
	return outcome, nil
}

// FlagFailure lets an operator fail the station's live session.
func (e *Engine) FlagFailure(stationID, flaggedBy, notes string) (SessionOutcome, error) {
	entry, err := e.entry(stationID)
	if err != nil {
		return SessionOutcome{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session == nil {
		return SessionOutcome{}, fmt.Errorf("%w: station %q has no cleaning in progress", ErrInvalidTransition, stationID)
	}
	verifier := strings.TrimSpace(flaggedBy)
	if verifier == "" {
		verifier = VerifiedBySystem
	}
	if notes == "" {
		notes = "Flagged by operator"
	}
	outcome := entry.session.Fail(ReasonOperator)
	e.failSession(entry, e.clock.Now(), CauseOperatorFlag, verifier, notes)
	return outcome, nil
}

// CancelCleaning abandons the live session and returns the station to DIRTY
// without writing history.
func (e *Engine) CancelCleaning(stationID string) error {
	entry, err := e.entry(stationID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.session == nil || entry.station.Status != StatusInProgress {
		return fmt.Errorf("%w: station %q has no cleaning in progress", ErrInvalidTransition, stationID)
	}
	e.discardSession(entry)
	entry.station.Status = StatusDirty
	e.commit(entry, Transition{From: StatusInProgress, To: StatusDirty, Cause: CauseCancel, At: e.clock.Now()}, nil)
	return nil
}

// ExpireSessions fails every live session that has run past the session timeout.
func (e *Engine) ExpireSessions() []SessionOutcome {
	timeout := e.Settings().SessionTimeout
	var outcomes []SessionOutcome
	for _, entry := range e.entries() {
		entry.mu.Lock()
		now := e.clock.Now()
		if entry.session != nil && entry.session.Expired(now, timeout) {
			session := entry.session
			outcomes = append(outcomes, session.Fail(ReasonTimeout))
			e.failSession(entry, now, CauseTimeout, VerifiedBySystem,
				fmt.Sprintf("Verification timed out at %.0f%% confidence", session.Score))
		}
		entry.mu.Unlock()
	}
	return outcomes
}

// Scan reports every CLEAN station whose next scheduled cleaning is before now.
// It does not modify any station.
func (e *Engine) Scan(now time.Time) []OverdueFinding {
	threshold := e.Settings().AttentionEscalationThreshold
	var findings []OverdueFinding
	for _, entry := range e.entries() {
		entry.mu.Lock()
		s := entry.station
		entry.mu.Unlock()

		if s.Status != StatusClean || !now.After(s.NextScheduledCleaning) {
			continue
		}
		overdue := now.Sub(s.NextScheduledCleaning)
		findings = append(findings, OverdueFinding{
			StationID:    s.ID,
			StationName:  s.Name,
			ScheduledFor: s.NextScheduledCleaning,
			Overdue:      overdue,
			Target:       overdueTarget(overdue, threshold),
			ObservedAt:   now,
		})
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].StationID < findings[j].StationID })
	return findings
}

// ApplyOverdue moves a still-CLEAN station to DIRTY or NEEDS_ATTENTION. It
// reports false without error when the station has already left CLEAN.
func (e *Engine) ApplyOverdue(f OverdueFinding) (bool, error) {
	entry, err := e.entry(f.StationID)
	if err != nil {
		return false, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s := entry.station
	if s.Status != StatusClean || !f.ObservedAt.After(s.NextScheduledCleaning) {
		return false, nil
	}
	overdue := f.ObservedAt.Sub(s.NextScheduledCleaning)
	target := overdueTarget(overdue, e.Settings().AttentionEscalationThreshold)

	now := e.clock.Now()
	entry.station.Status = target
	rec := e.record(entry.station, now, PerformedByScheduled, VerifiedBySystem,
		fmt.Sprintf("Missed cleaning cycle, overdue by %s", overdue.Truncate(time.Minute)))
	e.commit(entry, Transition{From: StatusClean, To: target, Cause: CauseScheduleMiss, At: now, Overdue: overdue}, &rec)
	return true, nil
}

func (e *Engine) completeSession(entry *stationEntry, now time.Time) {
	session := entry.session
	e.discardSession(entry)

	cleanedAt := now
	if last := entry.station.LastCleaned; last != nil && last.After(cleanedAt) {
		cleanedAt = *last
	}
	entry.station.Status = StatusClean
	entry.station.LastCleaned = &cleanedAt
	entry.station.NextScheduledCleaning = now.Add(e.Settings().CleaningIntervalAfterSuccess)

	rec := e.record(entry.station, now, entry.performer, VerifiedByAI,
		fmt.Sprintf("Verified after %d samples in %s", session.Samples, session.Elapsed(now).Truncate(time.Second)))
	e.commit(entry, Transition{From: StatusInProgress, To: StatusClean, Cause: CauseDetectionPassed, At: now}, &rec)
}

func (e *Engine) failSession(entry *stationEntry, now time.Time, cause Cause, verifiedBy, notes string) {
	e.discardSession(entry)
	entry.station.Status = StatusNeedsAttention
	rec := e.record(entry.station, now, entry.performer, verifiedBy, notes)
	e.commit(entry, Transition{From: StatusInProgress, To: StatusNeedsAttention, Cause: cause, At: now}, &rec)
}

func (e *Engine) discardSession(entry *stationEntry) {
	if entry.session != nil {
		e.sessions.Delete(entry.session.ID)
		entry.session = nil
	}
}

func (e *Engine) record(s Station, now time.Time, performedBy, verifiedBy, notes string) SanitizationRecord {
	if performedBy == "" {
		performedBy = "Unknown"
	}
	return SanitizationRecord{
		ID:          e.newID(),
		StationID:   s.ID,
		Timestamp:   now,
		Status:      s.Status,
		PerformedBy: performedBy,
		VerifiedBy:  verifiedBy,
		Notes:       notes,
	}
}

// commit finishes a transition already applied to entry.station: history
// append, alert generation and listener notification. Caller holds entry.mu.
func (e *Engine) commit(entry *stationEntry, t Transition, rec *SanitizationRecord) {
	t.Station = entry.station.clone()
	if rec != nil {
		stored := e.history.append(*rec)
		rec = &stored
	}
	alert := e.alerts.OnTransition(t)
	e.notify(Commit{Transition: t, Record: rec, Alert: alert})
}

func (e *Engine) notify(c Commit) {
	for _, l := range e.listeners {
		if err := l.TransitionCommitted(c); err != nil {
			e.deliveryFailures.Add(1)
			e.logger.Printf("station %s %s->%s: %v", c.Transition.Station.ID, c.Transition.From, c.Transition.To,
				fmt.Errorf("%w: %v", ErrDeliveryFailure, err))
		}
	}
}

// MarkAlertRead marks one alert read and tells listeners when it changed.
func (e *Engine) MarkAlertRead(id string) error {
	changed, err := e.alerts.MarkRead(id)
	if err != nil {
		return err
	}
	if changed {
		e.notifyRead([]string{id})
	}
	return nil
}

// MarkAllAlertsRead marks every unread alert read and returns how many changed.
func (e *Engine) MarkAllAlertsRead() int {
	ids := e.alerts.MarkAllRead()
	if len(ids) > 0 {
		e.notifyRead(ids)
	}
	return len(ids)
}

func (e *Engine) notifyRead(ids []string) {
	for _, l := range e.listeners {
		if err := l.AlertsRead(ids); err != nil {
			e.deliveryFailures.Add(1)
			e.logger.Printf("alerts read (%d): %v", len(ids), fmt.Errorf("%w: %v", ErrDeliveryFailure, err))
		}
	}
}
