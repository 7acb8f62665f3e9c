package engine

import (
	"fmt"
	"math"
	"time"
)

// MaxScore is the confidence at which a session counts as verified.
const MaxScore = 100.0

// Outcome is the result of feeding a session.
type Outcome string

const (
	OutcomePending   Outcome = "PENDING"
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
)

// FailureReason explains a failed outcome.
type FailureReason string

const (
	ReasonTimeout  FailureReason = "TIMEOUT"
	ReasonCoverage FailureReason = "COVERAGE"
	ReasonOperator FailureReason = "OPERATOR"
)

// SessionOutcome is returned for every observation.
type SessionOutcome struct {
	SessionID string        `json:"sessionId"`
	Result    Outcome       `json:"result"`
	Reason    FailureReason `json:"reason,omitempty"`
	Score     float64       `json:"score"`
	Samples   int           `json:"samples"`
}

// Session accumulates detection confidence for one cleaning attempt. It is
// not safe for concurrent use; the owning station entry serializes access.
type Session struct {
	ID        string    `json:"id"`
	StationID string    `json:"stationId"`
	StartedAt time.Time `json:"startedAt"`
	Score     float64   `json:"score"`
	Samples   int       `json:"samples"`
	done      bool
}

func newSession(id, stationID string, now time.Time) *Session {
	return &Session{ID: id, StationID: stationID, StartedAt: now}
}

// Observe adds a confidence delta. Negative deltas contribute nothing so the
// score never decreases; the score clamps at MaxScore, which succeeds the session.
func (s *Session) Observe(delta float64) (SessionOutcome, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return s.outcome(OutcomePending, ""), fmt.Errorf("%w: confidence delta must be finite, got %v", ErrValidation, delta)
	}
	if s.done {
		return s.outcome(OutcomeSucceeded, ""), nil
	}
	s.Samples++
	if delta > 0 {
		s.Score += delta
	}
	if s.Score >= MaxScore {
		s.Score = MaxScore
		s.done = true
		return s.outcome(OutcomeSucceeded, ""), nil
	}
	return s.outcome(OutcomePending, ""), nil
}

// Reset restarts the session at score zero.
func (s *Session) Reset(now time.Time) {
	s.Score = 0
	s.Samples = 0
	s.StartedAt = now
	s.done = false
}

// Expired reports whether the session has run past timeout without succeeding.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	return !s.done && now.Sub(s.StartedAt) >= timeout
}

// Fail produces a failed outcome with the given reason.
func (s *Session) Fail(reason FailureReason) SessionOutcome {
	return s.outcome(OutcomeFailed, reason)
}

// Elapsed returns how long the session has been running.
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}

func (s *Session) outcome(result Outcome, reason FailureReason) SessionOutcome {
	return SessionOutcome{
		SessionID: s.ID,
		Result:    result,
		Reason:    reason,
		Score:     s.Score,
		Samples:   s.Samples,
	}
}
