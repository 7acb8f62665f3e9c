// Package engine holds the station sanitization state machine, the detection
// accumulator, the alert generator and the history log.
package engine

import "time"

// Status is the lifecycle state of a station.
type Status string

const (
	StatusClean          Status = "CLEAN"
	StatusDirty          Status = "DIRTY"
	StatusInProgress     Status = "IN_PROGRESS"
	StatusNeedsAttention Status = "NEEDS_ATTENTION"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusClean, StatusDirty, StatusInProgress, StatusNeedsAttention}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, bool) {
	for _, s := range Statuses {
		if string(s) == raw {
			return s, true
		}
	}
	return "", false
}

// Priority ranks alerts.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ParsePriority validates a raw priority string.
func ParsePriority(raw string) (Priority, bool) {
	switch Priority(raw) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(raw), true
	}
	return "", false
}

// Rank orders priorities, HIGH first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Station is a physical surface tracked for sanitization.
type Station struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	Location              string     `json:"location"`
	Department            string     `json:"department"`
	Status                Status     `json:"status"`
	LastCleaned           *time.Time `json:"lastCleaned,omitempty"`
	NextScheduledCleaning time.Time  `json:"nextScheduledCleaning"`
}

// clone returns a copy that shares no pointers with s.
func (s Station) clone() Station {
	if s.LastCleaned != nil {
		t := *s.LastCleaned
		s.LastCleaned = &t
	}
	return s
}

// Performer and verifier names used for system-generated records.
const (
	PerformedByScheduled = "Scheduled"
	VerifiedByAI         = "AI System"
	VerifiedBySystem     = "System"
)

// SanitizationRecord is an immutable history entry.
type SanitizationRecord struct {
	ID          string    `json:"id"`
	StationID   string    `json:"stationId"`
	Timestamp   time.Time `json:"timestamp"`
	Status      Status    `json:"status"`
	PerformedBy string    `json:"performedBy"`
	VerifiedBy  string    `json:"verifiedBy"`
	Notes       string    `json:"notes"`
	Seq         uint64    `json:"seq"`
}

// Alert is a prioritized notification about a station.
type Alert struct {
	ID          string    `json:"id"`
	StationID   string    `json:"stationId"`
	StationName string    `json:"stationName"`
	Status      Status    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
	Priority    Priority  `json:"priority"`
	IsRead      bool      `json:"isRead"`
	Seq         uint64    `json:"seq"`
}

// Cause names what drove a transition.
type Cause string

const (
	CauseStart           Cause = "start"
	CauseDetectionPassed Cause = "detection_passed"
	CauseDetectionFailed Cause = "detection_failed"
	CauseTimeout         Cause = "timeout"
	CauseOperatorFlag    Cause = "operator_flag"
	CauseCancel          Cause = "cancel"
	CauseScheduleMiss    Cause = "schedule_miss"
)

// Transition describes one committed status change.
type Transition struct {
	Station Station       `json:"station"`
	From    Status        `json:"from"`
	To      Status        `json:"to"`
	Cause   Cause         `json:"cause"`
	At      time.Time     `json:"at"`
	Overdue time.Duration `json:"overdue,omitempty"`
}

// Commit bundles everything a transition produced. Record and Alert are nil
// when the transition did not write history or raise an alert.
type Commit struct {
	Transition Transition
	Record     *SanitizationRecord
	Alert      *Alert
}

// OverdueFinding is produced by Scan for a CLEAN station past its schedule.
type OverdueFinding struct {
	StationID    string        `json:"stationId"`
	StationName  string        `json:"stationName"`
	ScheduledFor time.Time     `json:"scheduledFor"`
	Overdue      time.Duration `json:"overdue"`
	Target       Status        `json:"target"`
	ObservedAt   time.Time     `json:"observedAt"`
}
