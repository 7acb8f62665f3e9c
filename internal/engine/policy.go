package engine

import "time"

// statusPolicy is the single place status-dependent behaviour is looked up.
type statusPolicy struct {
	Label     string
	Color     string
	Cleanable bool // may start a detection session from this status
}

var statusPolicies = map[Status]statusPolicy{
	StatusClean:          {Label: "Clean", Color: "green"},
	StatusDirty:          {Label: "Needs Cleaning", Color: "red", Cleanable: true},
	StatusInProgress:     {Label: "Cleaning in Progress", Color: "blue"},
	StatusNeedsAttention: {Label: "Needs Attention", Color: "yellow", Cleanable: true},
}

// Label returns the human-readable status name.
func (s Status) Label() string {
	return statusPolicies[s].Label
}

// Color returns the display color associated with the status.
func (s Status) Color() string {
	return statusPolicies[s].Color
}

// Cleanable reports whether a cleaning session may start from s.
func (s Status) Cleanable() bool {
	return statusPolicies[s].Cleanable
}

type alertPolicy struct {
	Priority Priority
	Message  string
}

// alertPolicies maps a transition cause to the alert it raises. Causes that are
// absent (start, cancel) raise nothing.
var alertPolicies = map[Cause]alertPolicy{
	CauseDetectionPassed: {Priority: PriorityLow, Message: "Sanitization complete"},
	CauseDetectionFailed: {Priority: PriorityHigh, Message: "Sanitization check failed"},
	CauseTimeout:         {Priority: PriorityHigh, Message: "Sanitization timed out before verification"},
	CauseOperatorFlag:    {Priority: PriorityHigh, Message: "Sanitization flagged by operator"},
	CauseScheduleMiss:    {Priority: PriorityMedium, Message: "Scheduled cleaning missed"},
}

var escalatedOverdue = alertPolicy{Priority: PriorityHigh, Message: "Scheduled cleaning overdue, attention required"}

// overdueTarget picks the status a CLEAN station moves to once overdue.
func overdueTarget(overdue, threshold time.Duration) Status {
	if overdue > threshold {
		return StatusNeedsAttention
	}
	return StatusDirty
}

// overduePolicy returns the alert policy for an overdue finding.
func overduePolicy(overdue, threshold time.Duration) alertPolicy {
	if overdue > threshold {
		return escalatedOverdue
	}
	return alertPolicies[CauseScheduleMiss]
}
