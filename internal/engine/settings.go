package engine

import (
	"fmt"
	"math"
	"time"
)

// Settings holds the recognized configuration options of the engine.
type Settings struct {
	CleaningIntervalAfterSuccess time.Duration `json:"cleaningIntervalAfterSuccess"`
	AttentionEscalationThreshold time.Duration `json:"attentionEscalationThreshold"`
	SessionTimeout               time.Duration `json:"sessionTimeout"`
	MinimumCleaningTime          time.Duration `json:"minimumCleaningTime"`
	CoverageThreshold            float64       `json:"coverageThreshold"`
	AlertTimeout                 time.Duration `json:"alertTimeout"`
	MissedCleaningAlert          bool          `json:"missedCleaningAlert"`
	DelayedCleaningAlert         bool          `json:"delayedCleaningAlert"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		CleaningIntervalAfterSuccess: 4 * time.Hour,
		AttentionEscalationThreshold: time.Hour,
		SessionTimeout:               2 * time.Minute,
		MinimumCleaningTime:          30 * time.Second,
		CoverageThreshold:            95,
		AlertTimeout:                 15 * time.Minute,
		MissedCleaningAlert:          true,
		DelayedCleaningAlert:         true,
	}
}

// Validate rejects non-positive durations and out-of-range percentages.
func (s Settings) Validate() error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"cleaningIntervalAfterSuccess", s.CleaningIntervalAfterSuccess},
		{"attentionEscalationThreshold", s.AttentionEscalationThreshold},
		{"sessionTimeout", s.SessionTimeout},
		{"minimumCleaningTime", s.MinimumCleaningTime},
		{"alertTimeout", s.AlertTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrValidation, d.name, d.value)
		}
	}
	if s.MinimumCleaningTime > s.SessionTimeout {
		return fmt.Errorf("%w: minimumCleaningTime %s exceeds sessionTimeout %s", ErrValidation, s.MinimumCleaningTime, s.SessionTimeout)
	}
	if math.IsNaN(s.CoverageThreshold) || s.CoverageThreshold <= 0 || s.CoverageThreshold > 100 {
		return fmt.Errorf("%w: coverageThreshold must be in (0, 100], got %v", ErrValidation, s.CoverageThreshold)
	}
	return nil
}
