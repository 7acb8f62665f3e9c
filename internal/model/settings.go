package model

import "time"

// SettingsRowID is the primary key of the only engine_settings row.
const SettingsRowID = 1

// EngineSettings holds the settings last accepted at runtime. Durations are
// stored in milliseconds.
type EngineSettings struct {
	ID                           uint    `gorm:"primaryKey;autoIncrement:false"`
	CleaningIntervalAfterSuccess int64   `gorm:"not null"`
	AttentionEscalationThreshold int64   `gorm:"not null"`
	SessionTimeout               int64   `gorm:"not null"`
	MinimumCleaningTime          int64   `gorm:"not null"`
	CoverageThreshold            float64 `gorm:"not null"`
	AlertTimeout                 int64   `gorm:"not null"`
	MissedCleaningAlert          bool    `gorm:"not null"`
	DelayedCleaningAlert         bool    `gorm:"not null"`
	UpdatedAt                    time.Time
}

// TableName pins the table name.
func (EngineSettings) TableName() string {
	return "engine_settings"
}
