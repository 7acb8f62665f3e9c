package model

import "time"

// SanitizationRecord is one completed or missed sanitization cycle (append-only).
type SanitizationRecord struct {
	ID          string    `gorm:"primaryKey;size:64"`
	StationID   string    `gorm:"size:64;not null;index:idx_records_station_time,priority:1"`
	Timestamp   time.Time `gorm:"not null;index:idx_records_station_time,priority:2;index"`
	Status      string    `gorm:"size:32;not null"`
	PerformedBy string    `gorm:"size:128;not null"`
	VerifiedBy  string    `gorm:"size:128;not null"`
	Notes       string    `gorm:"type:text"`
	Seq         uint64    `gorm:"not null;default:0"`
}

// Alert is a prioritized notification about a station.
type Alert struct {
	ID          string    `gorm:"primaryKey;size:64"`
	StationID   string    `gorm:"size:64;not null;index"`
	StationName string    `gorm:"size:256;not null"`
	Status      string    `gorm:"size:32;not null"`
	Timestamp   time.Time `gorm:"not null;index"`
	Message     string    `gorm:"size:512;not null"`
	Priority    string    `gorm:"size:16;not null"`
	IsRead      bool      `gorm:"not null"`
	Seq         uint64    `gorm:"not null;default:0"`
}
