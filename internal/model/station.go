package model

import "time"

// Station is the persisted form of a tracked station.
type Station struct {
	ID                    string     `gorm:"primaryKey;size:64"`
	Name                  string     `gorm:"size:256;not null"`
	Location              string     `gorm:"size:256"`
	Department            string     `gorm:"size:128;index"`
	Floor                 int        `gorm:"index"`
	Wing                  string     `gorm:"size:128"`
	Status                string     `gorm:"size:32;not null;index"`
	LastCleaned           *time.Time
	NextScheduledCleaning time.Time `gorm:"not null"`
	CreatedAt             time.Time `gorm:"not null"`
	UpdatedAt             time.Time `gorm:"not null"`
}
