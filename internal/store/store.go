package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/model"
)

// ErrSubscriptionNotFound is returned when no subscription has the endpoint.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// State is everything needed to rebuild the engine after a restart. Settings
// is nil until settings have been changed at runtime.
type State struct {
	Stations []engine.Station
	Records  []engine.SanitizationRecord
	Alerts   []engine.Alert
	Settings *engine.Settings
}

// Store defines the interface for all database operations.
type Store interface {
	SaveCommit(ctx context.Context, c engine.Commit) error
	MarkAlertsRead(ctx context.Context, ids []string) error
	SaveSettings(ctx context.Context, s engine.Settings) error
	LoadState(ctx context.Context) (State, error)

	SaveSubscription(ctx context.Context, sub model.PushSubscription, stationIDs []string) error
	GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForStation(ctx context.Context, stationID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// SaveCommit persists a committed transition: the station row, plus the
// history record and alert when the transition produced them.
func (s *gormStore) SaveCommit(ctx context.Context, c engine.Commit) error {
	station := toStationModel(c.Transition.Station)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertStation(tx, &station); err != nil {
			return err
		}
		if c.Record != nil {
			rec := toRecordModel(*c.Record)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
				return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
			}
		}
		if c.Alert != nil {
			alert := toAlertModel(*c.Alert)
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&alert).Error; err != nil {
				return fmt.Errorf("failed to insert alert %s: %w", alert.ID, err)
			}
		}
		return nil
	})
}

func upsertStation(tx *gorm.DB, station *model.Station) error {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "location", "department", "floor", "wing", "status",
			"last_cleaned", "next_scheduled_cleaning", "updated_at",
		}),
	}).Create(station).Error
	if err != nil {
		return fmt.Errorf("failed to upsert station %s: %w", station.ID, err)
	}
	return nil
}

// MarkAlertsRead flags the given alerts read.
func (s *gormStore) MarkAlertsRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&model.Alert{}).Where("id IN ?", ids).Update("is_read", true).Error; err != nil {
		return fmt.Errorf("failed to mark %d alerts read: %w", len(ids), err)
	}
	return nil
}

// SaveSettings stores the settings row, replacing any earlier one.
func (s *gormStore) SaveSettings(ctx context.Context, st engine.Settings) error {
	row := toSettingsModel(st)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// LoadState reads every station, record and alert in the order the engine
// keeps them, plus the settings saved at runtime if any.
func (s *gormStore) LoadState(ctx context.Context) (State, error) {
	db := s.db.WithContext(ctx)

	var stations []model.Station
	if err := db.Order("id").Find(&stations).Error; err != nil {
		return State{}, fmt.Errorf("failed to load stations: %w", err)
	}
	var records []model.SanitizationRecord
	if err := db.Order("seq, timestamp").Find(&records).Error; err != nil {
		return State{}, fmt.Errorf("failed to load history: %w", err)
	}
	var alerts []model.Alert
	if err := db.Order("seq, timestamp").Find(&alerts).Error; err != nil {
		return State{}, fmt.Errorf("failed to load alerts: %w", err)
	}
	var settings []model.EngineSettings
	if err := db.Where("id = ?", model.SettingsRowID).Find(&settings).Error; err != nil {
		return State{}, fmt.Errorf("failed to load settings: %w", err)
	}

	state := State{
		Stations: make([]engine.Station, 0, len(stations)),
		Records:  make([]engine.SanitizationRecord, 0, len(records)),
		Alerts:   make([]engine.Alert, 0, len(alerts)),
	}
	for _, m := range stations {
		state.Stations = append(state.Stations, fromStationModel(m))
	}
	for _, m := range records {
		state.Records = append(state.Records, fromRecordModel(m))
	}
	for _, m := range alerts {
		state.Alerts = append(state.Alerts, fromAlertModel(m))
	}
	if len(settings) > 0 {
		st := fromSettingsModel(settings[0])
		state.Settings = &st
	}
	log.Printf("Loaded %d stations, %d records, %d alerts", len(state.Stations), len(state.Records), len(state.Alerts))
	return state, nil
}

// SaveSubscription creates or replaces a subscription and its station set.
func (s *gormStore) SaveSubscription(ctx context.Context, sub model.PushSubscription, stationIDs []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return err
		}

		var stations []model.Station
		if len(stationIDs) > 0 {
			if err := tx.Where("id IN ?", stationIDs).Find(&stations).Error; err != nil {
				return err
			}
		}

		return tx.Model(&sub).Association("Stations").Replace(&stations)
	})
}

// GetSubscription returns the subscription with its stations preloaded.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Stations").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sub, ErrSubscriptionNotFound
	}
	return sub, err
}

// DeleteSubscription removes a subscription and its station mappings.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Select(clause.Associations).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

// SubscriptionsForStation returns every subscription following the station.
func (s *gormStore) SubscriptionsForStation(ctx context.Context, stationID string) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_station_mapping ssm ON ssm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("ssm.station_id = ?", stationID).
		Find(&subscriptions).Error
	return subscriptions, err
}
