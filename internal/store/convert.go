package store

import (
	"time"

	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/model"
	"sanitization-status-backend/internal/parse"
)

func toStationModel(s engine.Station) model.Station {
	m := model.Station{
		ID:                    s.ID,
		Name:                  s.Name,
		Location:              s.Location,
		Department:            s.Department,
		Status:                string(s.Status),
		LastCleaned:           s.LastCleaned,
		NextScheduledCleaning: s.NextScheduledCleaning,
	}
	if loc, err := parse.ParseLocation(s.Location); err == nil {
		m.Floor = loc.Floor
		m.Wing = loc.Wing
	}
	return m
}

func fromStationModel(m model.Station) engine.Station {
	return engine.Station{
		ID:                    m.ID,
		Name:                  m.Name,
		Location:              m.Location,
		Department:            m.Department,
		Status:                engine.Status(m.Status),
		LastCleaned:           m.LastCleaned,
		NextScheduledCleaning: m.NextScheduledCleaning,
	}
}

func toRecordModel(r engine.SanitizationRecord) model.SanitizationRecord {
	return model.SanitizationRecord{
		ID:          r.ID,
		StationID:   r.StationID,
		Timestamp:   r.Timestamp,
		Status:      string(r.Status),
		PerformedBy: r.PerformedBy,
		VerifiedBy:  r.VerifiedBy,
		Notes:       r.Notes,
		Seq:         r.Seq,
	}
}

func fromRecordModel(m model.SanitizationRecord) engine.SanitizationRecord {
	return engine.SanitizationRecord{
		ID:          m.ID,
		StationID:   m.StationID,
		Timestamp:   m.Timestamp,
		Status:      engine.Status(m.Status),
		PerformedBy: m.PerformedBy,
		VerifiedBy:  m.VerifiedBy,
		Notes:       m.Notes,
		Seq:         m.Seq,
	}
}

func toAlertModel(a engine.Alert) model.Alert {
	return model.Alert{
		ID:          a.ID,
		StationID:   a.StationID,
		StationName: a.StationName,
		Status:      string(a.Status),
		Timestamp:   a.Timestamp,
		Message:     a.Message,
		Priority:    string(a.Priority),
		IsRead:      a.IsRead,
		Seq:         a.Seq,
	}
}

func fromAlertModel(m model.Alert) engine.Alert {
	return engine.Alert{
		ID:          m.ID,
		StationID:   m.StationID,
		StationName: m.StationName,
		Status:      engine.Status(m.Status),
		Timestamp:   m.Timestamp,
		Message:     m.Message,
		Priority:    engine.Priority(m.Priority),
		IsRead:      m.IsRead,
		Seq:         m.Seq,
	}
}

func toSettingsModel(s engine.Settings) model.EngineSettings {
	return model.EngineSettings{
		ID:                           model.SettingsRowID,
		CleaningIntervalAfterSuccess: s.CleaningIntervalAfterSuccess.Milliseconds(),
		AttentionEscalationThreshold: s.AttentionEscalationThreshold.Milliseconds(),
		SessionTimeout:               s.SessionTimeout.Milliseconds(),
		MinimumCleaningTime:          s.MinimumCleaningTime.Milliseconds(),
		CoverageThreshold:            s.CoverageThreshold,
		AlertTimeout:                 s.AlertTimeout.Milliseconds(),
		MissedCleaningAlert:          s.MissedCleaningAlert,
		DelayedCleaningAlert:         s.DelayedCleaningAlert,
	}
}

func fromSettingsModel(m model.EngineSettings) engine.Settings {
	return engine.Settings{
		CleaningIntervalAfterSuccess: time.Duration(m.CleaningIntervalAfterSuccess) * time.Millisecond,
		AttentionEscalationThreshold: time.Duration(m.AttentionEscalationThreshold) * time.Millisecond,
		SessionTimeout:               time.Duration(m.SessionTimeout) * time.Millisecond,
		MinimumCleaningTime:          time.Duration(m.MinimumCleaningTime) * time.Millisecond,
		CoverageThreshold:            m.CoverageThreshold,
		AlertTimeout:                 time.Duration(m.AlertTimeout) * time.Millisecond,
		MissedCleaningAlert:          m.MissedCleaningAlert,
		DelayedCleaningAlert:         m.DelayedCleaningAlert,
	}
}
