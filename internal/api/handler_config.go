package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sanitization-status-backend/internal/auth"
	"sanitization-status-backend/internal/engine"
)

// settingsResponse carries durations as Go duration strings.
type settingsResponse struct {
	CleaningIntervalAfterSuccess string  `json:"cleaningIntervalAfterSuccess"`
	AttentionEscalationThreshold string  `json:"attentionEscalationThreshold"`
	SessionTimeout               string  `json:"sessionTimeout"`
	MinimumCleaningTime          string  `json:"minimumCleaningTime"`
	CoverageThreshold            float64 `json:"coverageThreshold"`
	AlertTimeout                 string  `json:"alertTimeout"`
	MissedCleaningAlert          bool    `json:"missedCleaningAlert"`
	DelayedCleaningAlert         bool    `json:"delayedCleaningAlert"`
}

func newSettingsResponse(s engine.Settings) settingsResponse {
	return settingsResponse{
		CleaningIntervalAfterSuccess: s.CleaningIntervalAfterSuccess.String(),
		AttentionEscalationThreshold: s.AttentionEscalationThreshold.String(),
		SessionTimeout:               s.SessionTimeout.String(),
		MinimumCleaningTime:          s.MinimumCleaningTime.String(),
		CoverageThreshold:            s.CoverageThreshold,
		AlertTimeout:                 s.AlertTimeout.String(),
		MissedCleaningAlert:          s.MissedCleaningAlert,
		DelayedCleaningAlert:         s.DelayedCleaningAlert,
	}
}

// settingsRequest is a partial update; omitted fields keep their value.
type settingsRequest struct {
	CleaningIntervalAfterSuccess *string  `json:"cleaningIntervalAfterSuccess"`
	AttentionEscalationThreshold *string  `json:"attentionEscalationThreshold"`
	SessionTimeout               *string  `json:"sessionTimeout"`
	MinimumCleaningTime          *string  `json:"minimumCleaningTime"`
	CoverageThreshold            *float64 `json:"coverageThreshold"`
	AlertTimeout                 *string  `json:"alertTimeout"`
	MissedCleaningAlert          *bool    `json:"missedCleaningAlert"`
	DelayedCleaningAlert         *bool    `json:"delayedCleaningAlert"`
}

func (r settingsRequest) apply(s engine.Settings) (engine.Settings, error) {
	durations := []struct {
		name string
		raw  *string
		dst  *time.Duration
	}{
		{"cleaningIntervalAfterSuccess", r.CleaningIntervalAfterSuccess, &s.CleaningIntervalAfterSuccess},
		{"attentionEscalationThreshold", r.AttentionEscalationThreshold, &s.AttentionEscalationThreshold},
		{"sessionTimeout", r.SessionTimeout, &s.SessionTimeout},
		{"minimumCleaningTime", r.MinimumCleaningTime, &s.MinimumCleaningTime},
		{"alertTimeout", r.AlertTimeout, &s.AlertTimeout},
	}
	for _, d := range durations {
		if d.raw == nil {
			continue
		}
		v, err := time.ParseDuration(*d.raw)
		if err != nil {
			return s, fmt.Errorf("%w: %s: %v", engine.ErrValidation, d.name, err)
		}
		*d.dst = v
	}
	if r.CoverageThreshold != nil {
		s.CoverageThreshold = *r.CoverageThreshold
	}
	if r.MissedCleaningAlert != nil {
		s.MissedCleaningAlert = *r.MissedCleaningAlert
	}
	if r.DelayedCleaningAlert != nil {
		s.DelayedCleaningAlert = *r.DelayedCleaningAlert
	}
	return s, nil
}

// GetConfig handles GET /api/config.
func (h *Handler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, newSettingsResponse(h.engine.Settings()))
}

// PutConfig handles PUT /api/config. It must run behind auth.Authenticate.
func (h *Handler) PutConfig(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	updated, err := h.engine.UpdateSettingsFunc(auth.RoleFrom(c), req.apply)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newSettingsResponse(updated))
}
