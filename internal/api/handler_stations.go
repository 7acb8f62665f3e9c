package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sanitization-status-backend/internal/auth"
	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/parse"
	"sanitization-status-backend/internal/query"
)

// stationResponse is a station plus the fields the dashboard renders.
type stationResponse struct {
	engine.Station
	StatusLabel    string `json:"statusLabel"`
	StatusColor    string `json:"statusColor"`
	LastCleanedAgo string `json:"lastCleanedAgo"`
	Floor          int    `json:"floor"`
	Wing           string `json:"wing"`
}

func newStationResponse(s engine.Station, now time.Time) stationResponse {
	resp := stationResponse{
		Station:        s,
		StatusLabel:    s.Status.Label(),
		StatusColor:    s.Status.Color(),
		LastCleanedAgo: "Never",
	}
	if s.LastCleaned != nil {
		resp.LastCleanedAgo = query.TimeAgo(*s.LastCleaned, now)
	}
	if loc, err := parse.ParseLocation(s.Location); err == nil {
		resp.Floor = loc.Floor
		resp.Wing = loc.Wing
	}
	return resp
}

// ListStations handles GET /api/stations?q=&department=&status=.
func (h *Handler) ListStations(c *gin.Context) {
	f := query.StationFilter{
		Text:       c.Query("q"),
		Department: c.Query("department"),
	}
	if raw := c.Query("status"); raw != "" {
		status, ok := engine.ParseStatus(raw)
		if !ok {
			badRequest(c, "unknown status "+raw)
			return
		}
		f.Status = status
	}

	now := h.clock.Now()
	stations := query.FilterStations(h.engine.Stations(), f)
	resp := make([]stationResponse, 0, len(stations))
	for _, s := range stations {
		resp = append(resp, newStationResponse(s, now))
	}
	c.JSON(http.StatusOK, resp)
}

// GetStation handles GET /api/stations/:station_id.
func (h *Handler) GetStation(c *gin.Context) {
	s, err := h.engine.Station(c.Param("station_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStationResponse(s, h.clock.Now()))
}

// ProvisionStation handles POST /api/stations.
func (h *Handler) ProvisionStation(c *gin.Context) {
	var req engine.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	s, err := h.engine.Provision(req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newStationResponse(s, h.clock.Now()))
}

// GetSummary handles GET /api/summary.
func (h *Handler) GetSummary(c *gin.Context) {
	c.JSON(http.StatusOK, query.Summarize(h.engine.Stations()))
}

// GetDepartments handles GET /api/departments.
func (h *Handler) GetDepartments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"departments": query.Departments(h.engine.Stations())})
}

// GetFloors handles GET /api/floors.
func (h *Handler) GetFloors(c *gin.Context) {
	c.JSON(http.StatusOK, query.GroupByFloor(h.engine.Stations()))
}

type startCleaningRequest struct {
	PerformedBy string `json:"performed_by"`
}

// StartCleaning handles POST /api/stations/:station_id/start. The performer
// defaults to the authenticated name when a token was supplied.
func (h *Handler) StartCleaning(c *gin.Context) {
	var req startCleaningRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	if req.PerformedBy == "" {
		req.PerformedBy = auth.NameFrom(c)
	}

	session, err := h.engine.StartCleaning(c.Param("station_id"), req.PerformedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// CancelCleaning handles POST /api/stations/:station_id/cancel.
func (h *Handler) CancelCleaning(c *gin.Context) {
	if err := h.engine.CancelCleaning(c.Param("station_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type flagFailureRequest struct {
	FlaggedBy string `json:"flagged_by"`
	Notes     string `json:"notes"`
}

// FlagFailure handles POST /api/stations/:station_id/flag.
func (h *Handler) FlagFailure(c *gin.Context) {
	var req flagFailureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	if req.FlaggedBy == "" {
		req.FlaggedBy = auth.NameFrom(c)
	}

	outcome, err := h.engine.FlagFailure(c.Param("station_id"), req.FlaggedBy, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// GetActiveSession handles GET /api/stations/:station_id/session.
func (h *Handler) GetActiveSession(c *gin.Context) {
	session, err := h.engine.ActiveSession(c.Param("station_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
