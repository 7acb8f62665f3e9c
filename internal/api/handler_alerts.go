package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/query"
)

// ListAlerts handles GET /api/alerts?unread=&priority=&station_id=.
func (h *Handler) ListAlerts(c *gin.Context) {
	f := query.AlertFilter{StationID: c.Query("station_id")}
	if raw := c.Query("unread"); raw != "" {
		unread, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "unread must be a boolean")
			return
		}
		f.UnreadOnly = unread
	}
	if raw := c.Query("priority"); raw != "" {
		p, ok := engine.ParsePriority(raw)
		if !ok {
			badRequest(c, "unknown priority "+raw)
			return
		}
		f.Priority = p
	}
	c.JSON(http.StatusOK, query.FilterAlerts(h.engine.Alerts().Alerts(), f))
}

// GetUnreadCount handles GET /api/alerts/unread_count.
func (h *Handler) GetUnreadCount(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"unread": h.engine.Alerts().UnreadCount()})
}

// MarkAlertRead handles POST /api/alerts/:alert_id/read.
func (h *Handler) MarkAlertRead(c *gin.Context) {
	if err := h.engine.MarkAlertRead(c.Param("alert_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllAlertsRead handles POST /api/alerts/read_all.
func (h *Handler) MarkAllAlertsRead(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"marked": h.engine.MarkAllAlertsRead()})
}
