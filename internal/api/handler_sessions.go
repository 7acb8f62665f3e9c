package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type sampleRequest struct {
	ConfidenceDelta *float64 `json:"confidence_delta" binding:"required"`
}

// PostSample handles POST /api/sessions/:session_id/samples.
func (h *Handler) PostSample(c *gin.Context) {
	var req sampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "confidence_delta is required")
		return
	}
	outcome, err := h.engine.Observe(c.Param("session_id"), *req.ConfidenceDelta)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// ResetSession handles POST /api/sessions/:session_id/reset.
func (h *Handler) ResetSession(c *gin.Context) {
	outcome, err := h.engine.ResetSession(c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type failSessionRequest struct {
	Notes string `json:"notes"`
}

// FailSession handles POST /api/sessions/:session_id/fail.
func (h *Handler) FailSession(c *gin.Context) {
	var req failSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request")
			return
		}
	}
	outcome, err := h.engine.FailSession(c.Param("session_id"), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}
