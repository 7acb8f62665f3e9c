package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"sanitization-status-backend/internal/clock"
	"sanitization-status-backend/internal/engine"
	"sanitization-status-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	engine  *engine.Engine
	store   store.Store
	webpush *webpush.Options
	clock   clock.Clock
}

// NewHandler creates a new API handler. s may be nil when persistence is
// disabled; the subscription endpoints then answer 503.
func NewHandler(eng *engine.Engine, s store.Store, webpushOptions *webpush.Options, c clock.Clock) *Handler {
	if c == nil {
		c = clock.Real{}
	}
	return &Handler{
		engine:  eng,
		store:   s,
		webpush: webpushOptions,
		clock:   c,
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, store.ErrSubscriptionNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
