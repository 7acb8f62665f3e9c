package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"sanitization-status-backend/config"
	"sanitization-status-backend/internal/auth"
	"sanitization-status-backend/internal/mw"
)

// RouterOptions carries the middleware settings for NewRouter.
type RouterOptions struct {
	Server    config.ServerConfig
	JWTSecret []byte
	// Cache is shared with the engine flusher; nil creates a private one.
	Cache *cache.Cache
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(opts.Server.RateLimitPerSec), opts.Server.RateLimitBurst, opts.Server.RequestIPHeader)

	ttl := opts.Server.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	cacheStore := opts.Cache
	if cacheStore == nil {
		cacheStore = cache.New(ttl, 2*ttl)
	}
	caching := mw.Cache(cacheStore, ttl)

	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Invalidate(cacheStore))
	{
		api.GET("/stations", h.ListStations)
		api.POST("/stations", h.ProvisionStation)
		api.GET("/stations/:station_id", h.GetStation)
		api.GET("/stations/:station_id/session", h.GetActiveSession)
		api.POST("/stations/:station_id/start", h.StartCleaning)
		api.POST("/stations/:station_id/cancel", h.CancelCleaning)
		api.POST("/stations/:station_id/flag", h.FlagFailure)

		api.GET("/summary", caching, h.GetSummary)
		api.GET("/departments", caching, h.GetDepartments)
		api.GET("/floors", caching, h.GetFloors)

		api.POST("/sessions/:session_id/samples", h.PostSample)
		api.POST("/sessions/:session_id/reset", h.ResetSession)
		api.POST("/sessions/:session_id/fail", h.FailSession)

		api.GET("/alerts", h.ListAlerts)
		api.GET("/alerts/unread_count", h.GetUnreadCount)
		api.POST("/alerts/read_all", h.MarkAllAlertsRead)
		api.POST("/alerts/:alert_id/read", h.MarkAlertRead)

		api.GET("/history", h.ListHistory)
		api.GET("/history/export.xlsx", caching, h.ExportHistoryXLSX)
		api.GET("/history/export.pdf", caching, h.ExportHistoryPDF)

		api.GET("/config", h.GetConfig)
		api.PUT("/config", auth.Authenticate(opts.JWTSecret), h.PutConfig)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
