package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"sanitization-status-backend/internal/engine"
)

// CacheHeader reports whether a response came from the cache.
const CacheHeader = "X-Cache"

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache is a middleware for in-memory caching of GET requests. Responses are
// keyed by the full request URI; only 2xx responses are stored.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, found := store.Get(key); found {
			cached := v.(cachedResponse)
			for k, vals := range cached.headers {
				c.Writer.Header()[k] = vals
			}
			c.Header(CacheHeader, "HIT")
			c.Data(cached.status, cached.headers.Get("Content-Type"), cached.body)
			c.Abort()
			return
		}

		c.Header(CacheHeader, "MISS")
		w := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		if status := w.Status(); status >= http.StatusOK && status < http.StatusMultipleChoices {
			headers := w.Header().Clone()
			headers.Del(CacheHeader)
			store.Set(key, cachedResponse{status: status, headers: headers, body: w.body.Bytes()}, ttl)
		}
	}
}

// Invalidate flushes the cache after every successful write request so
// summaries and exports never lag behind a state change.
func Invalidate(store *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if c.Writer.Status() < http.StatusBadRequest {
			store.Flush()
		}
	}
}

// Flusher empties the cache whenever the engine commits, including commits
// that arrive outside HTTP (detection ingest, scheduler).
type Flusher struct {
	store *cache.Cache
}

// NewFlusher creates an engine listener that flushes store.
func NewFlusher(store *cache.Cache) *Flusher {
	return &Flusher{store: store}
}

// TransitionCommitted flushes the cache.
func (f *Flusher) TransitionCommitted(engine.Commit) error {
	f.store.Flush()
	return nil
}

// AlertsRead flushes the cache.
func (f *Flusher) AlertsRead([]string) error {
	f.store.Flush()
	return nil
}
