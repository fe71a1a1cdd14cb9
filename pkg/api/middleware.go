package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

// corsMiddleware returns CORS middleware restricted to origins, per the
// orchestrator's cors_origins config option. An empty origins list disables
// cross-origin access entirely (echo's default-deny).
func corsMiddleware(origins []string) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
	})
}

// rateLimiter is a fixed-window per-IP request counter. Echo v5 does not
// ship a rate limiter middleware and no third-party limiter appears
// anywhere in the example pack, so this is a small stdlib implementation
// rather than an imported one (see DESIGN.md).
type rateLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	max      int
	counters map[string]*windowCounter
}

type windowCounter struct {
	count      int
	windowEnds time.Time
}

func newRateLimiter(window time.Duration, max int) *rateLimiter {
	return &rateLimiter{window: window, max: max, counters: make(map[string]*windowCounter)}
}

// allow reports whether key (typically the client IP, optionally suffixed
// with a route tag for endpoint-specific limits) may proceed.
func (r *rateLimiter) allow(key string) bool {
	if r.max <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	c, ok := r.counters[key]
	if !ok || now.After(c.windowEnds) {
		c = &windowCounter{count: 0, windowEnds: now.Add(r.window)}
		r.counters[key] = c
	}
	c.count++
	return c.count <= r.max
}

// middleware wraps allow as an echo.MiddlewareFunc keyed by client IP.
func (r *rateLimiter) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			key := c.Request().RemoteAddr
			if host, _, err := net.SplitHostPort(key); err == nil {
				key = host
			}
			if !r.allow(key) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}
