package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// Recorder is notified about throttled requests.
type Recorder interface {
	RateLimited(limiter string)
}

// Config describes one limiter.
type Config struct {
	// Name prefixes store keys and labels metrics, e.g. "global" or "upload".
	Name string
	// Window is the fixed window length.
	Window time.Duration
	// Max is the number of requests a client may make per window.
	Max int64
	// Message is the error text returned with 429.
	Message string
}

// Limiter throttles requests per client IP (as resolved by echo's IPExtractor).
type Limiter struct {
	store    Store
	cfg      Config
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a limiter counting in store. recorder may be nil.
func New(log *slog.Logger, store Store, cfg Config, recorder Recorder) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Message == "" {
		cfg.Message = "too many requests"
	}
	return &Limiter{
		store:    store,
		cfg:      cfg,
		recorder: recorder,
		logger:   log.With(slog.String("component", "ratelimit"), slog.String("limiter", cfg.Name)),
		now:      time.Now,
	}
}

// Middleware counts the request and rejects it with 429 once the client has
// exceeded Max in the current window. Standard RateLimit-* headers are set
// on every counted response. A failing store lets the request through.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := l.cfg.Name + ":" + c.RealIP()
			hits, err := l.store.Increment(c.Request().Context(), key, l.cfg.Window)
			if err != nil {
				l.logger.Warn("rate limit store unavailable, allowing request", slog.Any("error", err))
				return next(c)
			}

			resetIn := secondsUntil(l.now(), hits.ResetAt)
			h := c.Response().Header()
			h.Set("RateLimit-Policy", strconv.FormatInt(l.cfg.Max, 10)+";w="+strconv.FormatInt(int64(l.cfg.Window.Seconds()), 10))
			h.Set("RateLimit-Limit", strconv.FormatInt(l.cfg.Max, 10))
			h.Set("RateLimit-Remaining", strconv.FormatInt(max(l.cfg.Max-hits.Count, 0), 10))
			h.Set("RateLimit-Reset", strconv.FormatInt(resetIn, 10))

			if hits.Count > l.cfg.Max {
				h.Set("Retry-After", strconv.FormatInt(resetIn, 10))
				if l.recorder != nil {
					l.recorder.RateLimited(l.cfg.Name)
				}
				return echo.NewHTTPError(http.StatusTooManyRequests, l.cfg.Message)
			}
			return next(c)
		}
	}
}

func secondsUntil(now, t time.Time) int64 {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}
