// Package server provides the HTTP server and Echo setup for the media uploader.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/amodomio/media-uploader/internal/handlers"
	"github.com/amodomio/media-uploader/internal/logger"
	"github.com/amodomio/media-uploader/internal/ratelimit"
)

// Server is the HTTP server (Echo) with the shared middleware stack and registered handlers.
type Server struct {
	echo   *echo.Echo
	addr   string
	logger *slog.Logger
}

// Handler registers routes on the Echo instance.
type Handler interface {
	Register(e *echo.Echo)
}

// Options configures the listener.
type Options struct {
	Addr             string
	RequestTimeout   time.Duration
	HeadersTimeout   time.Duration
	KeepAliveTimeout time.Duration
	// TrustProxyHops is the number of reverse proxies whose X-Forwarded-For
	// entries are trusted when resolving the client IP.
	TrustProxyHops int
}

// NewServer builds the Echo server with recovery, request logging, security
// headers, the global limiter (when given) and the handlers.
func NewServer(log *slog.Logger, opts Options, globalLimiter echo.MiddlewareFunc, handlers ...Handler) *Server {
	if opts.Addr == "" {
		opts.Addr = ":3001"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = ratelimit.ClientIPExtractor(opts.TrustProxyHops)
	e.HTTPErrorHandler = errorHandler(log)
	e.Server.ReadTimeout = opts.RequestTimeout
	e.Server.ReadHeaderTimeout = opts.HeadersTimeout
	e.Server.IdleTimeout = opts.KeepAliveTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            15552000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "no-referrer",
	}))
	e.Use(requestLogger(log))
	if globalLimiter != nil {
		e.Use(globalLimiter)
	}

	for _, h := range handlers {
		if h != nil {
			h.Register(e)
		}
	}

	return &Server{
		echo:   e,
		addr:   opts.Addr,
		logger: log.With(slog.String("component", "server")),
	}
}

func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return handlers.HTTPErrorHandler(log.With(slog.String("component", "http")))
}

// requestLogger attaches a request-scoped logger to the context and logs one
// line per finished request.
func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogRequestID: true,
		LogLatency:   true,
		HandleError:  true,
		BeforeNextFunc: func(c echo.Context) {
			reqLog := log.With(slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), reqLog)))
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", c.RealIP()),
			)
			return nil
		},
	})
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server (blocks until shutdown). A graceful shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("media uploader listening", slog.String("addr", s.addr))
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server using the given context.
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
