package handlers

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/amodomio/media-uploader/internal/metrics"
)

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	metrics *metrics.Metrics
	path    string
	logger  *slog.Logger
}

// NewMetricsHandler serves m at path. A nil m or an empty path disables the endpoint.
func NewMetricsHandler(log *slog.Logger, m *metrics.Metrics, path string) *MetricsHandler {
	path = strings.TrimSpace(path)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &MetricsHandler{
		metrics: m,
		path:    path,
		logger:  log.With(slog.String("handler", "metrics")),
	}
}

// Register mounts GET <path> when metrics are enabled.
func (h *MetricsHandler) Register(e *echo.Echo) {
	if h.metrics == nil || h.path == "" {
		h.logger.Info("metrics endpoint disabled")
		return
	}
	e.GET(h.path, echo.WrapHandler(h.metrics.Handler()))
}
