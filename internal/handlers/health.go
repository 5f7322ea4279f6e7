package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthResponse is the liveness body.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// HealthHandler serves GET and HEAD /health for liveness probes.
type HealthHandler struct {
	logger *slog.Logger
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(log *slog.Logger) *HealthHandler {
	return &HealthHandler{logger: log.With(slog.String("handler", "health"))}
}

// Register mounts GET and HEAD /health on the Echo instance.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

// Health returns 200 {"ok":true}.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// HealthHead returns 200 with no body.
func (h *HealthHandler) HealthHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
