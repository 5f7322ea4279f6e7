// Package auth guards write endpoints with a shared API key.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// HeaderAPIKey carries the shared upload secret.
const HeaderAPIKey = "X-Api-Key"

// APIKeyMiddleware rejects requests whose x-api-key header does not match
// secret. An empty secret means the server is misconfigured and every request
// is answered with 500.
func APIKeyMiddleware(secret string, log *slog.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "auth"))
	secret = strings.TrimSpace(secret)
	expected := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				log.Error("upload api key is not configured")
				return echo.NewHTTPError(http.StatusInternalServerError, "UPLOAD_API_KEY is not configured")
			}
			got := []byte(c.Request().Header.Get(HeaderAPIKey))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				log.Debug("rejected upload with bad api key", slog.String("remote_ip", c.RealIP()))
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}
