package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amodomio/media-uploader/internal/handlers"
	"github.com/amodomio/media-uploader/internal/logger"
	"github.com/amodomio/media-uploader/internal/ratelimit"
)

type ipEcho struct{}

func (ipEcho) Register(e *echo.Echo) {
	e.GET("/ip", func(c echo.Context) error {
		return c.String(http.StatusOK, c.RealIP())
	})
	e.GET("/boom", func(echo.Context) error {
		panic("boom")
	})
}

func newTestServer(t *testing.T, hops int, limiter echo.MiddlewareFunc) *Server {
	t.Helper()
	log := logger.Discard()
	return NewServer(log, Options{TrustProxyHops: hops}, limiter, handlers.NewHealthHandler(log), ipEcho{})
}

func serveRequest(s *Server, method, target string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.9:4000"
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var body handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 1, nil)

	rec := serveRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	head := serveRequest(s, http.MethodHead, "/health", nil)
	assert.Equal(t, http.StatusOK, head.Code)
	assert.Empty(t, head.Body.String())
}

func TestNotFoundUsesErrorShape(t *testing.T) {
	s := newTestServer(t, 1, nil)

	rec := serveRequest(s, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, handlers.ErrorResponse{OK: false, Error: "Not Found"}, decodeError(t, rec))
}

func TestPanicIsInternalError(t *testing.T) {
	s := newTestServer(t, 1, nil)

	rec := serveRequest(s, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decodeError(t, rec).OK)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	s := newTestServer(t, 1, nil)

	rec := serveRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestClientIPHonoursTrustedHops(t *testing.T) {
	withXFF := func(r *http.Request) { r.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2") }

	rec := serveRequest(newTestServer(t, 1, nil), http.MethodGet, "/ip", withXFF)
	assert.Equal(t, "2.2.2.2", rec.Body.String())

	rec = serveRequest(newTestServer(t, 0, nil), http.MethodGet, "/ip", withXFF)
	assert.Equal(t, "10.0.0.9", rec.Body.String())
}

func TestGlobalLimiterAppliesToEveryRoute(t *testing.T) {
	limiter := ratelimit.New(logger.Discard(), ratelimit.NewMemoryStore(), ratelimit.Config{
		Name:    "global",
		Window:  time.Minute,
		Max:     2,
		Message: "too many requests",
	}, nil)
	s := newTestServer(t, 1, limiter.Middleware())

	assert.Equal(t, http.StatusOK, serveRequest(s, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusNotFound, serveRequest(s, http.MethodGet, "/missing", nil).Code)

	rec := serveRequest(s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, handlers.ErrorResponse{OK: false, Error: "too many requests"}, decodeError(t, rec))
}

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(logger.Discard(), Options{RequestTimeout: 30 * time.Second, HeadersTimeout: 35 * time.Second, KeepAliveTimeout: 5 * time.Second}, nil)
	assert.Equal(t, ":3001", s.addr)
	assert.Equal(t, 30*time.Second, s.echo.Server.ReadTimeout)
	assert.Equal(t, 35*time.Second, s.echo.Server.ReadHeaderTimeout)
	assert.Equal(t, 5*time.Second, s.echo.Server.IdleTimeout)
}
