package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func serve(secret, header string, set bool) *httptest.ResponseRecorder {
	e := echo.New()
	e.POST("/upload", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, APIKeyMiddleware(secret, nil))

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	if set {
		req.Header.Set("x-api-key", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		header   string
		set      bool
		wantCode int
		wantBody string
	}{
		{name: "matching key", secret: "s3cret", header: "s3cret", set: true, wantCode: http.StatusNoContent},
		{name: "missing header", secret: "s3cret", wantCode: http.StatusUnauthorized, wantBody: "unauthorized"},
		{name: "wrong key", secret: "s3cret", header: "nope", set: true, wantCode: http.StatusUnauthorized, wantBody: "unauthorized"},
		{name: "prefix of key", secret: "s3cret", header: "s3c", set: true, wantCode: http.StatusUnauthorized, wantBody: "unauthorized"},
		{name: "empty header", secret: "s3cret", header: "", set: true, wantCode: http.StatusUnauthorized, wantBody: "unauthorized"},
		{name: "unconfigured secret", secret: "", header: "", set: true, wantCode: http.StatusInternalServerError, wantBody: "UPLOAD_API_KEY is not configured"},
		{name: "blank secret", secret: "   ", header: "anything", set: true, wantCode: http.StatusInternalServerError, wantBody: "UPLOAD_API_KEY is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.secret, tt.header, tt.set)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
