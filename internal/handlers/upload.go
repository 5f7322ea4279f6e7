// Package handlers provides the HTTP handlers of the media uploader.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/amodomio/media-uploader/internal/logger"
	"github.com/amodomio/media-uploader/internal/media"
	"github.com/amodomio/media-uploader/internal/metrics"
	"github.com/amodomio/media-uploader/internal/staging"
)

// FileField is the multipart field carrying the upload.
const FileField = "file"

// UploadHandler serves POST /upload.
type UploadHandler struct {
	stager      *staging.Stager
	media       *media.Service
	metrics     *metrics.Metrics
	middlewares []echo.MiddlewareFunc
	logger      *slog.Logger
}

// UploadResponse is the success body of POST /upload.
type UploadResponse struct {
	OK         bool       `json:"ok"`
	Kind       media.Kind `json:"kind"`
	MenuItemID string     `json:"menuItemId"`
	Slot       string     `json:"slot"`
	URL        string     `json:"url"`
}

// NewUploadHandler creates the upload handler. middlewares run in order
// before the handler, e.g. the upload limiter followed by the API key guard.
func NewUploadHandler(log *slog.Logger, stager *staging.Stager, mediaService *media.Service, m *metrics.Metrics, middlewares ...echo.MiddlewareFunc) *UploadHandler {
	return &UploadHandler{
		stager:      stager,
		media:       mediaService,
		metrics:     m,
		middlewares: middlewares,
		logger:      log.With(slog.String("handler", "upload")),
	}
}

// Register mounts POST /upload on the Echo instance.
func (h *UploadHandler) Register(e *echo.Echo) {
	e.POST("/upload", h.Upload, h.middlewares...)
}

// Upload stores one image or video for a menu item slot.
//
// Query: kind=image|video, menuItemId, slot. Body: multipart/form-data with
// a single part named "file". Responds with the public URL of the stored asset.
func (h *UploadHandler) Upload(c echo.Context) error {
	if h.stager == nil || h.media == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal upload error")
	}
	query := c.QueryParams()

	kind, err := media.ResolveKind(singleQueryParam(query, "kind"))
	if err != nil {
		h.metrics.ObserveUpload("", metrics.OutcomeRejected, 0)
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be image or video")
	}
	menuItemID, err := media.ValidateSegment(singleQueryParam(query, "menuItemId"))
	if err != nil {
		h.metrics.ObserveUpload(string(kind), metrics.OutcomeRejected, 0)
		return echo.NewHTTPError(http.StatusBadRequest, "menuItemId is invalid")
	}
	slot, err := media.ValidateSegment(singleQueryParam(query, "slot"))
	if err != nil {
		h.metrics.ObserveUpload(string(kind), metrics.OutcomeRejected, 0)
		return echo.NewHTTPError(http.StatusBadRequest, "slot is invalid")
	}

	ctx := c.Request().Context()
	staged, err := h.stager.Receive(ctx, c.Request(), FileField, kind.MaxBytes())
	if err != nil {
		return h.fail(kind, stagingError(err))
	}

	asset, err := h.media.Place(ctx, media.PlaceInput{
		Staged:     staged,
		Kind:       kind,
		MenuItemID: menuItemID,
		Slot:       slot,
	})
	if err != nil {
		he := placementError(err)
		if he.Code == http.StatusUnsupportedMediaType {
			logger.FromContext(ctx).Debug("upload rejected",
				slog.String("kind", string(kind)),
				slog.String("declared_mime", staged.Mime),
				slog.Any("accepted", media.AcceptedMimes(kind)),
			)
		}
		return h.fail(kind, he)
	}

	h.metrics.ObserveUpload(string(kind), metrics.OutcomeStored, asset.SizeBytes)
	logger.FromContext(ctx).Info("upload stored",
		slog.String("kind", string(asset.Kind)),
		slog.String("menu_item_id", asset.MenuItemID),
		slog.String("slot", asset.Slot),
		slog.String("key", asset.StorageKey),
		slog.Int64("size_bytes", asset.SizeBytes),
	)
	return c.JSON(http.StatusOK, UploadResponse{
		OK:         true,
		Kind:       asset.Kind,
		MenuItemID: asset.MenuItemID,
		Slot:       asset.Slot,
		URL:        asset.URL,
	})
}

func (h *UploadHandler) fail(kind media.Kind, he *echo.HTTPError) error {
	outcome := metrics.OutcomeRejected
	switch he.Code {
	case http.StatusRequestEntityTooLarge:
		outcome = metrics.OutcomeTooLarge
	case http.StatusUnsupportedMediaType:
		outcome = metrics.OutcomeUnsupported
	case http.StatusInternalServerError:
		outcome = metrics.OutcomeInternalFail
	}
	h.metrics.ObserveUpload(string(kind), outcome, 0)
	return he
}

func stagingError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, staging.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	case errors.Is(err, staging.ErrFileRequired):
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	case errors.Is(err, staging.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart payload").WithInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal upload error").WithInternal(err)
	}
}

func placementError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, media.ErrUnsupportedMediaType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported media type")
	case errors.Is(err, media.ErrMediaTypeKindMismatch):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported media type for kind")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal upload error").WithInternal(err)
	}
}

// singleQueryParam returns the value of name only when it was given exactly once.
func singleQueryParam(query url.Values, name string) string {
	values, ok := query[name]
	if !ok || len(values) != 1 {
		return ""
	}
	return values[0]
}
