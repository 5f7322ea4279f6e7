// Package boot resolves the runtime settings of the uploader from config and environment.
package boot

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amodomio/media-uploader/internal/config"
)

// ErrMissingAPIKey is returned when no upload secret is configured. The service must not run unauthenticated.
var ErrMissingAPIKey = errors.New("UPLOAD_API_KEY is required")

// RuntimeConfig holds parsed runtime settings.
// Values may be overridden by environment variables (e.g. PORT, UPLOAD_API_KEY).
type RuntimeConfig struct {
	ServerAddr       string
	RequestTimeout   time.Duration
	HeadersTimeout   time.Duration
	KeepAliveTimeout time.Duration
	TrustProxyHops   int

	DataRoot     string
	StagingDir   string
	BaseURL      string
	MediaBackend string

	UploadAPIKey string

	RateLimitBackend string
	RateLimitWindow  time.Duration
	RateLimitMax     int
	RateLimitUpload  int

	SweepSchedule string
	StagingMaxAge time.Duration
}

// ProvideRuntimeConfig builds RuntimeConfig from the given config and applies env overrides.
func ProvideRuntimeConfig(cfg config.Config) (*RuntimeConfig, error) {
	return resolve(cfg, os.LookupEnv)
}

func resolve(cfg config.Config, lookup func(string) (string, bool)) (*RuntimeConfig, error) {
	env := func(key string) string {
		value, _ := lookup(key)
		return strings.TrimSpace(value)
	}
	number := func(key string, fromFile, fallback int) int {
		if raw := env(key); raw != "" {
			return normalizePositiveInt(raw, fallback)
		}
		if fromFile > 0 {
			return fromFile
		}
		return fallback
	}
	millis := func(key string, fromFile, fallback int) time.Duration {
		return time.Duration(number(key, fromFile, fallback)) * time.Millisecond
	}

	dataRoot := strings.TrimSpace(cfg.Media.DataRoot)
	if dataRoot == "" {
		dataRoot = config.DefaultDataRoot
	}

	ret := &RuntimeConfig{
		ServerAddr:       strings.TrimSpace(cfg.Server.Addr),
		RequestTimeout:   millis("REQUEST_TIMEOUT_MS", cfg.Server.RequestTimeoutMS, config.DefaultRequestTimeoutMS),
		HeadersTimeout:   millis("HEADERS_TIMEOUT_MS", cfg.Server.HeadersTimeoutMS, config.DefaultHeadersTimeoutMS),
		KeepAliveTimeout: millis("KEEP_ALIVE_TIMEOUT_MS", cfg.Server.KeepAliveTimeoutMS, config.DefaultKeepAliveTimeoutMS),
		TrustProxyHops:   number("TRUST_PROXY_HOPS", cfg.Server.TrustProxyHops, config.DefaultTrustProxyHops),
		DataRoot:         dataRoot,
		StagingDir:       filepath.Join(dataRoot, "tmp"),
		BaseURL:          cfg.Media.BaseURL,
		MediaBackend:     strings.ToLower(strings.TrimSpace(cfg.Media.Backend)),
		UploadAPIKey:     cfg.Auth.UploadAPIKey,
		RateLimitBackend: strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend)),
		RateLimitWindow:  millis("RATE_LIMIT_WINDOW_MS", cfg.RateLimit.WindowMS, config.DefaultRateLimitWindowMS),
		RateLimitMax:     number("RATE_LIMIT_MAX", cfg.RateLimit.Max, config.DefaultRateLimitMax),
		RateLimitUpload:  number("RATE_LIMIT_UPLOAD_MAX", cfg.RateLimit.UploadMax, config.DefaultRateLimitUploadMax),
		SweepSchedule:    strings.TrimSpace(cfg.Staging.SweepSchedule),
		StagingMaxAge:    time.Duration(positiveOr(cfg.Staging.MaxAgeSeconds, config.DefaultStagingMaxAgeSecs)) * time.Second,
	}

	if port := env("PORT"); port != "" {
		ret.ServerAddr = ":" + port
	}
	if ret.ServerAddr == "" {
		ret.ServerAddr = config.DefaultHTTPAddr
	}
	if value := env("MEDIA_BASE_URL"); value != "" {
		ret.BaseURL = value
	}
	ret.BaseURL = strings.TrimRight(strings.TrimSpace(ret.BaseURL), "/")
	if ret.BaseURL == "" {
		ret.BaseURL = config.DefaultMediaBaseURL
	}
	if value := env("MEDIA_BACKEND"); value != "" {
		ret.MediaBackend = strings.ToLower(value)
	}
	if ret.MediaBackend == "" {
		ret.MediaBackend = config.DefaultMediaBackend
	}
	if value, ok := lookup("UPLOAD_API_KEY"); ok && value != "" {
		ret.UploadAPIKey = value
	}
	if value := env("RATE_LIMIT_BACKEND"); value != "" {
		ret.RateLimitBackend = strings.ToLower(value)
	}
	if ret.RateLimitBackend == "" {
		ret.RateLimitBackend = config.DefaultRateLimitBackend
	}
	if ret.SweepSchedule == "" {
		ret.SweepSchedule = config.DefaultSweepSchedule
	}

	if ret.UploadAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return ret, nil
}

// normalizePositiveInt parses raw as a number and truncates it; non-numeric,
// zero or negative input yields fallback.
func normalizePositiveInt(raw string, fallback int) int {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return fallback
	}
	truncated := math.Trunc(value)
	if truncated <= 0 || truncated > math.MaxInt32 {
		return fallback
	}
	return int(truncated)
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
