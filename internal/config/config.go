// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath         = "config.toml"
	DefaultHTTPAddr           = ":3001"
	DefaultDataRoot           = "/data"
	DefaultMediaBaseURL       = "https://media.amodomio.com.br"
	DefaultMediaBackend       = "local"
	DefaultTrustProxyHops     = 1
	DefaultRequestTimeoutMS   = 30_000
	DefaultHeadersTimeoutMS   = 35_000
	DefaultKeepAliveTimeoutMS = 5_000
	DefaultRateLimitBackend   = "memory"
	DefaultRateLimitWindowMS  = 60_000
	DefaultRateLimitMax       = 120
	DefaultRateLimitUploadMax = 20
	DefaultSweepSchedule      = "@every 5m"
	DefaultStagingMaxAgeSecs  = 3600
	DefaultMetricsPath        = "/metrics"
	DefaultPGHost             = "127.0.0.1"
	DefaultPGPort             = 5432
	DefaultPGUser             = "postgres"
	DefaultPGDatabase         = "uploader"
	DefaultPGSSLMode          = "disable"
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Media     MediaConfig     `toml:"media"`
	Auth      AuthConfig      `toml:"auth"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Staging   StagingConfig   `toml:"staging"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the listen address, connection timeouts and proxy trust.
type ServerConfig struct {
	Addr               string `toml:"addr"`
	RequestTimeoutMS   int    `toml:"request_timeout_ms"`
	HeadersTimeoutMS   int    `toml:"headers_timeout_ms"`
	KeepAliveTimeoutMS int    `toml:"keep_alive_timeout_ms"`
	TrustProxyHops     int    `toml:"trust_proxy_hops"`
}

// MediaConfig holds the data root on disk, the placement backend (local or s3)
// and the public base URL placed media is served from.
type MediaConfig struct {
	DataRoot string `toml:"data_root"`
	BaseURL  string `toml:"base_url"`
	Backend  string `toml:"backend"`
}

// AuthConfig holds the shared upload secret.
type AuthConfig struct {
	UploadAPIKey string `toml:"upload_api_key"`
}

// RateLimitConfig selects the counter backend and the window/thresholds of both limiters.
type RateLimitConfig struct {
	Backend   string `toml:"backend"`
	WindowMS  int    `toml:"window_ms"`
	Max       int    `toml:"max"`
	UploadMax int    `toml:"upload_max"`
}

// StagingConfig controls the sweep of abandoned staged files.
type StagingConfig struct {
	SweepSchedule string `toml:"sweep_schedule"`
	MaxAgeSeconds int    `toml:"max_age_seconds"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters for the shared rate-limit store.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// S3Config holds the bucket used when media.backend is "s3".
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	Prefix          string `toml:"prefix"`
	UsePathStyle    bool   `toml:"use_path_style"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:               DefaultHTTPAddr,
			RequestTimeoutMS:   DefaultRequestTimeoutMS,
			HeadersTimeoutMS:   DefaultHeadersTimeoutMS,
			KeepAliveTimeoutMS: DefaultKeepAliveTimeoutMS,
			TrustProxyHops:     DefaultTrustProxyHops,
		},
		Media: MediaConfig{
			DataRoot: DefaultDataRoot,
			BaseURL:  DefaultMediaBaseURL,
			Backend:  DefaultMediaBackend,
		},
		RateLimit: RateLimitConfig{
			Backend:   DefaultRateLimitBackend,
			WindowMS:  DefaultRateLimitWindowMS,
			Max:       DefaultRateLimitMax,
			UploadMax: DefaultRateLimitUploadMax,
		},
		Staging: StagingConfig{
			SweepSchedule: DefaultSweepSchedule,
			MaxAgeSeconds: DefaultStagingMaxAgeSecs,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
	}
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
