package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/amodomio/media-uploader/internal/auth"
	"github.com/amodomio/media-uploader/internal/boot"
	"github.com/amodomio/media-uploader/internal/config"
	"github.com/amodomio/media-uploader/internal/db"
	"github.com/amodomio/media-uploader/internal/handlers"
	"github.com/amodomio/media-uploader/internal/maintenance"
	"github.com/amodomio/media-uploader/internal/media"
	"github.com/amodomio/media-uploader/internal/metrics"
	"github.com/amodomio/media-uploader/internal/ratelimit"
	"github.com/amodomio/media-uploader/internal/server"
	"github.com/amodomio/media-uploader/internal/staging"
	"github.com/amodomio/media-uploader/internal/storage"
	"github.com/amodomio/media-uploader/internal/storage/localfs"
	"github.com/amodomio/media-uploader/internal/storage/s3store"
	"github.com/amodomio/media-uploader/internal/version"
)

const (
	dbConnectTimeout = 10 * time.Second
	stopTimeout      = 15 * time.Second
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the upload server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(serveOptions(opts))
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	<-app.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()
	return app.Stop(stopCtx)
}

// serveOptions is the dependency graph of the server process.
func serveOptions(opts *rootOptions) fx.Option {
	return fx.Options(
		fx.Supply(opts),
		fx.Provide(
			provideConfig,
			boot.ProvideRuntimeConfig,
			provideLogger,

			provideMetrics,
			provideMediaStorage,
			provideStager,
			media.NewService,
			provideRateLimitStore,
			provideLimiters,
			provideScheduler,

			provideServerHandler(handlers.NewHealthHandler),
			provideServerHandler(provideUploadHandler),
			provideServerHandler(provideMetricsHandler),

			provideServer,
		),
		fx.Invoke(
			startMaintenance,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
}

func provideConfig(opts *rootOptions) (config.Config, error) {
	return opts.loadConfig()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideMetrics(cfg config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

// provideMediaStorage selects where placed media lives. The local tree is
// always created because staging happens under it.
func provideMediaStorage(log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (storage.Provider, error) {
	local, err := localfs.New(rc.DataRoot, rc.BaseURL)
	if err != nil {
		return nil, err
	}
	if err := local.EnsureDirs("tmp", media.KindImage.Dir(), media.KindVideo.Dir()); err != nil {
		return nil, err
	}

	switch rc.MediaBackend {
	case "local":
		log.Info("media tree ready", slog.String("root", local.Root()), slog.String("base_url", rc.BaseURL))
		return local, nil
	case "s3":
		client, err := s3store.NewClient(s3store.ClientConfig{
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			UsePathStyle:    cfg.S3.UsePathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		provider, err := s3store.New(client, cfg.S3.Bucket, cfg.S3.Prefix, rc.BaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("media placed in s3", slog.String("bucket", cfg.S3.Bucket), slog.String("prefix", cfg.S3.Prefix), slog.String("base_url", rc.BaseURL))
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown media backend %q (use local or s3)", rc.MediaBackend)
	}
}

func provideStager(log *slog.Logger, rc *boot.RuntimeConfig) (*staging.Stager, error) {
	return staging.New(log, rc.StagingDir)
}

func provideRateLimitStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, rc *boot.RuntimeConfig) (ratelimit.Store, error) {
	switch rc.RateLimitBackend {
	case "memory":
		return ratelimit.NewMemoryStore(), nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), dbConnectTimeout)
		defer cancel()
		pool, err := db.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				pool.Close()
				return nil
			},
		})
		log.Info("rate limit counters shared through postgres", slog.String("host", cfg.Postgres.Host))
		return ratelimit.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q (use memory or postgres)", rc.RateLimitBackend)
	}
}

type limiters struct {
	global *ratelimit.Limiter
	upload *ratelimit.Limiter
}

func provideLimiters(log *slog.Logger, store ratelimit.Store, rc *boot.RuntimeConfig, m *metrics.Metrics) limiters {
	return limiters{
		global: ratelimit.New(log, store, ratelimit.Config{
			Name:    "global",
			Window:  rc.RateLimitWindow,
			Max:     int64(rc.RateLimitMax),
			Message: "too many requests",
		}, m),
		upload: ratelimit.New(log, store, ratelimit.Config{
			Name:    "upload",
			Window:  rc.RateLimitWindow,
			Max:     int64(rc.RateLimitUpload),
			Message: "too many upload requests",
		}, m),
	}
}

func provideUploadHandler(log *slog.Logger, stager *staging.Stager, mediaService *media.Service, m *metrics.Metrics, l limiters, rc *boot.RuntimeConfig) *handlers.UploadHandler {
	return handlers.NewUploadHandler(log, stager, mediaService, m,
		l.upload.Middleware(),
		auth.APIKeyMiddleware(rc.UploadAPIKey, log),
	)
}

func provideMetricsHandler(log *slog.Logger, m *metrics.Metrics, cfg config.Config) *handlers.MetricsHandler {
	return handlers.NewMetricsHandler(log, m, cfg.Metrics.Path)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	RuntimeConfig  *boot.RuntimeConfig
	Limiters       limiters
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	rc := params.RuntimeConfig
	return server.NewServer(params.Logger, server.Options{
		Addr:             rc.ServerAddr,
		RequestTimeout:   rc.RequestTimeout,
		HeadersTimeout:   rc.HeadersTimeout,
		KeepAliveTimeout: rc.KeepAliveTimeout,
		TrustProxyHops:   rc.TrustProxyHops,
	}, params.Limiters.global.Middleware(), params.ServerHandlers...)
}

func provideScheduler(log *slog.Logger) *maintenance.Scheduler {
	return maintenance.NewScheduler(log)
}

// startMaintenance registers the housekeeping jobs and runs them for the
// lifetime of the app.
func startMaintenance(lc fx.Lifecycle, scheduler *maintenance.Scheduler, stager *staging.Stager, store ratelimit.Store, m *metrics.Metrics, rc *boot.RuntimeConfig) error {
	if err := scheduler.Register("staging-sweep", rc.SweepSchedule, func(ctx context.Context) error {
		n, err := stager.SweepStale(ctx, rc.StagingMaxAge)
		m.StagedSwept(n)
		return err
	}); err != nil {
		return err
	}
	if err := scheduler.Register("rate-limit-prune", "@every "+rc.RateLimitWindow.String(), func(ctx context.Context) error {
		n, err := store.Prune(ctx)
		m.WindowsPruned(n)
		return err
	}); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	logger.Info("starting media uploader", slog.String("version", version.GetInfo()))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
