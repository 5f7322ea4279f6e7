package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amodomio/media-uploader/internal/config"
	"github.com/amodomio/media-uploader/internal/logger"
)

type rootOptions struct {
	configPath string
}

func main() {
	opts := &rootOptions{}
	serve := serveCmd(opts)

	rootCmd := &cobra.Command{
		Use:   "media-uploader",
		Short: "Authenticated upload service for menu item images and videos",
		Long: `media-uploader accepts multipart uploads of images and videos for menu items,
stores them under the public media tree and answers with their public URL.

Running it without a subcommand starts the server.`,
		RunE:          serve.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the TOML config (default $CONFIG_PATH or config.toml)")

	rootCmd.AddCommand(
		serve,
		migrateCmd(opts),
		sweepCmd(opts),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// resolveConfigPath prefers the --config flag, then CONFIG_PATH.
func (o *rootOptions) resolveConfigPath() string {
	if path := strings.TrimSpace(o.configPath); path != "" {
		return path
	}
	return strings.TrimSpace(os.Getenv("CONFIG_PATH"))
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.resolveConfigPath())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}
