package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/amodomio/media-uploader/internal/config"
	"github.com/amodomio/media-uploader/internal/staging"
)

func sweepCmd(opts *rootOptions) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove abandoned files from the staging directory once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log := provideLogger(cfg)

			if maxAge <= 0 {
				maxAge = time.Duration(cfg.Staging.MaxAgeSeconds) * time.Second
			}
			if maxAge <= 0 {
				maxAge = config.DefaultStagingMaxAgeSecs * time.Second
			}
			dataRoot := cfg.Media.DataRoot
			if dataRoot == "" {
				dataRoot = config.DefaultDataRoot
			}

			stager, err := staging.New(log, filepath.Join(dataRoot, "tmp"))
			if err != nil {
				return err
			}
			removed, err := stager.SweepStale(cmd.Context(), maxAge)
			if err != nil {
				return fmt.Errorf("sweep %s: %w", stager.Dir(), err)
			}
			log.Info("staging sweep finished", slog.String("dir", stager.Dir()), slog.Int("removed", removed), slog.Duration("max_age", maxAge))
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "remove staged files older than this (default staging.max_age_seconds)")

	return cmd
}
