package main

import (
	"strings"

	"github.com/spf13/cobra"

	migrations "github.com/amodomio/media-uploader/db"
	"github.com/amodomio/media-uploader/internal/db"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [" + strings.Join(db.MigrateCommands, "|") + "] [version]",
		Short: "Manage the Postgres schema of the shared rate-limit store",
		Long: `Apply, roll back or inspect the schema used when rate_limit.backend is "postgres".
Without arguments the schema is migrated up.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log := provideLogger(cfg)

			command := "up"
			if len(args) > 0 {
				command = args[0]
				args = args[1:]
			}
			return db.RunMigrate(log, cfg.Postgres, migrations.Migrations(), command, args)
		},
	}
}
