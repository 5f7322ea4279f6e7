package db

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/amodomio/media-uploader/internal/config"
)

// MigrateCommands lists the accepted RunMigrate commands.
var MigrateCommands = []string{"up", "down", "version", "force"}

// RunMigrate applies or rolls back the rate-limit store schema.
// migrationsFS must hold the .sql files at its root.
func RunMigrate(log *slog.Logger, cfg config.PostgresConfig, migrationsFS fs.FS, command string, args []string) error {
	if log == nil {
		log = slog.Default()
	}
	forceVersion, err := parseMigrateCommand(command, args)
	if err != nil {
		return err
	}
	if migrationsFS == nil {
		return errors.New("migration source is required")
	}

	sourceDriver, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, DSN(cfg))
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("close migrator", slog.Any("source_error", srcErr), slog.Any("db_error", dbErr))
		}
	}()
	m.Log = &migrateLogger{logger: log}

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		ver, dirty, _ := m.Version()
		log.Info("schema up to date", slog.Uint64("version", uint64(ver)), slog.Bool("dirty", dirty))
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down: %w", err)
		}
		log.Info("schema rolled back")
	case "version":
		ver, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migration applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrate version: %w", err)
		}
		log.Info("current schema version", slog.Uint64("version", uint64(ver)), slog.Bool("dirty", dirty))
	case "force":
		if err := m.Force(forceVersion); err != nil {
			return fmt.Errorf("migrate force: %w", err)
		}
		log.Info("forced schema version", slog.Int("version", forceVersion))
	}
	return nil
}

// parseMigrateCommand validates command and returns the version for "force".
func parseMigrateCommand(command string, args []string) (int, error) {
	switch command {
	case "up", "down", "version":
		return 0, nil
	case "force":
		if len(args) == 0 {
			return 0, errors.New("force requires a version number argument")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return version, nil
	default:
		return 0, fmt.Errorf("unknown migrate command: %s (use: up, down, version, force)", command)
	}
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
