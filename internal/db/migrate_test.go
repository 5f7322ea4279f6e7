package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrations "github.com/amodomio/media-uploader/db"
	"github.com/amodomio/media-uploader/internal/config"
	"github.com/amodomio/media-uploader/internal/logger"
)

func TestParseMigrateCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
		want    int
		wantErr string
	}{
		{name: "up", command: "up"},
		{name: "down", command: "down"},
		{name: "version", command: "version"},
		{name: "force", command: "force", args: []string{"1"}, want: 1},
		{name: "force without version", command: "force", wantErr: "requires a version"},
		{name: "force with garbage", command: "force", args: []string{"one"}, wantErr: "invalid version"},
		{name: "unknown", command: "sideways", wantErr: "unknown migrate command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMigrateCommand(tt.command, tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunMigrateRejectsBadInput(t *testing.T) {
	cfg := config.Default().Postgres

	err := RunMigrate(logger.Discard(), cfg, migrations.Migrations(), "invalid", nil)
	require.Error(t, err)

	err = RunMigrate(logger.Discard(), cfg, nil, "up", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration source")
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations.Migrations(), ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)

	up, err := fs.ReadFile(migrations.Migrations(), "0001_rate_limit_hits.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "rate_limit_hits")
}
