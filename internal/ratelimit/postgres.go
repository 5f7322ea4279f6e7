package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queries the table created by db/migrations/0001_rate_limit_hits.up.sql.
const (
	incrementSQL = `INSERT INTO rate_limit_hits AS h (key, hits, reset_at)
VALUES ($1, 1, $2)
ON CONFLICT (key) DO UPDATE SET
	hits = CASE WHEN h.reset_at <= $3 THEN 1 ELSE h.hits + 1 END,
	reset_at = CASE WHEN h.reset_at <= $3 THEN EXCLUDED.reset_at ELSE h.reset_at END
RETURNING hits, reset_at`

	pruneSQL = `DELETE FROM rate_limit_hits WHERE reset_at <= $1`
)

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore shares counters between uploader instances. Each hit is a
// single upsert, so concurrent increments of one key never lose updates.
type PostgresStore struct {
	db  DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store backed by db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Increment(ctx context.Context, key string, window time.Duration) (Hits, error) {
	now := s.now().UTC()
	var hits Hits
	if err := s.db.QueryRow(ctx, incrementSQL, key, now.Add(window), now).Scan(&hits.Count, &hits.ResetAt); err != nil {
		return Hits{}, fmt.Errorf("increment rate limit %q: %w", key, err)
	}
	return hits, nil
}

func (s *PostgresStore) Prune(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, pruneSQL, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("prune rate limits: %w", err)
	}
	return tag.RowsAffected(), nil
}
