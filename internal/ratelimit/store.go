// Package ratelimit implements fixed-window request limiting over a pluggable counter store.
package ratelimit

import (
	"context"
	"time"
)

// Hits is the state of one key's current window after a hit was recorded.
type Hits struct {
	Count   int64
	ResetAt time.Time
}

// Store keeps fixed-window hit counters keyed by client. Implementations must
// be safe for concurrent use and count each Increment exactly once.
type Store interface {
	// Increment records one hit for key. A key whose window has ended starts a
	// new window of the given length at the current time.
	Increment(ctx context.Context, key string, window time.Duration) (Hits, error)
	// Prune forgets every key whose window has ended and returns how many were dropped.
	Prune(ctx context.Context) (int64, error)
}
