package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStoreCountsWithinWindow(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore()
	s.now = clock.Now
	ctx := context.Background()

	first, err := s.Increment(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Count)
	assert.Equal(t, clock.Now().Add(time.Minute), first.ResetAt)

	clock.Advance(30 * time.Second)
	second, err := s.Increment(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Count)
	assert.Equal(t, first.ResetAt, second.ResetAt)

	other, err := s.Increment(ctx, "b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Count)
}

func TestMemoryStoreResetsAfterWindow(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore()
	s.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Increment(ctx, "a", time.Minute)
		require.NoError(t, err)
	}
	clock.Advance(time.Minute)

	hits, err := s.Increment(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Count)
	assert.Equal(t, clock.Now().Add(time.Minute), hits.ResetAt)
}

func TestMemoryStorePrune(t *testing.T) {
	clock := newFakeClock()
	s := NewMemoryStore()
	s.now = clock.Now
	ctx := context.Background()

	_, _ = s.Increment(ctx, "short", time.Second)
	_, _ = s.Increment(ctx, "long", time.Hour)
	clock.Advance(time.Minute)

	dropped, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = s.Increment(ctx, "shared", time.Hour)
			}
		}()
	}
	wg.Wait()

	hits, err := s.Increment(ctx, "shared", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), hits.Count)
}
