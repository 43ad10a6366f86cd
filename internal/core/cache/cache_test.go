package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldsync/fieldsync/internal/core"
)

type fakeEntry struct {
	value     []byte
	expiresAt time.Time
}

type fakeDurable struct {
	mu      sync.Mutex
	entries map[string]fakeEntry
	clock   func() time.Time
	gets    int
	fail    bool
}

func newFakeDurable(clock func() time.Time) *fakeDurable {
	return &fakeDurable{entries: make(map[string]fakeEntry), clock: clock}
}

func (f *fakeDurable) GetEntry(ctx context.Context, key string) ([]byte, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.fail {
		return nil, time.Time{}, errors.New("store unavailable")
	}
	e, ok := f.entries[key]
	if !ok || !f.clock().Before(e.expiresAt) {
		return nil, time.Time{}, nil
	}
	return e.value, e.expiresAt, nil
}

func (f *fakeDurable) SetEntry(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("store unavailable")
	}
	f.entries[key] = fakeEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (f *fakeDurable) DeleteEntry(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

func (f *fakeDurable) DeleteEntries(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = make(map[string]fakeEntry)
	return nil
}

func (f *fakeDurable) DeleteEntriesByPrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(f.entries, key)
		}
	}
	return nil
}

func (f *fakeDurable) ListEntryMeta(ctx context.Context) ([]core.CacheEntryMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	var metas []core.CacheEntryMeta
	for key, e := range f.entries {
		metas = append(metas, core.CacheEntryMeta{Key: key, ExpiresAt: e.expiresAt})
	}
	return metas, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSetGetFastTier(t *testing.T) {
	clock := newTestClock()
	c := New(Config{}, nil, WithClock(clock.Now))
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), got)

	_, ok = c.Get(ctx, "absent")
	require.False(t, ok)
}

func TestFastExpiryServedFromDurableTier(t *testing.T) {
	// Scenario: fast TTL 1s, durable TTL 10s; a read at t+2s is served by
	// durable-tier promotion.
	clock := newTestClock()
	durable := newFakeDurable(clock.Now)
	c := New(Config{Policy: PolicyStrict}, durable, WithClock(clock.Now))
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), SetOptions{FastTTL: time.Second, DurableTTL: 10 * time.Second})

	clock.Advance(2 * time.Second)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok, "durable tier serves after fast expiry")
	require.Equal(t, []byte("v"), got)

	// Promotion carries the durable remaining expiry, not a fresh fast TTL.
	clock.Advance(7 * time.Second)
	_, ok = c.Get(ctx, "k")
	require.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get(ctx, "k")
	require.False(t, ok, "both tiers expired")
}

func TestPreferDurablePolicyExtendsFastReads(t *testing.T) {
	clock := newTestClock()
	durable := newFakeDurable(clock.Now)
	c := New(Config{Policy: PolicyPreferDurable}, durable, WithClock(clock.Now))
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), SetOptions{FastTTL: time.Second, DurableTTL: time.Minute})

	clock.Advance(30 * time.Second)
	gets := durable.gets
	_, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, gets, durable.gets, "persisted entry served from fast tier without a store read")
}

func TestSkipPersistHonorsFastTTL(t *testing.T) {
	clock := newTestClock()
	durable := newFakeDurable(clock.Now)
	c := New(Config{Policy: PolicyPreferDurable}, durable, WithClock(clock.Now))
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), SetOptions{FastTTL: time.Second, SkipPersist: true})

	clock.Advance(2 * time.Second)
	_, ok := c.Get(ctx, "k")
	require.False(t, ok)
}

func TestRemoveAndClearPrefix(t *testing.T) {
	clock := newTestClock()
	durable := newFakeDurable(clock.Now)
	c := New(Config{}, durable, WithClock(clock.Now))
	ctx := context.Background()

	c.Set(ctx, "readings:1", []byte("a"))
	c.Set(ctx, "readings:2", []byte("b"))
	c.Set(ctx, "notes:1", []byte("c"))

	c.Remove(ctx, "readings:1")
	_, ok := c.Get(ctx, "readings:1")
	require.False(t, ok)

	c.ClearPrefix(ctx, "readings:")
	_, ok = c.Get(ctx, "readings:2")
	require.False(t, ok)
	got, ok := c.Get(ctx, "notes:1")
	require.True(t, ok, "non-matching keys survive prefix clear")
	require.Equal(t, []byte("c"), got)

	c.Clear(ctx)
	_, ok = c.Get(ctx, "notes:1")
	require.False(t, ok)
	require.Empty(t, durable.entries)
}

func TestBookkeepingLoadsFromDurableTier(t *testing.T) {
	clock := newTestClock()
	durable := newFakeDurable(clock.Now)
	ctx := context.Background()
	require.NoError(t, durable.SetEntry(ctx, "warm", []byte("v"), clock.Now().Add(time.Hour)))

	c := New(Config{}, durable, WithClock(clock.Now))

	got, ok := c.Get(ctx, "warm")
	require.True(t, ok, "entry persisted before startup is visible")
	require.Equal(t, []byte("v"), got)

	// Keys absent from bookkeeping never hit the store.
	gets := durable.gets
	_, ok = c.Get(ctx, "cold")
	require.False(t, ok)
	require.Equal(t, gets, durable.gets)
}

func TestDurableFailureDegradesToFastTier(t *testing.T) {
	clock := newTestClock()
	durable := newFakeDurable(clock.Now)
	durable.fail = true
	c := New(Config{}, durable, WithClock(clock.Now))
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"))

	got, ok := c.Get(ctx, "k")
	require.True(t, ok, "fast tier still serves when the store is down")
	require.Equal(t, []byte("v"), got)
}
