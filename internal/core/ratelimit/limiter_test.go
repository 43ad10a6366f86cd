package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThrottleConcurrencyCap(t *testing.T) {
	limiter := New(Config{MaxConcurrent: 2, RequestsPerMinute: 100})

	var (
		active  int32
		maxSeen int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)

	started := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = limiter.Throttle(context.Background(), "api.example", func(ctx context.Context) error {
				n := atomic.AddInt32(&active, 1)
				for {
					seen := atomic.LoadInt32(&maxSeen)
					if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
						break
					}
				}
				started <- struct{}{}
				<-release
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}

	// Exactly two may run at once.
	<-started
	<-started
	select {
	case <-started:
		t.Fatal("third operation started while two were in flight")
	case <-time.After(50 * time.Millisecond):
	}
	require.EqualValues(t, 2, atomic.LoadInt32(&active))

	close(release)
	wg.Wait()
	require.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func TestThrottleWindowCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	var waits []time.Duration
	limiter := New(Config{RequestsPerMinute: 2, MaxConcurrent: 10},
		WithClock(clock),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
			return nil
		}))

	op := func(ctx context.Context) error { return nil }

	require.NoError(t, limiter.Throttle(context.Background(), "api.example", op))
	require.NoError(t, limiter.Throttle(context.Background(), "api.example", op))
	require.Empty(t, waits, "first two starts admit immediately")

	require.NoError(t, limiter.Throttle(context.Background(), "api.example", op))
	require.Len(t, waits, 1, "third start waits for the window to advance")
	require.Equal(t, time.Minute, waits[0])

	snap := limiter.Snapshot()
	require.Equal(t, 1, snap.WindowStarts, "old starts pruned after window advanced")
}

func TestThrottleRetriesTransientFailures(t *testing.T) {
	var waits []time.Duration
	limiter := New(Config{MaxRetries: 3, BackoffBase: time.Second, RequestsPerMinute: 100},
		WithSleep(func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}))

	calls := 0
	failure := Retryable(errors.New("upstream unavailable"))
	err := limiter.Throttle(context.Background(), "api.example", func(ctx context.Context) error {
		calls++
		return failure
	})

	require.ErrorIs(t, err, failure)
	require.Equal(t, 4, calls, "initial attempt plus three retries")
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, waits)
}

func TestThrottleDoesNotRetryPermanentFailures(t *testing.T) {
	limiter := New(Config{MaxRetries: 3, RequestsPerMinute: 100})

	calls := 0
	failure := Permanent(errors.New("validation failed"))
	err := limiter.Throttle(context.Background(), "api.example", func(ctx context.Context) error {
		calls++
		return failure
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestThrottleResetsCounterOnSuccess(t *testing.T) {
	limiter := New(Config{MaxRetries: 2, RequestsPerMinute: 100},
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	calls := 0
	err := limiter.Throttle(context.Background(), "api.example", func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return Retryable(errors.New("connection reset"))
		}
		return nil
	})
	require.NoError(t, err)

	snap := limiter.Snapshot()
	require.Empty(t, snap.RetryCounts)
}

func TestThrottleCanceledAttemptDoesNotConsumeRetry(t *testing.T) {
	limiter := New(Config{MaxRetries: 3, RequestsPerMinute: 100})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := limiter.Throttle(ctx, "api.example", func(ctx context.Context) error {
		calls++
		cancel()
		return Retryable(errors.New("timeout"))
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
	require.Empty(t, limiter.Snapshot().RetryCounts)
}

func TestReset(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 1, MaxConcurrent: 1})
	require.NoError(t, limiter.Throttle(context.Background(), "api.example", func(ctx context.Context) error { return nil }))
	require.Equal(t, 1, limiter.Snapshot().WindowStarts)

	limiter.Reset()
	snap := limiter.Snapshot()
	require.Zero(t, snap.WindowStarts)
	require.Zero(t, snap.InFlight)
}
