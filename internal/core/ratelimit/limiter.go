// Package ratelimit bounds outbound call rate and concurrency and retries
// transient failures with exponential backoff.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config controls admission and retry behavior.
type Config struct {
	// RequestsPerMinute caps call starts within the trailing window.
	// Default: 60.
	RequestsPerMinute int

	// MaxConcurrent caps operations in flight. Default: 5.
	MaxConcurrent int

	// MaxRetries bounds consecutive retries per endpoint. Default: 3.
	MaxRetries int

	// BackoffBase is the first retry delay; attempt n waits
	// BackoffBase * 2^n. Default: 1s.
	BackoffBase time.Duration

	// Window is the trailing admission window. Default: 1 minute.
	Window time.Duration
}

func (c Config) withDefaults() Config {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 60
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

// Limiter admits operations when both the trailing-window start count and
// the in-flight count are under their caps. Concurrency uses a channel
// semaphore so waiters wake the moment a slot frees; window waiters sleep
// until the oldest recorded start ages out instead of polling.
type Limiter struct {
	cfg    Config
	sem    chan struct{}
	logger *zap.Logger
	clock  func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	starts  []time.Time
	retries map[string]int
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithLogger attaches a logger. Default is a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock injects a clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithSleep injects the wait function, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New creates a Limiter with the given configuration.
func New(cfg Config, opts ...Option) *Limiter {
	cfg = cfg.withDefaults()
	l := &Limiter{
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		logger:  zap.NewNop(),
		clock:   func() time.Time { return time.Now().UTC() },
		retries: make(map[string]int),
	}
	l.sleep = func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Throttle waits for admission, runs op, and retries transient failures
// with exponential backoff up to MaxRetries per endpoint. Non-retryable
// failures and exhausted retries propagate unchanged. A context-canceled
// attempt returns immediately and does not consume a retry.
func (l *Limiter) Throttle(ctx context.Context, endpoint string, op func(ctx context.Context) error) error {
	if l == nil {
		return op(ctx)
	}

	for {
		if err := l.admit(ctx); err != nil {
			return err
		}

		err := l.run(ctx, op)
		if err == nil {
			l.resetRetries(endpoint)
			return nil
		}

		if ctx.Err() != nil {
			return err
		}

		if Classify(err) != CategoryRetryable {
			return err
		}

		attempt, ok := l.nextRetry(endpoint)
		if !ok {
			l.resetRetries(endpoint)
			return err
		}

		delay := l.cfg.BackoffBase << attempt
		l.logger.Debug("retrying after transient failure",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		if serr := l.sleep(ctx, delay); serr != nil {
			return err
		}
	}
}

// run executes op while holding a concurrency slot.
func (l *Limiter) run(ctx context.Context, op func(ctx context.Context) error) error {
	defer func() { <-l.sem }()
	return op(ctx)
}

// admit blocks until a concurrency slot and a window slot are both held.
// On success the caller owns a semaphore token and a recorded start.
func (l *Limiter) admit(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		wait, admitted := l.tryStart()
		if admitted {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			<-l.sem
			return err
		}
	}
}

// tryStart records a call start if the trailing window has room, otherwise
// returns how long until the oldest start ages out.
func (l *Limiter) tryStart() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.pruneLocked(now)

	if len(l.starts) < l.cfg.RequestsPerMinute {
		l.starts = append(l.starts, now)
		return 0, true
	}

	wait := l.starts[0].Add(l.cfg.Window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	idx := 0
	for idx < len(l.starts) && !l.starts[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.starts = append(l.starts[:0], l.starts[idx:]...)
	}
}

// nextRetry returns the current consecutive-retry count for the endpoint
// and increments it, or reports false when the budget is exhausted.
func (l *Limiter) nextRetry(endpoint string) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := l.retries[endpoint]
	if count >= l.cfg.MaxRetries {
		return count, false
	}
	l.retries[endpoint] = count + 1
	return count, true
}

func (l *Limiter) resetRetries(endpoint string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.retries, endpoint)
}

// Reset clears window and retry state. In-flight operations keep their
// slots; the semaphore drains as they finish.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.starts = nil
	l.retries = make(map[string]int)
}

// Snapshot is a read-only diagnostic view of limiter state.
type Snapshot struct {
	InFlight     int            `json:"in_flight"`
	WindowStarts int            `json:"window_starts"`
	RetryCounts  map[string]int `json:"retry_counts,omitempty"`
}

// Snapshot reports current in-flight count, trailing-window start count,
// and per-endpoint retry counters.
func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.clock())

	snap := Snapshot{
		InFlight:     len(l.sem),
		WindowStarts: len(l.starts),
	}
	if len(l.retries) > 0 {
		snap.RetryCounts = make(map[string]int, len(l.retries))
		for k, v := range l.retries {
			snap.RetryCounts[k] = v
		}
	}
	return snap
}
