// Package queue persists mutating operations that failed while offline and
// replays them in FIFO order once connectivity returns, with bounded
// per-action retries and escalation to a capped permanent-failure log.
package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldsync/fieldsync/internal/core"
)

// ActionStore is the durable log backing the queue.
type ActionStore interface {
	AppendAction(ctx context.Context, action core.OfflineAction, capacity int) error
	ListActions(ctx context.Context) ([]core.OfflineAction, error)
	UpdateActionRetry(ctx context.Context, id string, retryCount int) error
	DeleteAction(ctx context.Context, id string) error
	DeleteActions(ctx context.Context) error
	AppendErrorRecord(ctx context.Context, record core.OfflineErrorRecord, capacity int) error
	ListErrorRecords(ctx context.Context) ([]core.OfflineErrorRecord, error)
	DeleteErrorRecords(ctx context.Context) error
}

// Executor replays a single action against the remote API. Call sites are
// expected to wrap it with the rate limiter's Throttle.
type Executor func(ctx context.Context, action core.OfflineAction) error

// Config controls queue capacities and replay cadence.
type Config struct {
	// Capacity bounds the action log; oldest entries drop beyond it.
	// Default: 500.
	Capacity int

	// ErrorLogCapacity bounds the permanent-failure log. Default: 100.
	ErrorLogCapacity int

	// DefaultMaxRetries applies when Enqueue is called with maxRetries <= 0.
	// Default: 3.
	DefaultMaxRetries int

	// SyncInterval is the periodic replay cadence while online. Default: 5m.
	SyncInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 500
	}
	if c.ErrorLogCapacity <= 0 {
		c.ErrorLogCapacity = 100
	}
	if c.DefaultMaxRetries <= 0 {
		c.DefaultMaxRetries = 3
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = 5 * time.Minute
	}
	return c
}

// Queue is the offline action queue. Construct with New and share by
// reference; it serializes its own state.
type Queue struct {
	store    ActionStore
	executor Executor
	cfg      Config
	logger   *zap.Logger
	clock    func() time.Time
	newID    func() string
	notifier *Notifier

	mu      sync.Mutex
	online  bool
	syncing bool
	// pending coalesces triggers that arrive during a pass into exactly
	// one follow-up pass.
	pending bool
}

// Option customizes a Queue.
type Option func(*Queue)

// WithLogger attaches a logger. Default is a nop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithClock injects a clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) {
		if clock != nil {
			q.clock = clock
		}
	}
}

// WithNotifier attaches a shared notifier instead of the queue's own.
func WithNotifier(n *Notifier) Option {
	return func(q *Queue) {
		if n != nil {
			q.notifier = n
		}
	}
}

// New creates a Queue over the given store and executor. The queue starts
// offline; callers feed connectivity via UpdateConnectivity.
func New(store ActionStore, executor Executor, cfg Config, opts ...Option) *Queue {
	q := &Queue{
		store:    store,
		executor: executor,
		cfg:      cfg.withDefaults(),
		logger:   zap.NewNop(),
		clock:    func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		notifier: NewNotifier(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Notifier exposes the queue's event hub for subscribers.
func (q *Queue) Notifier() *Notifier {
	return q.notifier
}

// Enqueue appends a mutating operation to the durable log. When the tracked
// connectivity is online, a replay pass starts immediately.
func (q *Queue) Enqueue(ctx context.Context, actionType string, payload []byte, maxRetries int) (core.OfflineAction, error) {
	if strings.TrimSpace(actionType) == "" {
		return core.OfflineAction{}, errors.New("action type is required")
	}
	if maxRetries <= 0 {
		maxRetries = q.cfg.DefaultMaxRetries
	}

	action := core.OfflineAction{
		ID:         q.newID(),
		Type:       actionType,
		Payload:    payload,
		EnqueuedAt: q.clock(),
		MaxRetries: maxRetries,
	}

	if err := q.store.AppendAction(ctx, action, q.cfg.Capacity); err != nil {
		return core.OfflineAction{}, err
	}

	q.logger.Debug("offline action queued",
		zap.String("id", action.ID),
		zap.String("type", action.Type))
	q.notifier.publish(Event{Type: EventActionQueued, At: q.clock(), Action: &action})

	if q.Online() {
		report, err := q.Sync(ctx)
		if err != nil {
			q.logger.Debug("post-enqueue sync failed", zap.Error(err))
		}
		_ = report
	}

	return action, nil
}

// UpdateConnectivity records the connectivity signal. An offline-to-online
// transition triggers a replay pass.
func (q *Queue) UpdateConnectivity(ctx context.Context, online bool) {
	q.mu.Lock()
	wasOnline := q.online
	q.online = online
	q.mu.Unlock()

	if online && !wasOnline {
		if _, err := q.Sync(ctx); err != nil {
			q.logger.Debug("connectivity-triggered sync failed", zap.Error(err))
		}
	}
}

// Online reports the tracked connectivity state.
func (q *Queue) Online() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.online
}

// Run drives the periodic replay backstop until ctx is canceled. The ticker
// provides liveness when a connectivity transition was missed.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !q.Online() {
				continue
			}
			if _, err := q.Sync(ctx); err != nil {
				q.logger.Debug("periodic sync failed", zap.Error(err))
			}
		}
	}
}

// Sync runs one FIFO replay pass. Concurrent triggers coalesce: a call
// while a pass is in progress schedules exactly one follow-up pass and
// returns an empty report. One action's failure never blocks the rest of
// the pass.
func (q *Queue) Sync(ctx context.Context) (core.SyncReport, error) {
	q.mu.Lock()
	if q.syncing {
		q.pending = true
		q.mu.Unlock()
		return core.SyncReport{}, nil
	}
	q.syncing = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.syncing = false
		q.mu.Unlock()
	}()

	report, err := q.pass(ctx)
	if err != nil {
		return report, err
	}

	for {
		q.mu.Lock()
		again := q.pending
		q.pending = false
		q.mu.Unlock()
		if !again || ctx.Err() != nil {
			break
		}
		followup, err := q.pass(ctx)
		if err != nil {
			return report, err
		}
		report.Attempted += followup.Attempted
		report.Succeeded += followup.Succeeded
		report.Retrying += followup.Retrying
		report.Abandoned += followup.Abandoned
	}

	return report, nil
}

func (q *Queue) pass(ctx context.Context) (core.SyncReport, error) {
	started := q.clock()
	report := core.SyncReport{StartedAt: started}

	actions, err := q.store.ListActions(ctx)
	if err != nil {
		return report, err
	}

	for _, action := range actions {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		report.Attempted++
		execErr := q.executor(ctx, action)
		if execErr == nil {
			if err := q.store.DeleteAction(ctx, action.ID); err != nil {
				q.logger.Warn("failed to remove replayed action", zap.String("id", action.ID), zap.Error(err))
				continue
			}
			report.Succeeded++
			continue
		}

		// A canceled pass must not burn the action's retry budget.
		if ctx.Err() != nil {
			report.Attempted--
			return report, ctx.Err()
		}

		if action.RetryCount+1 >= action.MaxRetries {
			q.abandon(ctx, action, execErr)
			report.Abandoned++
			continue
		}

		if err := q.store.UpdateActionRetry(ctx, action.ID, action.RetryCount+1); err != nil {
			q.logger.Warn("failed to persist retry count", zap.String("id", action.ID), zap.Error(err))
			continue
		}
		report.Retrying++
	}

	report.Duration = q.clock().Sub(started)
	q.logger.Info("sync pass completed",
		zap.Int("attempted", report.Attempted),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("retrying", report.Retrying),
		zap.Int("abandoned", report.Abandoned))
	q.notifier.publish(Event{Type: EventSyncCompleted, At: q.clock(), Report: &report})

	return report, nil
}

// abandon removes an exhausted action and appends exactly one
// permanent-failure record.
func (q *Queue) abandon(ctx context.Context, action core.OfflineAction, cause error) {
	if err := q.store.DeleteAction(ctx, action.ID); err != nil {
		q.logger.Warn("failed to remove exhausted action", zap.String("id", action.ID), zap.Error(err))
		return
	}

	record := core.OfflineErrorRecord{
		ID:         q.newID(),
		ActionID:   action.ID,
		ActionType: action.Type,
		RetryCount: action.RetryCount + 1,
		Message:    cause.Error(),
		RecordedAt: q.clock(),
	}
	if err := q.store.AppendErrorRecord(ctx, record, q.cfg.ErrorLogCapacity); err != nil {
		q.logger.Warn("failed to append error record", zap.String("id", action.ID), zap.Error(err))
	}

	q.logger.Warn("offline action permanently failed",
		zap.String("id", action.ID),
		zap.String("type", action.Type),
		zap.Int("retry_count", record.RetryCount),
		zap.Error(cause))
	q.notifier.publish(Event{Type: EventActionAbandoned, At: q.clock(), Record: &record})
}

// Summary returns a read-only diagnostic view of the queue.
func (q *Queue) Summary(ctx context.Context) (core.QueueSummary, error) {
	actions, err := q.store.ListActions(ctx)
	if err != nil {
		return core.QueueSummary{}, err
	}
	records, err := q.store.ListErrorRecords(ctx)
	if err != nil {
		return core.QueueSummary{}, err
	}

	summary := core.QueueSummary{
		PendingActions: len(actions),
		ErrorRecords:   len(records),
		Online:         q.Online(),
	}
	if len(actions) > 0 {
		oldest := actions[0].EnqueuedAt
		newest := actions[len(actions)-1].EnqueuedAt
		summary.OldestPending = &oldest
		summary.NewestPending = &newest
	}

	return summary, nil
}

// ErrorRecords returns the permanent-failure log, oldest first.
func (q *Queue) ErrorRecords(ctx context.Context) ([]core.OfflineErrorRecord, error) {
	return q.store.ListErrorRecords(ctx)
}

// Actions returns the pending actions in FIFO order.
func (q *Queue) Actions(ctx context.Context) ([]core.OfflineAction, error) {
	return q.store.ListActions(ctx)
}

// ClearAll empties both the action log and the error log.
func (q *Queue) ClearAll(ctx context.Context) error {
	if err := q.store.DeleteActions(ctx); err != nil {
		return err
	}
	return q.store.DeleteErrorRecords(ctx)
}
