package queue

import (
	"sync"
	"time"

	"github.com/fieldsync/fieldsync/internal/core"
)

// EventType identifies a queue notification.
type EventType string

const (
	// EventActionQueued fires when an action is appended to the log.
	EventActionQueued EventType = "action_queued"
	// EventSyncCompleted fires after a replay pass with its counts.
	EventSyncCompleted EventType = "sync_completed"
	// EventActionAbandoned fires when an action exhausts its retries and a
	// permanent-failure record is appended.
	EventActionAbandoned EventType = "action_abandoned"
)

// Event is a queue notification. Exactly one of Action, Record, or Report
// is set depending on Type.
type Event struct {
	Type   EventType
	At     time.Time
	Action *core.OfflineAction
	Record *core.OfflineErrorRecord
	Report *core.SyncReport
}

// Notifier is a small in-process pub/sub hub. Callbacks run synchronously
// on the publishing goroutine and must not block.
type Notifier struct {
	mu   sync.RWMutex
	subs map[int]func(Event)
	next int
}

// NewNotifier creates an empty hub.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Event))}
}

// Subscribe registers fn for every subsequent event and returns a cancel
// function.
func (n *Notifier) Subscribe(fn func(Event)) func() {
	if n == nil || fn == nil {
		return func() {}
	}

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

func (n *Notifier) publish(evt Event) {
	if n == nil {
		return
	}

	n.mu.RLock()
	fns := make([]func(Event), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}
