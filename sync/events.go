// ABOUTME: Synchronous in-process event bus for sync notifications
// ABOUTME: Handlers run on the publishing goroutine in subscription order
package sync

import (
	gosync "sync"

	"github.com/harperreed/stakemap/models"
)

// EventKind identifies what happened.
type EventKind string

const (
	// EventSynced fires once per completed reconciliation.
	EventSynced EventKind = "synced"
	// EventMirrorFailed fires when a cloud mirror write fails.
	EventMirrorFailed EventKind = "mirror_failed"
	// EventLoggedOut fires after the engine returns to anonymous mode.
	EventLoggedOut EventKind = "logged_out"
)

// Event carries the payload for one notification. Fields not relevant to
// Kind are zero.
type Event struct {
	Kind   EventKind
	UserID string

	// EventSynced
	Maps   []*models.Map
	Result *ReconcileResult

	// EventMirrorFailed
	Op       string
	EntityID string
	Err      error
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers. Publish calls every handler, in the
// order they subscribed, before returning.
type Bus struct {
	mu     gosync.RWMutex
	nextID uint64
	subs   []subscription
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})

	var once gosync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to a snapshot of the current subscribers.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(ev)
	}
}
