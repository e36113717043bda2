// This file defines how the store tells the presentation layer that a value changed.

package notify

import (
	"sync"

	"github.com/krisalay/optimistic-cache/types"
)

// Cause says which store operation produced an event.
type Cause uint8

const (
	CauseWrite Cause = iota
	CauseSpeculate
	CauseFetchStart
	CauseFetchDone
	CauseInvalidate
	CauseRemove
)

func (c Cause) String() string {
	switch c {
	case CauseWrite:
		return "write"
	case CauseSpeculate:
		return "speculate"
	case CauseFetchStart:
		return "fetch-start"
	case CauseFetchDone:
		return "fetch-done"
	case CauseInvalidate:
		return "invalidate"
	case CauseRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is published after a write completes. Entry is nil for CauseRemove.
type Event struct {
	Key   types.Key
	Entry *types.Entry
	Cause Cause
}

/*
Func receives events.

It runs synchronously on the writer's goroutine, after the shard lock has been
released, so it may read the store. It MUST be fast: every write waits for it.
*/
type Func func(Event)

type subscription struct {
	id     uint64
	filter *types.Key
	fn     Func
}

/*
Hub fans events out to subscribers in subscription order.
The zero value is ready to use.
*/
type Hub struct {
	mu   sync.RWMutex
	next uint64
	subs []subscription
}

// Subscribe registers fn for every event. The returned func unsubscribes; calling it twice is safe.
func (h *Hub) Subscribe(fn Func) func() {
	return h.add(nil, fn)
}

// SubscribeKey registers fn for events on exactly key.
func (h *Hub) SubscribeKey(key types.Key, fn Func) func() {
	return h.add(&key, fn)
}

func (h *Hub) add(filter *types.Key, fn Func) func() {
	h.mu.Lock()
	h.next++
	id := h.next
	h.subs = append(h.subs, subscription{id: id, filter: filter, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, s := range h.subs {
		if s.id == id {
			h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers ev to every matching subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	subs := h.subs
	h.mu.RUnlock()

	for _, s := range subs {
		if s.filter != nil && !s.filter.Equal(ev.Key) {
			continue
		}
		s.fn(ev)
	}
}

// Len returns the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
