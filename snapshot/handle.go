package snapshot

import (
	"sync/atomic"
	"time"

	"github.com/krisalay/optimistic-cache/types"
)

// Handle is an opaque, single-use reference to a captured value.
type Handle struct {
	mgr     *Manager
	seq     uint64
	key     types.Key
	value   types.Value // deep copy, nil => key had no value
	takenAt time.Time

	consumed atomic.Bool
}

// Key returns the key the snapshot was taken from.
func (h *Handle) Key() types.Key { return h.key }

// Seq orders handles taken by the same manager.
func (h *Handle) Seq() uint64 { return h.seq }

// TakenAt returns the capture time.
func (h *Handle) TakenAt() time.Time { return h.takenAt }

// Value returns a copy of the captured value, nil if the key had none.
func (h *Handle) Value() types.Value { return types.Clone(h.value) }

// Consumed reports whether the handle was already rolled back or committed.
func (h *Handle) Consumed() bool { return h.consumed.Load() }

// Bundle is a set of handles that must be rolled back or committed together,
// for example a like counter and the feed row mirroring it.
type Bundle []*Handle

// Keys returns the keys covered by the bundle, in order.
func (b Bundle) Keys() []types.Key {
	keys := make([]types.Key, 0, len(b))
	for _, h := range b {
		if h != nil {
			keys = append(keys, h.key)
		}
	}
	return keys
}
