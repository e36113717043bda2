// This file defines when a cached value stops being considered fresh.

package staleness

import (
	"time"

	"github.com/krisalay/optimistic-cache/types"
)

/*
Strategy is the interface all staleness rules follow.

Staleness never removes a value. A stale entry still serves reads, still accepts
speculative writes and can still be rolled back. It only tells EnsureFresh that
a refetch is due and lets subscribers show that the value may be out of date.
*/
type Strategy interface {

	// IsStale reports whether the entry should be treated as stale at now.
	IsStale(ent *types.Entry, now time.Time) bool
}

// Never keeps every entry fresh until it is invalidated explicitly.
type Never struct{}

func (Never) IsStale(*types.Entry, time.Time) bool { return false }
