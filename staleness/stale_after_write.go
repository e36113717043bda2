package staleness

import (
	"time"

	"github.com/krisalay/optimistic-cache/types"
)

/*
StaleAfterWrite marks an entry stale once TTL has passed since its last write.

Speculative writes count as writes: a value the user just changed is not
refetched from under them.
*/
type StaleAfterWrite struct {
	TTL time.Duration
}

// IsStale checks whether the entry outlived its TTL.
func (s StaleAfterWrite) IsStale(ent *types.Entry, now time.Time) bool {
	if s.TTL <= 0 || ent == nil || ent.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(ent.UpdatedAt) > s.TTL
}
