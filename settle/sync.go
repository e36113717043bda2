package settle

import "context"

/*
SyncPolicy settles every outcome on the caller's goroutine.

Settle returns only after the cache reflects the outcome, so the caller sees
the confirmed or restored state immediately.
*/
type SyncPolicy struct {
	settler *Settler
}

var _ Policy = (*SyncPolicy)(nil)

// NewSyncPolicy creates a SyncPolicy.
func NewSyncPolicy(s *Settler) *SyncPolicy {
	return &SyncPolicy{settler: s}
}

// Settle applies o now.
func (p *SyncPolicy) Settle(ctx context.Context, o Outcome) error {
	return p.settler.Apply(ctx, o)
}

// Close has nothing to release.
func (p *SyncPolicy) Close() error { return nil }
