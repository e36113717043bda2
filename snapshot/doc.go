// Package snapshot captures cache values before speculative writes and
// restores them when the server rejects the mutation.
//
// A Handle is single use: it is consumed by exactly one Rollback or Commit.
// Using it again returns ErrHandleConsumed so bookkeeping bugs in call sites
// show up in tests instead of silently corrupting the cache.
//
// Rollback is last-known-good, not an undo stack: restoring an older handle
// overwrites every speculative write made on the key after it was taken,
// including writes whose own handles are still pending. The manager logs a
// warning and reports the number of such superseded handles to Metrics.
package snapshot
