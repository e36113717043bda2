// Package settle applies server outcomes to optimistic mutations:
// commit or roll back their snapshots and reconcile temp records.
package settle

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/krisalay/optimistic-cache/logging"
	"github.com/krisalay/optimistic-cache/snapshot"
	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/types"
)

/*
Outcome is the server's answer to one optimistic mutation.

Handles are the snapshots the mutation produced. When the mutation created a
temp record, Key and TempID locate it and Record is what the server returned
for it.
*/
type Outcome struct {
	Handles snapshot.Bundle
	Err     error

	Key    types.Key
	TempID string
	Record types.Record
}

// Succeeded builds the outcome of a confirmed mutation.
func Succeeded(hs ...*snapshot.Handle) Outcome {
	return Outcome{Handles: hs}
}

// Failed builds the outcome of a rejected mutation.
func Failed(err error, hs ...*snapshot.Handle) Outcome {
	return Outcome{Handles: hs, Err: err}
}

// Reconciling attaches the server record that replaces the temp record tempID at key.
func (o Outcome) Reconciling(key types.Key, tempID string, rec types.Record) Outcome {
	o.Key, o.TempID, o.Record = key, tempID, rec
	return o
}

// OK reports whether the server confirmed the mutation.
func (o Outcome) OK() bool { return o.Err == nil }

/*
Policy decides WHEN outcomes are applied.
Callers hand outcomes over and stop caring about snapshot bookkeeping.
*/
type Policy interface {

	/*
		Settle hands over one outcome.
	*/
	Settle(ctx context.Context, o Outcome) error

	/*
		Close is called on shutdown. No outcome handed over before Close is lost.
	*/
	Close() error
}

// Settler applies outcomes right away. The policies are built on it.
type Settler struct {
	snapshots  *snapshot.Manager
	reconciler *tempid.Reconciler
	logger     *logging.Logger
}

// NewSettler creates a Settler. reconciler may be nil if no outcome carries a temp record.
func NewSettler(snapshots *snapshot.Manager, reconciler *tempid.Reconciler, logger *logging.Logger) *Settler {
	if logger == nil {
		logger = logging.NoopLogger()
	}
	return &Settler{
		snapshots:  snapshots,
		reconciler: reconciler,
		logger:     logger.WithComponent("settle"),
	}
}

/*
Apply settles o.

BEHAVIOR:
---------
  - success : the temp record (if any) is reconciled, then the handles are committed
  - failure : the handles are rolled back and the temp record (if any) is
    discarded, so an outcome without handles still leaves nothing speculative

Every step is attempted; errors are returned together.
*/
func (s *Settler) Apply(ctx context.Context, o Outcome) error {
	var result *multierror.Error

	if o.OK() {
		if o.TempID != "" && o.Record != nil && s.reconciler != nil {
			if _, err := s.reconciler.Reconcile(ctx, o.Key, o.TempID, o.Record); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := s.snapshots.Commit(o.Handles...); err != nil {
			result = multierror.Append(result, err)
		}
	} else {
		if err := s.snapshots.RollbackMany(ctx, o.Handles...); err != nil {
			result = multierror.Append(result, err)
		}
		// usually a no-op after the rollback; without handles it is the only undo
		if o.TempID != "" && s.reconciler != nil {
			if _, err := s.reconciler.Discard(ctx, o.Key, o.TempID); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	err := result.ErrorOrNil()
	s.logger.LogSettle(ctx, len(o.Handles), o.TempID, o.Err, err)
	return err
}
