package tempid

import (
	"context"
	"errors"
	"fmt"

	"github.com/krisalay/optimistic-cache/logging"
	"github.com/krisalay/optimistic-cache/types"
)

// ErrNotCollection is returned when the value at the key holds no records.
var ErrNotCollection = errors.New("value is not a record collection")

// Store is the part of the cache store the reconciler needs.
type Store interface {
	Set(key types.Key, fn types.Updater) error
}

// Reconciler swaps temp records for confirmed ones, or drops them.
type Reconciler struct {
	store   Store
	metrics types.Metrics
	logger  *logging.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithMetrics sets the sink for reconcile events.
func WithMetrics(m types.Metrics) Option {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReconciler creates a Reconciler writing through store.
func NewReconciler(store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		metrics: types.NoopMetrics{},
		logger:  logging.NoopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("reconciler")
	return r
}

func asCollection(v types.Value) (types.Collection, error) {
	c, ok := v.(types.Collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCollection, v.Kind())
	}
	return c, nil
}

/*
Reconcile replaces the temp record tempID at key with the server record.

BEHAVIOR:
---------
  - found     : the record is replaced in place, speculative marker cleared
  - not found : no-op, returns (false, nil), because the collection may have
    been refetched or evicted while the request was in flight
  - error     : the key holds something that is not a collection, or rec is
    the wrong record type for it. Nothing is written.
*/
func (r *Reconciler) Reconcile(ctx context.Context, key types.Key, tempID string, rec types.Record) (bool, error) {
	found := false
	err := r.store.Set(key, func(old types.Value) (types.Value, error) {
		if old == nil {
			return nil, types.ErrSkipWrite
		}
		c, err := asCollection(old)
		if err != nil {
			return nil, err
		}
		next, ok, err := c.Replace(tempID, rec)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, types.ErrSkipWrite
		}
		found = true
		return next, nil
	})

	if err == nil {
		r.metrics.Reconcile(found)
	}
	r.logger.LogReconcile(ctx, "reconcile", key, tempID, found, err)
	return found, err
}

// Discard removes the temp record tempID from the collection at key.
// Like Reconcile, a missing record is a no-op.
func (r *Reconciler) Discard(ctx context.Context, key types.Key, tempID string) (bool, error) {
	found := false
	err := r.store.Set(key, func(old types.Value) (types.Value, error) {
		if old == nil {
			return nil, types.ErrSkipWrite
		}
		c, err := asCollection(old)
		if err != nil {
			return nil, err
		}
		next, ok := c.Remove(tempID)
		if !ok {
			return nil, types.ErrSkipWrite
		}
		found = true
		return next, nil
	})

	if err == nil {
		r.metrics.Reconcile(found)
	}
	r.logger.LogReconcile(ctx, "discard", key, tempID, found, err)
	return found, err
}
