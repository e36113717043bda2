package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/krisalay/optimistic-cache/logging"
	"github.com/krisalay/optimistic-cache/types"
)

var (
	// ErrHandleConsumed is returned when a handle is rolled back or committed twice.
	ErrHandleConsumed = errors.New("snapshot handle already consumed")

	// ErrNilHandle is returned for a nil handle.
	ErrNilHandle = errors.New("nil snapshot handle")

	// ErrForeignHandle is returned for a handle taken by another Manager.
	ErrForeignHandle = errors.New("snapshot handle belongs to another manager")
)

// Store is the part of the cache store the manager needs.
type Store interface {
	Get(key types.Key) (types.Value, bool)
	Set(key types.Key, fn types.Updater) error
	Speculate(key types.Key, fn types.Updater) (types.Value, error)
}

// Manager takes snapshots and rolls them back.
type Manager struct {
	store   Store
	metrics types.Metrics
	logger  *logging.Logger
	clock   func() time.Time

	seq atomic.Uint64

	mu      sync.Mutex
	pending map[string]map[uint64]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics sets the sink for rollback events.
func WithMetrics(m types.Metrics) Option {
	return func(mgr *Manager) {
		if m != nil {
			mgr.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(mgr *Manager) {
		if l != nil {
			mgr.logger = l
		}
	}
}

// NewManager creates a Manager writing through store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		metrics: types.NoopMetrics{},
		logger:  logging.NoopLogger(),
		clock:   time.Now,
		pending: make(map[string]map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("snapshot")
	return m
}

func (m *Manager) newHandle(key types.Key, v types.Value) *Handle {
	h := &Handle{
		mgr:     m,
		seq:     m.seq.Add(1),
		key:     key,
		value:   types.Clone(v),
		takenAt: m.clock(),
	}

	m.mu.Lock()
	set, ok := m.pending[key.String()]
	if !ok {
		set = make(map[uint64]struct{})
		m.pending[key.String()] = set
	}
	set[h.seq] = struct{}{}
	m.mu.Unlock()

	return h
}

// untrack forgets h and returns how many newer handles are still pending on its key.
func (m *Manager) untrack(h *Handle) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.pending[h.key.String()]
	delete(set, h.seq)

	newer := 0
	for seq := range set {
		if seq > h.seq {
			newer++
		}
	}
	if len(set) == 0 {
		delete(m.pending, h.key.String())
	}
	return newer
}

// Snapshot captures the current value at key.
func (m *Manager) Snapshot(key types.Key) *Handle {
	v, _ := m.store.Get(key)
	return m.newHandle(key, v)
}

/*
Apply performs a speculative write and returns the handle that undoes it.

The store cancels any in-flight fetch, captures the previous value and applies
fn in one step. If fn fails, nothing is written and no handle is created.
*/
func (m *Manager) Apply(key types.Key, fn types.Updater) (*Handle, error) {
	prev, err := m.store.Speculate(key, fn)
	if err != nil {
		return nil, err
	}
	return m.newHandle(key, prev), nil
}

func (m *Manager) consume(h *Handle) error {
	if h == nil {
		return ErrNilHandle
	}
	if h.mgr != m {
		return fmt.Errorf("%s: %w", h.key, ErrForeignHandle)
	}
	if !h.consumed.CompareAndSwap(false, true) {
		return fmt.Errorf("%s (snapshot %d): %w", h.key, h.seq, ErrHandleConsumed)
	}
	return nil
}

/*
Rollback writes the captured value back to its key and consumes the handle.

The restore is unconditional: whatever is at the key now is replaced,
including later speculative writes (see package doc). If the key had no value
when the snapshot was taken, the value is cleared again.
*/
func (m *Manager) Rollback(ctx context.Context, h *Handle) error {
	if err := m.consume(h); err != nil {
		return err
	}

	superseded := m.untrack(h)
	err := m.store.Set(h.key, func(types.Value) (types.Value, error) {
		return types.Clone(h.value), nil
	})

	m.metrics.Rollback(superseded)
	m.logger.LogRollback(ctx, h.key, h.seq, superseded, err)
	return err
}

// RollbackMany rolls back every handle in order. A failing handle does not
// stop the rest; all errors are returned together.
func (m *Manager) RollbackMany(ctx context.Context, hs ...*Handle) error {
	var result *multierror.Error
	for _, h := range hs {
		if err := m.Rollback(ctx, h); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Commit confirms the mutations behind hs. The store is not touched;
// the snapshots are discarded and the handles consumed.
func (m *Manager) Commit(hs ...*Handle) error {
	var result *multierror.Error
	for _, h := range hs {
		if err := m.consume(h); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		m.untrack(h)
	}
	return result.ErrorOrNil()
}

// Pending returns the number of outstanding handles for key.
func (m *Manager) Pending(key types.Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending[key.String()])
}
