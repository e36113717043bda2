// Package metrics provides types.Metrics implementations.
//
// Basic keeps in-memory counters. Prometheus and OTel export the same events
// to the respective monitoring stacks.
package metrics

import (
	"sync/atomic"

	"github.com/krisalay/optimistic-cache/types"
)

// Basic provides simple in-memory metrics collection.
// Useful for tests and debugging without external dependencies.
type Basic struct {
	Hits            atomic.Int64
	Misses          atomic.Int64
	Speculations    atomic.Int64
	StaleFetches    atomic.Int64
	Rollbacks       atomic.Int64
	Superseded      atomic.Int64
	Reconciles      atomic.Int64
	ReconcileMisses atomic.Int64
}

var _ types.Metrics = (*Basic)(nil)

func (b *Basic) Hit()        { b.Hits.Add(1) }
func (b *Basic) Miss()       { b.Misses.Add(1) }
func (b *Basic) Speculate()  { b.Speculations.Add(1) }
func (b *Basic) StaleFetch() { b.StaleFetches.Add(1) }

// Rollback implements types.Metrics.
func (b *Basic) Rollback(superseded int) {
	b.Rollbacks.Add(1)
	b.Superseded.Add(int64(superseded))
}

// Reconcile implements types.Metrics.
func (b *Basic) Reconcile(found bool) {
	if found {
		b.Reconciles.Add(1)
	} else {
		b.ReconcileMisses.Add(1)
	}
}

// Stats is a point-in-time copy of Basic.
type Stats struct {
	Hits            int64
	Misses          int64
	Speculations    int64
	StaleFetches    int64
	Rollbacks       int64
	Superseded      int64
	Reconciles      int64
	ReconcileMisses int64
}

// Stats returns the current counter values.
func (b *Basic) Stats() Stats {
	return Stats{
		Hits:            b.Hits.Load(),
		Misses:          b.Misses.Load(),
		Speculations:    b.Speculations.Load(),
		StaleFetches:    b.StaleFetches.Load(),
		Rollbacks:       b.Rollbacks.Load(),
		Superseded:      b.Superseded.Load(),
		Reconciles:      b.Reconciles.Load(),
		ReconcileMisses: b.ReconcileMisses.Load(),
	}
}
