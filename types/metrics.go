package types

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the lifecycle of a speculative write.
*/
type Metrics interface {

	// Hit is called when Get finds a value.
	Hit()

	// Miss is called when Get finds nothing at the key.
	Miss()

	// Speculate is called for every speculative write applied through Speculate.
	Speculate()

	// StaleFetch is called when a fetch completes after its key was cancelled or refetched,
	// and the result is discarded.
	StaleFetch()

	// Rollback is called for every snapshot restored into the store.
	// superseded is the number of newer pending snapshots on the same key whose effect was overwritten.
	Rollback(superseded int)

	// Reconcile is called after Reconcile or Discard. found is false on a reconciliation miss.
	Reconcile(found bool)
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

If someone does not care about metrics, the store still works without
nil checks everywhere.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()           {}
func (NoopMetrics) Miss()          {}
func (NoopMetrics) Speculate()     {}
func (NoopMetrics) StaleFetch()    {}
func (NoopMetrics) Rollback(int)   {}
func (NoopMetrics) Reconcile(bool) {}
