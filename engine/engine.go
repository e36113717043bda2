package engine

import (
	"context"
	"errors"
	"time"

	"github.com/krisalay/optimistic-cache/logging"
	"github.com/krisalay/optimistic-cache/notify"
	"github.com/krisalay/optimistic-cache/staleness"
	"github.com/krisalay/optimistic-cache/types"
)

// ErrNoFetcher is returned by Fetch when no Fetcher is configured.
var ErrNoFetcher = errors.New("no fetcher configured")

/*
CacheEngine is the policy layer of the store.
It is responsible for the "behavior" around entries, NOT storage.

It decides:
- When an entry counts as stale
- How confirmed values are fetched
- Who hears about writes
- How metrics and logs are recorded

It does NOT:
- Store entries
- Handle sharding or locking
- Decide what a speculative value looks like
*/
type CacheEngine struct {

	// Staleness controls when an entry's value is considered out of date.
	// If nil, entries are only stale after an explicit Invalidate.
	Staleness staleness.Strategy

	// Fetcher is how the store obtains confirmed values.
	// If nil, Fetch fails with ErrNoFetcher; speculative writes still work.
	Fetcher types.Fetcher

	// Hub receives one event per completed write.
	Hub *notify.Hub

	// Metrics counts hits, speculative writes, discarded fetches and rollbacks.
	Metrics types.Metrics

	// Logger receives debug records for races and failures.
	Logger *logging.Logger

	// Clock returns the current time. Tests replace it.
	Clock func() time.Time
}

// NewCacheEngine creates a CacheEngine, filling in no-op collaborators for nil ones.
func NewCacheEngine(
	stale staleness.Strategy,
	fetcher types.Fetcher,
	metrics types.Metrics,
	logger *logging.Logger,
) *CacheEngine {
	if stale == nil {
		stale = staleness.Never{}
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = logging.NoopLogger()
	}

	return &CacheEngine{
		Staleness: stale,
		Fetcher:   fetcher,
		Hub:       &notify.Hub{},
		Metrics:   metrics,
		Logger:    logger,
		Clock:     time.Now,
	}
}

// Now returns the engine's notion of the current time.
func (e *CacheEngine) Now() time.Time {
	return e.Clock()
}

/*
Status returns the status a reader should see for ent.

An idle entry whose value outlived the staleness window reads as stale.
Fetching and error states are reported as stored.
*/
func (e *CacheEngine) Status(ent *types.Entry) types.Status {
	if ent.Status == types.StatusIdle && ent.HasValue() && e.Staleness.IsStale(ent, e.Now()) {
		return types.StatusStale
	}
	return ent.Status
}

// OnRead records a hit or a miss.
func (e *CacheEngine) OnRead(hit bool) {
	if hit {
		e.Metrics.Hit()
	} else {
		e.Metrics.Miss()
	}
}

// OnWrite publishes ev. Called after the shard lock is released.
func (e *CacheEngine) OnWrite(ev notify.Event) {
	if ev.Cause == notify.CauseSpeculate {
		e.Metrics.Speculate()
	}
	e.Hub.Publish(ev)
}

// OnStaleFetch records a fetch result that lost the race against a newer write or fetch.
func (e *CacheEngine) OnStaleFetch(ctx context.Context, tok types.FetchToken, current uint64) {
	e.Metrics.StaleFetch()
	e.Logger.LogStaleFetch(ctx, tok.Key, tok.Gen, current)
}

// Fetch asks the Fetcher for the confirmed value of key.
func (e *CacheEngine) Fetch(ctx context.Context, key types.Key) (types.Value, error) {
	if e.Fetcher == nil {
		return nil, ErrNoFetcher
	}
	return e.Fetcher.Fetch(ctx, key)
}
