package optimistic

import (
	"context"
	"errors"

	"github.com/krisalay/optimistic-cache/api"
	"github.com/krisalay/optimistic-cache/engine"
	"github.com/krisalay/optimistic-cache/logging"
	"github.com/krisalay/optimistic-cache/notify"
	"github.com/krisalay/optimistic-cache/shard"
	"github.com/krisalay/optimistic-cache/types"
	"golang.org/x/sync/singleflight"
)

// ErrNoFetcher is returned by Fetch when the store was built without a Fetcher.
var ErrNoFetcher = engine.ErrNoFetcher

/*
ShardedStore is the main Store implementation.
This struct is the orchestrator that connects:
- shards (copy-on-write entry maps)
- the engine (staleness, fetching, notifications, metrics)
- fetch generations (cooperative cancellation)
*/
type ShardedStore struct {
	// shards are the actual storage units.
	shards []*shard.Shard

	// engine contains the "rules" around entries.
	engine *engine.CacheEngine

	// selector decides which shard a key goes to.
	selector shard.Selector

	// sf makes concurrent Fetch calls for one key share a single network round trip.
	sf singleflight.Group
}

// NewStore builds an isolated store. Each test or session owns its own instance.
func NewStore(optFns ...Option) *ShardedStore {
	o := applyOptions(optFns)

	s := make([]*shard.Shard, o.shards)
	for i := range s {
		s[i] = shard.NewShard()
	}

	eng := engine.NewCacheEngine(o.staleness, o.fetcher, o.metrics, o.logger.WithComponent("store"))
	if o.clock != nil {
		eng.Clock = o.clock
	}

	return &ShardedStore{
		shards:   s,
		engine:   eng,
		selector: shard.HashSelector{},
	}
}

/*
mutate runs fn under the shard write lock for key.

fn receives the current entry (nil if absent) and returns the entry to publish.
Returning a nil entry means "nothing to write". Whatever fn returns, the lock is
released before subscribers are notified, so a subscriber may read the store.
A panicking updater leaves the shard unlocked and the entry untouched.
*/
func (s *ShardedStore) mutate(
	key types.Key,
	cause notify.Cause,
	fn func(cur *types.Entry) (*types.Entry, error),
) (*types.Entry, error) {
	sh := s.selector.Select(key, s.shards)

	next, err := func() (*types.Entry, error) {
		sh.WriteMu.Lock()
		defer sh.WriteMu.Unlock()

		cur, _ := sh.Store.Get(key.String())
		next, err := fn(cur)
		if err != nil || next == nil {
			return nil, err
		}
		sh.Store.Put(key.String(), next)
		return next, nil
	}()
	if err != nil || next == nil {
		return nil, err
	}

	s.engine.OnWrite(notify.Event{Key: key, Entry: next, Cause: cause})
	return next, nil
}

// derive copies cur (or starts a new entry) so the published one is never mutated.
func derive(cur *types.Entry, key types.Key) *types.Entry {
	if cur == nil {
		return &types.Entry{Key: key, Status: types.StatusIdle}
	}
	next := *cur
	return &next
}

/*
Get returns the current value at key, with no side effects on the entry.
The returned value is shared and MUST NOT be modified.
*/
func (s *ShardedStore) Get(key types.Key) (types.Value, bool) {
	sh := s.selector.Select(key, s.shards)

	ent, ok := sh.Store.Get(key.String())
	hit := ok && ent.HasValue()
	s.engine.OnRead(hit)
	if !hit {
		return nil, false
	}
	return ent.Value, true
}

// Entry returns a copy of the entry at key with its effective status.
func (s *ShardedStore) Entry(key types.Key) (types.Entry, bool) {
	sh := s.selector.Select(key, s.shards)

	ent, ok := sh.Store.Get(key.String())
	if !ok {
		return types.Entry{}, false
	}
	out := *ent
	out.Status = s.engine.Status(ent)
	return out, true
}

/*
Set computes and stores a new value for key.

BEHAVIOR:
---------
- fn runs under the shard lock, so it is atomic with respect to other writers
- an error from fn is returned as-is and nothing is written
- types.ErrSkipWrite from fn means "no change": nil is returned, nothing is written
- a nil value clears the value but keeps the entry (and its fetch bookkeeping)
- a completed Set clears stale/error status; an in-flight fetch stays in flight
*/
func (s *ShardedStore) Set(key types.Key, fn types.Updater) error {
	_, err := s.mutate(key, notify.CauseWrite, func(cur *types.Entry) (*types.Entry, error) {
		var old types.Value
		if cur != nil {
			old = cur.Value
		}

		v, err := fn(old)
		if errors.Is(err, types.ErrSkipWrite) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		next := derive(cur, key)
		next.Value = v
		next.UpdatedAt = s.engine.Now()
		next.Err = nil
		if next.Status != types.StatusFetching {
			next.Status = types.StatusIdle
		}
		return next, nil
	})
	return err
}

/*
Speculate applies an optimistic write.

Under ONE shard critical section it:
1. Cancels any in-flight fetch for key (a late response can no longer land)
2. Captures the previous value
3. Applies fn and stores the result

prev is the value before fn ran (nil if none). It is shared; callers that keep
it must Clone it. If fn returns ErrSkipWrite the cancellation still happens.
*/
func (s *ShardedStore) Speculate(key types.Key, fn types.Updater) (types.Value, error) {
	var prev types.Value

	_, err := s.mutate(key, notify.CauseSpeculate, func(cur *types.Entry) (*types.Entry, error) {
		if cur != nil {
			prev = cur.Value
		}

		v, err := fn(prev)
		skip := errors.Is(err, types.ErrSkipWrite)
		if err != nil && !skip {
			return nil, err
		}

		cancelled := cur != nil && cur.InFlight != 0
		if skip && !cancelled {
			return nil, nil
		}

		next := derive(cur, key)
		if cancelled {
			next.InFlight = 0
			if next.Status == types.StatusFetching {
				next.Status = types.StatusIdle
			}
		}
		if !skip {
			next.Value = v
			next.UpdatedAt = s.engine.Now()
			next.Err = nil
			next.Status = types.StatusIdle
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return prev, nil
}

/*
CancelInFlight marks the pending fetch for key as obsolete.

The fetch is not aborted. When it completes, CompleteFetch sees that its
generation is no longer the one in flight and drops the result.
Returns false when nothing was in flight.
*/
func (s *ShardedStore) CancelInFlight(key types.Key) bool {
	next, _ := s.mutate(key, notify.CauseFetchDone, func(cur *types.Entry) (*types.Entry, error) {
		if cur == nil || cur.InFlight == 0 {
			return nil, nil
		}
		next := derive(cur, key)
		next.InFlight = 0
		if next.Status == types.StatusFetching {
			next.Status = types.StatusIdle
		}
		return next, nil
	})
	return next != nil
}

// BeginFetch starts a fetch generation for key and marks the entry as fetching.
// Any earlier fetch for key becomes obsolete.
func (s *ShardedStore) BeginFetch(key types.Key) types.FetchToken {
	var tok types.FetchToken

	_, _ = s.mutate(key, notify.CauseFetchStart, func(cur *types.Entry) (*types.Entry, error) {
		next := derive(cur, key)
		next.FetchGen++
		next.InFlight = next.FetchGen
		next.Status = types.StatusFetching
		tok = types.FetchToken{Key: key, Gen: next.FetchGen}
		return next, nil
	})
	return tok
}

/*
CompleteFetch delivers the outcome of the fetch identified by tok.

RETURN VALUES:
--------------
true  : the result was applied (value written, or error status recorded)
false : the fetch was obsolete and its result was discarded

A fetch is obsolete once it was cancelled, superseded by a newer BeginFetch,
or its entry was removed. This is an expected race, not an error.
*/
func (s *ShardedStore) CompleteFetch(ctx context.Context, tok types.FetchToken, v types.Value, fetchErr error) bool {
	var current uint64
	stale := false

	next, _ := s.mutate(tok.Key, notify.CauseFetchDone, func(cur *types.Entry) (*types.Entry, error) {
		if cur == nil || cur.InFlight != tok.Gen {
			stale = true
			if cur != nil {
				current = cur.InFlight
			}
			return nil, nil
		}

		next := derive(cur, tok.Key)
		next.InFlight = 0
		if fetchErr != nil {
			next.Status = types.StatusError
			next.Err = fetchErr
			return next, nil
		}
		next.Value = v
		next.Status = types.StatusIdle
		next.Err = nil
		next.UpdatedAt = s.engine.Now()
		return next, nil
	})

	if stale {
		s.engine.OnStaleFetch(ctx, tok, current)
	}
	return next != nil
}

/*
Fetch loads the confirmed value for key through the configured Fetcher.

Concurrent Fetch calls for the same key share one request (singleflight).
If a speculative write cancels the fetch while it is in flight, the response
is dropped and Fetch returns whatever the store holds instead.
*/
func (s *ShardedStore) Fetch(ctx context.Context, key types.Key) (types.Value, error) {
	if s.engine.Fetcher == nil {
		return nil, ErrNoFetcher
	}

	_, err, _ := s.sf.Do(key.String(), func() (any, error) {
		tok := s.BeginFetch(key)
		v, err := s.engine.Fetch(ctx, key)
		s.CompleteFetch(ctx, tok, v, err)
		return v, err
	})
	if err != nil {
		return nil, err
	}

	v, _ := s.Get(key)
	return v, nil
}

// EnsureFresh fetches key only when it has no value or its value is stale or errored.
func (s *ShardedStore) EnsureFresh(ctx context.Context, key types.Key) (types.Value, error) {
	if ent, ok := s.Entry(key); ok && ent.HasValue() && ent.Status == types.StatusIdle {
		return ent.Value, nil
	}
	return s.Fetch(ctx, key)
}

// Invalidate marks key stale. Entries being fetched are left alone: the fetch refreshes them.
func (s *ShardedStore) Invalidate(key types.Key) bool {
	next, _ := s.mutate(key, notify.CauseInvalidate, func(cur *types.Entry) (*types.Entry, error) {
		if cur == nil || cur.Status == types.StatusFetching || cur.Status == types.StatusStale {
			return nil, nil
		}
		next := derive(cur, key)
		next.Status = types.StatusStale
		return next, nil
	})
	return next != nil
}

// InvalidatePrefix marks every key under prefix stale and returns how many changed.
func (s *ShardedStore) InvalidatePrefix(prefix types.Key) int {
	var keys []types.Key
	for _, sh := range s.shards {
		sh.Store.Range(func(_ string, ent *types.Entry) bool {
			if ent.Key.HasPrefix(prefix) {
				keys = append(keys, ent.Key)
			}
			return true
		})
	}

	n := 0
	for _, k := range keys {
		if s.Invalidate(k) {
			n++
		}
	}
	return n
}

/*
Remove deletes the entry at key immediately.

Any fetch still in flight for key becomes obsolete, because its generation
no longer exists. Removing a missing key is safe.
*/
func (s *ShardedStore) Remove(key types.Key) {
	sh := s.selector.Select(key, s.shards)

	sh.WriteMu.Lock()
	_, ok := sh.Store.Get(key.String())
	sh.Store.Delete(key.String())
	sh.WriteMu.Unlock()

	if ok {
		s.engine.OnWrite(notify.Event{Key: key, Cause: notify.CauseRemove})
	}
}

// Subscribe registers fn for every write. The returned func unsubscribes.
func (s *ShardedStore) Subscribe(fn notify.Func) func() {
	return s.engine.Hub.Subscribe(fn)
}

// SubscribeKey registers fn for writes to exactly key.
func (s *ShardedStore) SubscribeKey(key types.Key, fn notify.Func) func() {
	return s.engine.Hub.SubscribeKey(key, fn)
}

// Len returns the number of entries across all shards.
func (s *ShardedStore) Len() int {
	var n int64
	for _, sh := range s.shards {
		n += sh.Store.Size()
	}
	return int(n)
}

// Metrics returns the metrics sink the store reports to.
func (s *ShardedStore) Metrics() types.Metrics {
	return s.engine.Metrics
}

// Logger returns the store's logger so collaborators can share it.
func (s *ShardedStore) Logger() *logging.Logger {
	return s.engine.Logger
}

var _ api.Store = (*ShardedStore)(nil)
