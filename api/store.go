package api

import (
	"context"

	"github.com/krisalay/optimistic-cache/notify"
	"github.com/krisalay/optimistic-cache/types"
)

/*
Store defines the PUBLIC API of the optimistic cache store.
This is a contract that guarantees certain behaviors, without exposing internals.
Sharding, copy-on-write, fetch generations and notification fan-out are all
hidden behind this interface.
*/
type Store interface {

	/*
		Get returns the current value at key.

		BEHAVIOR:
		-------------------
		- No side effects on the entry
		- Returns (nil, false) when there is no entry or the entry has no value
		- The returned value is shared with other readers and MUST NOT be modified
	*/
	Get(key types.Key) (types.Value, bool)

	// Entry returns the value together with its effective fetch status.
	Entry(key types.Key) (types.Entry, bool)

	/*
		Set stores the value computed by fn from the current value.

		BEHAVIOR:
		---------
		- fn is called with nil when there is no value
		- fn runs atomically with respect to every other writer of key
		- an error from fn is returned unchanged and NOTHING is written
		- types.ErrSkipWrite from fn is "no change" and returns nil
		- subscribers are notified synchronously after the write
	*/
	Set(key types.Key, fn types.Updater) error

	/*
		Speculate is the optimistic write: cancel in-flight fetch, capture, apply.

		All three phases run in one critical section, so no other writer of key
		can run between them. prev is the value before fn (nil if none).
	*/
	Speculate(key types.Key, fn types.Updater) (prev types.Value, err error)

	/*
		CancelInFlight marks any pending fetch for key as obsolete.

		IMPORTANT:
		----------
		- The fetch keeps running; its result is dropped when it arrives
		- Must happen BEFORE a speculative write, otherwise a response that was
		  already on its way can overwrite the speculative value
		- Returns false when nothing was in flight
	*/
	CancelInFlight(key types.Key) bool

	// BeginFetch starts a new fetch generation for key.
	BeginFetch(key types.Key) types.FetchToken

	// CompleteFetch applies a fetch result if its generation is still current.
	CompleteFetch(ctx context.Context, tok types.FetchToken, v types.Value, err error) bool

	// Fetch loads key through the configured Fetcher.
	Fetch(ctx context.Context, key types.Key) (types.Value, error)

	// EnsureFresh fetches key only when its value is missing, stale or errored.
	EnsureFresh(ctx context.Context, key types.Key) (types.Value, error)

	// Invalidate marks key stale. It does not remove the value.
	Invalidate(key types.Key) bool

	// InvalidatePrefix marks every key starting with prefix stale.
	InvalidatePrefix(prefix types.Key) int

	/*
		Remove deletes key from the store immediately.

		This operation is idempotent. Eviction POLICY is up to the caller;
		the store only offers the primitive.
	*/
	Remove(key types.Key)

	// Subscribe registers fn for every write; the returned func unsubscribes.
	Subscribe(fn notify.Func) func()

	// SubscribeKey registers fn for writes to exactly key.
	SubscribeKey(key types.Key, fn notify.Func) func()
}
