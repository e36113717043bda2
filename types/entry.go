package types

import "time"

// Status is the fetch status of a cache entry.
type Status uint8

const (
	// StatusIdle means the value is current and nothing is loading.
	StatusIdle Status = iota

	// StatusFetching means a fetch for the key is in flight.
	StatusFetching

	// StatusStale means the value was invalidated or outlived its staleness window.
	StatusStale

	// StatusError means the last fetch failed. Value keeps the previous value.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

/*
Entry is what the store keeps for a key.

Entries are never mutated after they are published to readers.
Every write builds a new Entry, which is what makes lock-free reads safe.
*/
type Entry struct {
	Key       Key
	Value     Value // nil => no value yet
	Status    Status
	Err       error // last fetch error when Status == StatusError
	UpdatedAt time.Time

	// FetchGen is bumped by every BeginFetch.
	FetchGen uint64

	// InFlight is the generation of the fetch that may still commit.
	// Zero means there is nothing in flight (or it was cancelled).
	InFlight uint64
}

// HasValue reports whether the entry holds a value.
func (e *Entry) HasValue() bool {
	return e != nil && e.Value != nil
}

// FetchToken identifies one fetch attempt for a key.
type FetchToken struct {
	Key Key
	Gen uint64
}
