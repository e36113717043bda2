package shard

import "sync"

/*
A shard is a small, independent piece of the store.
Instead of one map behind one lock, keys are spread over shards. Each shard:
- Holds some portion of the entries
- Has its own lock for writes

Two writers only contend when their keys land on the same shard.
*/
type Shard struct {

	// Store holds encoded key → entry for this shard.
	// It is a copy-on-write store that allows lock-free reads.
	Store EntryStore

	// WriteMu serializes every write on this shard.
	// - Reads are lock-free
	// - Updaters, fetch bookkeeping and speculative writes run under this mutex
	//
	// Holding it across cancel → capture → apply is what keeps those phases
	// from interleaving with another writer on the same key.
	WriteMu sync.Mutex
}

func NewShard() *Shard {
	return &Shard{
		Store: NewCOWStore(),
	}
}
