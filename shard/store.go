package shard

import (
	"maps"
	"sync/atomic"

	"github.com/krisalay/optimistic-cache/types"
)

/*
This file defines how entries are actually stored inside a shard.
- Reads (Get, snapshot capture, subscribers re-reading) should be very fast
- Reads should NOT require locks
- Writes happen once per user action and can afford extra work

To achieve this, we use "Copy-On-Write" (COW): readers see an immutable map,
writers publish a new one.
*/

// EntryStore is the interface used by a shard to store and retrieve entries.
type EntryStore interface {

	// Get retrieves an entry by encoded key.
	Get(string) (*types.Entry, bool)

	// Put inserts or replaces an entry. The entry must not be mutated afterwards.
	Put(string, *types.Entry)

	// Delete removes an entry.
	Delete(string)

	// Range calls fn for every entry until fn returns false.
	Range(fn func(string, *types.Entry) bool)

	// Size returns how many entries are stored.
	Size() int64
}

type entries map[string]*types.Entry

// cowStore is a Copy-On-Write implementation of EntryStore.
type cowStore struct {
	// data is replaced wholesale on every write; a loaded map is never modified.
	data atomic.Pointer[entries]
	size atomic.Int64
}

// NewCOWStore returns an empty copy-on-write EntryStore.
func NewCOWStore() EntryStore {
	s := &cowStore{}
	s.data.Store(&entries{})
	return s
}

func (s *cowStore) load() entries {
	return *s.data.Load()
}

func (s *cowStore) publish(n entries) {
	s.data.Store(&n)
	s.size.Store(int64(len(n)))
}

func (s *cowStore) Get(key string) (*types.Entry, bool) {
	ent, ok := s.load()[key]
	return ent, ok
}

// Put publishes a copy of the current map with key set to ent.
func (s *cowStore) Put(key string, ent *types.Entry) {
	n := maps.Clone(s.load())
	n[key] = ent
	s.publish(n)
}

// Delete publishes a copy without key. Deleting a missing key publishes nothing.
func (s *cowStore) Delete(key string) {
	cur := s.load()
	if _, ok := cur[key]; !ok {
		return
	}
	n := maps.Clone(cur)
	delete(n, key)
	s.publish(n)
}

// Range iterates over one published version of the map.
func (s *cowStore) Range(fn func(string, *types.Entry) bool) {
	for k, v := range s.load() {
		if !fn(k, v) {
			return
		}
	}
}

func (s *cowStore) Size() int64 {
	return s.size.Load()
}
