package shard

import (
	"hash/fnv"

	"github.com/krisalay/optimistic-cache/types"
)

/*
Selector decides which shard should handle a given key.
The store does not care HOW this decision is made.
*/
type Selector interface {
	Select(types.Key, []*Shard) *Shard
}

// HashSelector picks a shard by hashing the key's canonical encoding.
// Equal keys always land on the same shard.
type HashSelector struct{}

// hash converts an encoded key into a number. FNV is fast and non-cryptographic.
func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

// Select chooses the shard for a given key.
func (HashSelector) Select(key types.Key, shards []*Shard) *Shard {
	if len(shards) == 1 {
		return shards[0]
	}
	idx := hash(key.String()) % uint32(len(shards))
	return shards[idx]
}
