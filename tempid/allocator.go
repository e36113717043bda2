// Package tempid allocates placeholder identifiers for records created
// optimistically and swaps them for server records once confirmed.
package tempid

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultPrefix starts every temp identifier. Server identifiers never use it.
const DefaultPrefix = "temp-"

/*
Allocator hands out temp identifiers of the form <prefix><seq>-<uuid>.

seq is monotonic for the allocator's lifetime, so ids sort in creation order.
The uuid suffix keeps ids from different allocators (or restarts) apart.
*/
type Allocator struct {
	prefix string
	seq    atomic.Uint64
}

// NewAllocator creates an Allocator. An empty prefix means DefaultPrefix.
func NewAllocator(prefix string) *Allocator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Allocator{prefix: prefix}
}

// Allocate returns a fresh temp identifier.
func (a *Allocator) Allocate() string {
	n := a.seq.Add(1)
	return a.prefix + strconv.FormatUint(n, 10) + "-" + uuid.NewString()
}

// IsTemp reports whether id came from this allocator's namespace.
func (a *Allocator) IsTemp(id string) bool {
	return strings.HasPrefix(id, a.prefix)
}

// Prefix returns the namespace prefix.
func (a *Allocator) Prefix() string {
	return a.prefix
}
