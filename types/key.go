package types

import (
	"fmt"
	"strconv"
	"strings"
)

/*
Key addresses one cache slot.

A key is an ordered list of scope segments, for example
[post, "p1", likes] or [wallet, "u42"]. Segments are strings or numbers.
Two keys with the same segments in the same order are the same slot.
"1" and 1 are different segments.

Keys are immutable: NewKey copies its input and Segments returns a copy.
The canonical encoding (String) is what the store uses as its map key.
*/
type Key struct {
	segs []any
	enc  string
}

/*
NewKey builds a Key from string and numeric segments.

Any other segment type is a programming error and panics.
*/
func NewKey(segments ...any) Key {
	segs := make([]any, len(segments))
	parts := make([]string, len(segments))

	for i, s := range segments {
		norm, enc := encodeSegment(s)
		segs[i] = norm
		parts[i] = enc
	}

	return Key{segs: segs, enc: strings.Join(parts, "/")}
}

// encodeSegment normalises a segment and returns its tagged encoding.
// Strings are quoted so a "/" inside an id can never merge two segments.
func encodeSegment(s any) (any, string) {
	switch v := s.(type) {
	case string:
		return v, strconv.Quote(v)
	case int:
		return int64(v), "#" + strconv.FormatInt(int64(v), 10)
	case int32:
		return int64(v), "#" + strconv.FormatInt(int64(v), 10)
	case int64:
		return v, "#" + strconv.FormatInt(v, 10)
	case uint:
		return uint64(v), "#" + strconv.FormatUint(uint64(v), 10)
	case uint32:
		return uint64(v), "#" + strconv.FormatUint(uint64(v), 10)
	case uint64:
		return v, "#" + strconv.FormatUint(v, 10)
	case float64:
		return v, "#" + strconv.FormatFloat(v, 'g', -1, 64)
	default:
		panic(fmt.Sprintf("types: unsupported key segment %T", s))
	}
}

// String returns the canonical encoding of the key.
func (k Key) String() string {
	return k.enc
}

// Len returns the number of segments.
func (k Key) Len() int {
	return len(k.segs)
}

// IsZero reports whether the key has no segments.
func (k Key) IsZero() bool {
	return len(k.segs) == 0
}

// Segments returns a copy of the key's segments.
func (k Key) Segments() []any {
	out := make([]any, len(k.segs))
	copy(out, k.segs)
	return out
}

// Equal reports whether both keys address the same slot.
func (k Key) Equal(o Key) bool {
	return k.enc == o.enc
}

// HasPrefix reports whether the first segments of k are exactly prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.segs) > len(k.segs) {
		return false
	}
	if len(prefix.segs) == 0 {
		return true
	}
	if len(prefix.segs) == len(k.segs) {
		return k.enc == prefix.enc
	}
	return strings.HasPrefix(k.enc, prefix.enc+"/")
}
