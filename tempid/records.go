package tempid

import "github.com/krisalay/optimistic-cache/types"

/*
ReplaceRecord returns a copy of items where the record with tempID is replaced
in place by rec.

If rec's id is already present (the collection was refetched and already holds
the server record), the temp record is dropped instead, so the server record
never appears twice. ok is false when tempID is not in items.
*/
func ReplaceRecord[T types.Record](items []T, tempID string, rec T) ([]T, bool) {
	idx, dup := -1, false
	for i, it := range items {
		switch it.RecordID() {
		case tempID:
			idx = i
		case rec.RecordID():
			dup = true
		}
	}
	if idx < 0 {
		return items, false
	}

	out := make([]T, 0, len(items))
	for i, it := range items {
		if i != idx {
			out = append(out, it)
			continue
		}
		if !dup {
			out = append(out, rec)
		}
	}
	return out, true
}

// RemoveRecord returns a copy of items without the record with id, and that record.
func RemoveRecord[T types.Record](items []T, id string) ([]T, T, bool) {
	var removed T
	out := make([]T, 0, len(items))
	found := false
	for _, it := range items {
		if !found && it.RecordID() == id {
			removed, found = it, true
			continue
		}
		out = append(out, it)
	}
	if !found {
		return items, removed, false
	}
	return out, removed, true
}
