package types

import (
	"errors"
	"fmt"
)

// Kind tags the variant stored at a key.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindLikeCounter
	KindPostFeed
	KindCommentList
	KindProgress
	KindAchievementList
	KindWallet
)

func (k Kind) String() string {
	switch k {
	case KindLikeCounter:
		return "like-counter"
	case KindPostFeed:
		return "post-feed"
	case KindCommentList:
		return "comment-list"
	case KindProgress:
		return "progress"
	case KindAchievementList:
		return "achievement-list"
	case KindWallet:
		return "wallet"
	default:
		return "unknown"
	}
}

/*
Value is a cached, key-specific structured value.

Values held by the store are shared with readers and MUST be treated as read-only.
Updaters build a new value instead of editing the old one.
Clone returns a deep copy; snapshots rely on it.
*/
type Value interface {
	Kind() Kind
	Clone() Value
}

// Updater computes the next value from the current one. old is nil when the key has no value.
type Updater func(old Value) (Value, error)

var (
	// ErrSkipWrite is returned by an updater that decided nothing changes.
	// The store treats it as success and does not write or notify.
	ErrSkipWrite = errors.New("skip write")

	// ErrKindMismatch is returned when a key holds a value of an unexpected kind.
	ErrKindMismatch = errors.New("value kind mismatch")

	// ErrRecordType is returned when a record of the wrong type is reconciled into a collection.
	ErrRecordType = errors.New("unexpected record type")
)

// KindMismatchError carries the details of ErrKindMismatch.
type KindMismatchError struct {
	Want Kind
	Got  Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("value kind mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *KindMismatchError) Unwrap() error { return ErrKindMismatch }

// As returns v as T. ok is false when v is nil or a different variant.
func As[T Value](v Value) (T, bool) {
	t, ok := v.(T)
	return t, ok
}

/*
Typed lifts a typed update function into an Updater.

BEHAVIOR:
---------
- old == nil   → fn(zero T, false)
- old is a T   → fn(old, true)
- anything else → *KindMismatchError, nothing is written
*/
func Typed[T Value](fn func(old T, exists bool) (T, error)) Updater {
	return func(old Value) (Value, error) {
		var zero T
		if old == nil {
			return fn(zero, false)
		}
		t, ok := old.(T)
		if !ok {
			return nil, &KindMismatchError{Want: zero.Kind(), Got: old.Kind()}
		}
		return fn(t, true)
	}
}

// Record is an element of a collection value that may still be speculative.
type Record interface {
	RecordID() string
	IsSpeculative() bool
}

/*
Collection is a value holding records that can be reconciled by id.

Replace swaps the record with the given id for rec (speculative marker cleared).
Remove drops it. Both return a NEW collection and false when the id is absent.
*/
type Collection interface {
	Value
	Replace(id string, rec Record) (Collection, bool, error)
	Remove(id string) (Collection, bool)
}

// Clone deep-copies v and tolerates nil.
func Clone(v Value) Value {
	if v == nil {
		return nil
	}
	return v.Clone()
}
