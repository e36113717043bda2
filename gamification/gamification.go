// Package gamification holds the optimistic mutations behind XP, levels and achievements.
package gamification

import (
	"context"
	"time"

	"github.com/krisalay/optimistic-cache/snapshot"
	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/types"
)

// ProgressKey addresses a user's progress.
func ProgressKey(userID string) types.Key {
	return types.NewKey("gamification", userID)
}

// AchievementsKey addresses a user's achievement list.
func AchievementsKey(userID string) types.Key {
	return types.NewKey("user", userID, "achievements")
}

// ProgressResult holds the handle that undoes a progress mutation.
type ProgressResult struct {
	Snapshot *snapshot.Handle
}

// UnlockResult holds the handle that undoes an unlock and the achievement as written.
type UnlockResult struct {
	Snapshot    *snapshot.Handle
	Achievement Achievement
}

// Mutator applies gamification actions to the cache.
type Mutator struct {
	snapshots *snapshot.Manager
	ids       *tempid.Allocator
	clock     func() time.Time
}

// NewMutator creates a Mutator. ids may be nil.
func NewMutator(snapshots *snapshot.Manager, ids *tempid.Allocator) *Mutator {
	if ids == nil {
		ids = tempid.NewAllocator("")
	}
	return &Mutator{snapshots: snapshots, ids: ids, clock: time.Now}
}

/*
ApplyProgress merges d into the user's progress.

MERGE RULES:
------------
- XP           : added
- Level        : replaced when set
- Achievements : appended, duplicates kept (the server dedups)
*/
func (m *Mutator) ApplyProgress(_ context.Context, userID string, d ProgressDelta) (ProgressResult, error) {
	h, err := m.snapshots.Apply(ProgressKey(userID), types.Typed(func(old Progress, _ bool) (Progress, error) {
		return old.apply(d), nil
	}))
	if err != nil {
		return ProgressResult{}, err
	}
	return ProgressResult{Snapshot: h}, nil
}

// ApplyAchievementUnlock prepends a to the user's achievements, marked speculative.
// An achievement without an id gets a temp id.
func (m *Mutator) ApplyAchievementUnlock(_ context.Context, userID string, a Achievement) (UnlockResult, error) {
	if a.ID == "" {
		a.ID = m.ids.Allocate()
	}
	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = m.clock()
	}
	a.Speculative = true

	h, err := m.snapshots.Apply(AchievementsKey(userID), types.Typed(func(old AchievementList, _ bool) (AchievementList, error) {
		items := make([]Achievement, 0, len(old.Achievements)+1)
		items = append(items, a)
		items = append(items, old.Achievements...)
		return AchievementList{Achievements: items}, nil
	}))
	if err != nil {
		return UnlockResult{}, err
	}
	return UnlockResult{Snapshot: h, Achievement: a}, nil
}

// Getter is the read side of the store.
type Getter interface {
	Get(key types.Key) (types.Value, bool)
}

// CachedProgress returns the cached progress of a user.
func CachedProgress(s Getter, userID string) (Progress, bool) {
	v, _ := s.Get(ProgressKey(userID))
	return types.As[Progress](v)
}

// CachedAchievements returns the cached achievement list of a user.
func CachedAchievements(s Getter, userID string) (AchievementList, bool) {
	v, _ := s.Get(AchievementsKey(userID))
	return types.As[AchievementList](v)
}
