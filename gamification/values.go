package gamification

import (
	"fmt"
	"time"

	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/types"
)

// Progress is the value at ProgressKey.
type Progress struct {
	XP           int64
	Level        int
	Achievements []string
}

func (Progress) Kind() types.Kind { return types.KindProgress }

func (p Progress) Clone() types.Value {
	p.Achievements = append([]string(nil), p.Achievements...)
	return p
}

// ProgressDelta describes a progress change. A nil Level keeps the current one.
type ProgressDelta struct {
	XP           int64
	Level        *int
	Achievements []string
}

// Level is a helper to set ProgressDelta.Level inline.
func Level(n int) *int { return &n }

func (p Progress) apply(d ProgressDelta) Progress {
	next := Progress{
		XP:           p.XP + d.XP,
		Level:        p.Level,
		Achievements: make([]string, 0, len(p.Achievements)+len(d.Achievements)),
	}
	if d.Level != nil {
		next.Level = *d.Level
	}
	next.Achievements = append(next.Achievements, p.Achievements...)
	next.Achievements = append(next.Achievements, d.Achievements...)
	return next
}

// Achievement is an unlocked achievement shown in the user's list.
type Achievement struct {
	ID          string
	Name        string
	UnlockedAt  time.Time
	Speculative bool
}

func (a Achievement) RecordID() string    { return a.ID }
func (a Achievement) IsSpeculative() bool { return a.Speculative }

// AchievementList is the value at AchievementsKey, most recent first.
type AchievementList struct {
	Achievements []Achievement
}

func (AchievementList) Kind() types.Kind { return types.KindAchievementList }

func (l AchievementList) Clone() types.Value {
	l.Achievements = append([]Achievement(nil), l.Achievements...)
	return l
}

// Replace implements types.Collection.
func (l AchievementList) Replace(id string, rec types.Record) (types.Collection, bool, error) {
	a, ok := rec.(Achievement)
	if !ok {
		return nil, false, fmt.Errorf("%w: achievement list cannot hold %T", types.ErrRecordType, rec)
	}
	a.Speculative = false

	items, found := tempid.ReplaceRecord(l.Achievements, id, a)
	return AchievementList{Achievements: items}, found, nil
}

// Remove implements types.Collection.
func (l AchievementList) Remove(id string) (types.Collection, bool) {
	items, _, found := tempid.RemoveRecord(l.Achievements, id)
	return AchievementList{Achievements: items}, found
}
