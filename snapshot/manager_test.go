package snapshot_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	optimistic "github.com/krisalay/optimistic-cache"
	"github.com/krisalay/optimistic-cache/metrics"
	"github.com/krisalay/optimistic-cache/snapshot"
	"github.com/krisalay/optimistic-cache/types"
)

type counter struct {
	N    int
	Tags []string
}

func (counter) Kind() types.Kind { return types.KindLikeCounter }

func (c counter) Clone() types.Value {
	c.Tags = append([]string(nil), c.Tags...)
	return c
}

func set(n int) types.Updater {
	return func(types.Value) (types.Value, error) { return counter{N: n}, nil }
}

func add(d int) types.Updater {
	return types.Typed(func(old counter, _ bool) (counter, error) {
		return counter{N: old.N + d}, nil
	})
}

func value(t *testing.T, s *optimistic.ShardedStore, k types.Key) counter {
	t.Helper()
	v, ok := s.Get(k)
	require.True(t, ok, "expected a value at %s", k)
	return v.(counter)
}

func TestRollbackRestoresSnapshotAfterManyWrites(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	m := snapshot.NewManager(s)
	k := types.NewKey("post", "p1", "likes")

	require.NoError(t, s.Set(k, set(4)))

	h := m.Snapshot(k)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Set(k, add(1)))
	}
	assert.Equal(t, 9, value(t, s, k).N)

	require.NoError(t, m.Rollback(ctx, h))
	assert.Equal(t, 4, value(t, s, k).N)
	assert.True(t, h.Consumed())
	assert.Equal(t, 0, m.Pending(k))
}

func TestDoubleRollbackIsReported(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	m := snapshot.NewManager(s)
	k := types.NewKey("wallet", "u1")

	h, err := m.Apply(k, set(10))
	require.NoError(t, err)

	require.NoError(t, m.Rollback(ctx, h))
	err = m.Rollback(ctx, h)
	require.ErrorIs(t, err, snapshot.ErrHandleConsumed)

	// committing a consumed handle is the same bookkeeping bug
	require.ErrorIs(t, m.Commit(h), snapshot.ErrHandleConsumed)
}

func TestRollbackOfAbsentKeyClearsValue(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	m := snapshot.NewManager(s)
	k := types.NewKey("gamification", "u1")

	h, err := m.Apply(k, set(1))
	require.NoError(t, err)
	assert.Nil(t, h.Value())

	require.NoError(t, m.Rollback(ctx, h))
	_, ok := s.Get(k)
	assert.False(t, ok)
}

func TestApplyFailureWritesNothing(t *testing.T) {
	s := optimistic.NewStore()
	m := snapshot.NewManager(s)
	k := types.NewKey("post", "p1", "likes")
	require.NoError(t, s.Set(k, set(3)))

	boom := errors.New("boom")
	h, err := m.Apply(k, func(types.Value) (types.Value, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Nil(t, h)
	assert.Equal(t, 3, value(t, s, k).N)
	assert.Equal(t, 0, m.Pending(k))
}

func TestSnapshotIsACopy(t *testing.T) {
	s := optimistic.NewStore()
	m := snapshot.NewManager(s)
	k := types.NewKey("post", "p1", "likes")
	require.NoError(t, s.Set(k, func(types.Value) (types.Value, error) {
		return counter{N: 1, Tags: []string{"a"}}, nil
	}))

	h := m.Snapshot(k)
	captured := h.Value().(counter)
	captured.Tags[0] = "mutated"

	assert.Equal(t, "a", h.Value().(counter).Tags[0])
}

func TestRollbackManyAggregatesErrors(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	m := snapshot.NewManager(s)
	k1 := types.NewKey("post", "p1", "likes")
	k2 := types.NewKey("post", "feed")

	h1, err := m.Apply(k1, set(5))
	require.NoError(t, err)
	h2, err := m.Apply(k2, set(7))
	require.NoError(t, err)

	require.NoError(t, m.Rollback(ctx, h1))

	err = m.RollbackMany(ctx, h1, nil, h2)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.ErrorIs(t, err, snapshot.ErrHandleConsumed)
	assert.ErrorIs(t, err, snapshot.ErrNilHandle)

	// h2 was still rolled back
	_, ok := s.Get(k2)
	assert.False(t, ok)
}

func TestForeignHandleRejected(t *testing.T) {
	s := optimistic.NewStore()
	m1 := snapshot.NewManager(s)
	m2 := snapshot.NewManager(s)

	h := m1.Snapshot(types.NewKey("x"))
	require.ErrorIs(t, m2.Rollback(context.Background(), h), snapshot.ErrForeignHandle)
	assert.False(t, h.Consumed())
}

func TestRollbackOfOlderSnapshotSupersedesNewer(t *testing.T) {
	ctx := context.Background()
	basic := &metrics.Basic{}
	s := optimistic.NewStore()
	m := snapshot.NewManager(s, snapshot.WithMetrics(basic))
	k := types.NewKey("post", "p1", "likes")
	require.NoError(t, s.Set(k, set(4)))

	first, err := m.Apply(k, add(1))
	require.NoError(t, err)
	second, err := m.Apply(k, add(1))
	require.NoError(t, err)
	assert.Equal(t, 6, value(t, s, k).N)
	assert.Equal(t, 2, m.Pending(k))

	// last-known-good: the older snapshot wipes the newer speculative write too
	require.NoError(t, m.Rollback(ctx, first))
	assert.Equal(t, 4, value(t, s, k).N)
	assert.Equal(t, int64(1), basic.Rollbacks.Load())
	assert.Equal(t, int64(1), basic.Superseded.Load())

	require.NoError(t, m.Commit(second))
	assert.Equal(t, 0, m.Pending(k))
}
