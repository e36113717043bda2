package optimistic_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	optimistic "github.com/krisalay/optimistic-cache"
	"github.com/krisalay/optimistic-cache/metrics"
	"github.com/krisalay/optimistic-cache/notify"
	"github.com/krisalay/optimistic-cache/types"
)

//
// ================= TEST VALUES & FETCHER =================
//

type tally struct {
	N     int
	Notes []string
}

func (tally) Kind() types.Kind { return types.KindLikeCounter }

func (t tally) Clone() types.Value {
	t.Notes = append([]string(nil), t.Notes...)
	return t
}

type other struct{}

func (other) Kind() types.Kind     { return types.KindWallet }
func (o other) Clone() types.Value { return o }

func set(n int) types.Updater {
	return func(types.Value) (types.Value, error) { return tally{N: n}, nil }
}

func incr(d int) types.Updater {
	return types.Typed(func(old tally, _ bool) (tally, error) {
		old.N += d
		return old, nil
	})
}

// testFetcher serves confirmed values. Fetches block on gate if it is set.
type testFetcher struct {
	mu    sync.Mutex
	data  map[string]types.Value
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func newTestFetcher() *testFetcher {
	return &testFetcher{data: make(map[string]types.Value)}
}

func (f *testFetcher) put(k types.Key, v types.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[k.String()] = v
}

func (f *testFetcher) Fetch(ctx context.Context, k types.Key) (types.Value, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.data[k.String()], nil
}

func mustGet(t *testing.T, s *optimistic.ShardedStore, k types.Key) tally {
	t.Helper()
	v, ok := s.Get(k)
	if !ok {
		t.Fatalf("expected a value at %s", k)
	}
	return v.(tally)
}

//
// ================= BASIC OPERATIONS =================
//

func TestSetAndGet(t *testing.T) {
	s := optimistic.NewStore()
	k := types.NewKey("post", "p1", "likes")

	if err := s.Set(k, set(4)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got := mustGet(t, s, k); got.N != 4 {
		t.Fatalf("expected 4, got %d", got.N)
	}

	if _, ok := s.Get(types.NewKey("post", "p2", "likes")); ok {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestKeySegmentTypesAreDistinct(t *testing.T) {
	s := optimistic.NewStore()

	_ = s.Set(types.NewKey("post", 7, "likes"), set(1))
	if got := mustGet(t, s, types.NewKey("post", 7, "likes")); got.N != 1 {
		t.Fatalf("expected 1, got %d", got.N)
	}
	if _, ok := s.Get(types.NewKey("post", "7", "likes")); ok {
		t.Fatalf("string and int segments must not collide")
	}
}

func TestUpdaterErrorLeavesEntryUnchanged(t *testing.T) {
	s := optimistic.NewStore()
	k := types.NewKey("wallet", "u1")
	_ = s.Set(k, set(10))

	boom := errors.New("boom")
	err := s.Set(k, func(types.Value) (types.Value, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if got := mustGet(t, s, k); got.N != 10 {
		t.Fatalf("expected 10, got %d", got.N)
	}
}

func TestSkipWriteIsNotAnError(t *testing.T) {
	s := optimistic.NewStore()
	k := types.NewKey("wallet", "u1")

	var events int
	s.Subscribe(func(notify.Event) { events++ })

	err := s.Set(k, func(types.Value) (types.Value, error) { return nil, types.ErrSkipWrite })
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if s.Len() != 0 || events != 0 {
		t.Fatalf("skip must not write: len=%d events=%d", s.Len(), events)
	}
}

func TestTypedUpdaterRejectsWrongKind(t *testing.T) {
	s := optimistic.NewStore()
	k := types.NewKey("post", "p1", "likes")
	_ = s.Set(k, func(types.Value) (types.Value, error) { return other{}, nil })

	err := s.Set(k, incr(1))
	var mismatch *types.KindMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected kind mismatch, got %v", err)
	}
	if mismatch.Got != types.KindWallet {
		t.Fatalf("expected wallet kind, got %s", mismatch.Got)
	}
}

func TestRemove(t *testing.T) {
	s := optimistic.NewStore()
	k := types.NewKey("post", "p1", "likes")
	_ = s.Set(k, set(1))

	var causes []notify.Cause
	s.SubscribeKey(k, func(ev notify.Event) { causes = append(causes, ev.Cause) })

	s.Remove(k)
	s.Remove(k)

	if _, ok := s.Get(k); ok {
		t.Fatalf("expected nil after remove")
	}
	if diff := cmp.Diff([]notify.Cause{notify.CauseRemove}, causes); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

//
// ================= SPECULATION & FETCH RACES =================
//

func TestSpeculateReturnsPrevious(t *testing.T) {
	s := optimistic.NewStore()
	k := types.NewKey("post", "p1", "likes")
	_ = s.Set(k, set(4))

	prev, err := s.Speculate(k, incr(1))
	if err != nil {
		t.Fatalf("speculate failed: %v", err)
	}
	if prev.(tally).N != 4 {
		t.Fatalf("expected previous 4, got %v", prev)
	}
	if got := mustGet(t, s, k); got.N != 5 {
		t.Fatalf("expected 5, got %d", got.N)
	}

	prev, err = s.Speculate(types.NewKey("post", "p9", "likes"), incr(1))
	if err != nil || prev != nil {
		t.Fatalf("expected nil previous for absent key, got %v, %v", prev, err)
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	ctx := context.Background()
	stats := &metrics.Basic{}
	s := optimistic.NewStore(optimistic.WithMetrics(stats))
	k := types.NewKey("post", "p1", "likes")
	_ = s.Set(k, set(4))

	tok := s.BeginFetch(k)
	if ent, _ := s.Entry(k); ent.Status != types.StatusFetching {
		t.Fatalf("expected fetching, got %s", ent.Status)
	}

	if _, err := s.Speculate(k, incr(1)); err != nil {
		t.Fatalf("speculate failed: %v", err)
	}
	if ent, _ := s.Entry(k); ent.InFlight != 0 || ent.Status != types.StatusIdle {
		t.Fatalf("speculation must cancel the fetch, got %+v", ent)
	}

	if s.CompleteFetch(ctx, tok, tally{N: 4}, nil) {
		t.Fatalf("stale fetch must not apply")
	}
	if got := mustGet(t, s, k); got.N != 5 {
		t.Fatalf("expected speculative 5, got %d", got.N)
	}
	if n := stats.StaleFetches.Load(); n != 1 {
		t.Fatalf("expected 1 stale fetch, got %d", n)
	}
}

func TestNewerFetchSupersedesOlder(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	k := types.NewKey("post", "feed")

	first := s.BeginFetch(k)
	second := s.BeginFetch(k)

	if s.CompleteFetch(ctx, first, tally{N: 1}, nil) {
		t.Fatalf("older fetch must be dropped")
	}
	if !s.CompleteFetch(ctx, second, tally{N: 2}, nil) {
		t.Fatalf("current fetch must apply")
	}
	if got := mustGet(t, s, k); got.N != 2 {
		t.Fatalf("expected 2, got %d", got.N)
	}
	if s.CompleteFetch(ctx, second, tally{N: 3}, nil) {
		t.Fatalf("a fetch completes once")
	}
}

func TestFetchErrorRecordsStatus(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	k := types.NewKey("wallet", "u1")
	_ = s.Set(k, set(100))

	tok := s.BeginFetch(k)
	boom := errors.New("timeout")
	if !s.CompleteFetch(ctx, tok, nil, boom) {
		t.Fatalf("current fetch must apply")
	}

	ent, _ := s.Entry(k)
	if ent.Status != types.StatusError || !errors.Is(ent.Err, boom) {
		t.Fatalf("expected error status, got %+v", ent)
	}
	if got := mustGet(t, s, k); got.N != 100 {
		t.Fatalf("failed fetch must keep the value, got %d", got.N)
	}

	_ = s.Set(k, incr(1))
	if ent, _ := s.Entry(k); ent.Status != types.StatusIdle || ent.Err != nil {
		t.Fatalf("write must clear the error, got %+v", ent)
	}
}

func TestCancelInFlight(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	k := types.NewKey("post", "p1", "comments")

	if s.CancelInFlight(k) {
		t.Fatalf("nothing was in flight")
	}
	tok := s.BeginFetch(k)
	if !s.CancelInFlight(k) {
		t.Fatalf("expected cancellation")
	}
	if s.CompleteFetch(ctx, tok, tally{}, nil) {
		t.Fatalf("cancelled fetch must not apply")
	}
}

func TestRemoveObsoletesFetch(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	k := types.NewKey("post", "p1", "likes")

	tok := s.BeginFetch(k)
	s.Remove(k)
	if s.CompleteFetch(ctx, tok, tally{N: 1}, nil) {
		t.Fatalf("fetch for a removed entry must not apply")
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

//
// ================= FETCHER =================
//

func TestFetchWithoutFetcher(t *testing.T) {
	s := optimistic.NewStore()
	_, err := s.Fetch(context.Background(), types.NewKey("x"))
	if !errors.Is(err, optimistic.ErrNoFetcher) {
		t.Fatalf("expected ErrNoFetcher, got %v", err)
	}
}

func TestFetchSingleflight(t *testing.T) {
	ctx := context.Background()
	f := newTestFetcher()
	f.gate = make(chan struct{})
	k := types.NewKey("post", "p1", "likes")
	f.put(k, tally{N: 9})
	s := optimistic.NewStore(optimistic.WithFetcher(f))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Fetch(ctx, k)
			if err != nil || v.(tally).N != 9 {
				t.Errorf("unexpected fetch result %v, %v", v, err)
			}
		}()
	}

	// let the goroutines pile up on the shared call
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if n := f.calls.Load(); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}
}

func TestFetchCancelledBySpeculation(t *testing.T) {
	ctx := context.Background()
	f := newTestFetcher()
	f.gate = make(chan struct{})
	k := types.NewKey("post", "p1", "likes")
	f.put(k, tally{N: 4})
	s := optimistic.NewStore(optimistic.WithFetcher(f))

	done := make(chan types.Value)
	go func() {
		v, _ := s.Fetch(ctx, k)
		done <- v
	}()

	// wait for the fetch to begin
	for {
		if ent, ok := s.Entry(k); ok && ent.Status == types.StatusFetching {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := s.Speculate(k, incr(1)); err != nil {
		t.Fatalf("speculate failed: %v", err)
	}
	close(f.gate)

	v := <-done
	if v.(tally).N != 1 {
		t.Fatalf("fetch must return the speculative value, got %v", v)
	}
}

func TestEnsureFresh(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	f := newTestFetcher()
	k := types.NewKey("gamification", "u1")
	f.put(k, tally{N: 1})
	s := optimistic.NewStore(
		optimistic.WithFetcher(f),
		optimistic.WithStaleAfter(time.Minute),
		optimistic.WithClock(clock),
	)

	if _, err := s.EnsureFresh(ctx, k); err != nil {
		t.Fatalf("ensure fresh failed: %v", err)
	}
	if _, err := s.EnsureFresh(ctx, k); err != nil {
		t.Fatalf("ensure fresh failed: %v", err)
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("fresh value must not refetch, got %d fetches", n)
	}

	now = now.Add(2 * time.Minute)
	if ent, _ := s.Entry(k); ent.Status != types.StatusStale {
		t.Fatalf("expected stale, got %s", ent.Status)
	}
	f.put(k, tally{N: 2})
	v, err := s.EnsureFresh(ctx, k)
	if err != nil || v.(tally).N != 2 {
		t.Fatalf("expected refetched 2, got %v, %v", v, err)
	}
}

func TestInvalidate(t *testing.T) {
	s := optimistic.NewStore()
	for _, id := range []string{"p1", "p2"} {
		_ = s.Set(types.NewKey("post", id, "likes"), set(1))
	}
	_ = s.Set(types.NewKey("wallet", "u1"), set(1))
	s.BeginFetch(types.NewKey("post", "p3", "likes"))

	if !s.Invalidate(types.NewKey("post", "p1", "likes")) {
		t.Fatalf("expected invalidation")
	}
	if s.Invalidate(types.NewKey("post", "p1", "likes")) {
		t.Fatalf("already stale")
	}
	if s.Invalidate(types.NewKey("missing")) {
		t.Fatalf("missing key cannot be invalidated")
	}

	if n := s.InvalidatePrefix(types.NewKey("post")); n != 1 {
		t.Fatalf("expected 1 more stale key, got %d", n)
	}
	if ent, _ := s.Entry(types.NewKey("wallet", "u1")); ent.Status != types.StatusIdle {
		t.Fatalf("other scopes stay idle, got %s", ent.Status)
	}
	if ent, _ := s.Entry(types.NewKey("post", "p3", "likes")); ent.Status != types.StatusFetching {
		t.Fatalf("fetching entries are left alone, got %s", ent.Status)
	}
}

//
// ================= NOTIFICATIONS =================
//

func TestSubscribersSeeEveryWrite(t *testing.T) {
	ctx := context.Background()
	s := optimistic.NewStore()
	k := types.NewKey("post", "p1", "likes")

	var got []notify.Cause
	unsubscribe := s.SubscribeKey(k, func(ev notify.Event) {
		got = append(got, ev.Cause)
		// reading from inside a subscriber must not deadlock
		_, _ = s.Get(ev.Key)
	})

	_ = s.Set(k, set(1))
	tok := s.BeginFetch(k)
	_ = s.CompleteFetch(ctx, tok, tally{N: 2}, nil)
	_, _ = s.Speculate(k, incr(1))
	s.Invalidate(k)
	_ = s.Set(types.NewKey("post", "p2", "likes"), set(1))

	unsubscribe()
	_ = s.Set(k, set(0))

	want := []notify.Cause{
		notify.CauseWrite,
		notify.CauseFetchStart,
		notify.CauseFetchDone,
		notify.CauseSpeculate,
		notify.CauseInvalidate,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

//
// ================= CONCURRENCY TEST =================
//

func TestConcurrentSpeculation(t *testing.T) {
	s := optimistic.NewStore(optimistic.WithShards(4))

	const writers, perWriter, keys = 50, 200, 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				k := types.NewKey("post", fmt.Sprintf("p%d", (w+i)%keys), "likes")
				if _, err := s.Speculate(k, incr(1)); err != nil {
					t.Errorf("speculate failed: %v", err)
					return
				}
				_, _ = s.Get(k)
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for i := 0; i < keys; i++ {
		total += mustGet(t, s, types.NewKey("post", fmt.Sprintf("p%d", i), "likes")).N
	}
	if total != writers*perWriter {
		t.Fatalf("expected %d, got %d", writers*perWriter, total)
	}
}
