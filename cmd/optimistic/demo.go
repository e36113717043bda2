package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	optimistic "github.com/krisalay/optimistic-cache"
	"github.com/krisalay/optimistic-cache/metrics"
	"github.com/krisalay/optimistic-cache/notify"
	"github.com/krisalay/optimistic-cache/settle"
	"github.com/krisalay/optimistic-cache/snapshot"
	"github.com/krisalay/optimistic-cache/social"
	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/wallet"
)

func section(title string) {
	fmt.Printf("\n==================== %s ====================\n", title)
}

func runDemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := cfg.Logger()

	sink, err := cfg.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return err
	}

	section("SYSTEM BOOT")
	fmt.Println("SHARDS          :", cfg.Shards)
	fmt.Println("TEMP PREFIX     :", cfg.TempPrefix)
	fmt.Println("METRICS         :", cfg.Metrics)

	server := newFakeServer()
	server.put(social.LikesKey("p1"), social.LikeCounter{Likes: 4})
	server.put(wallet.Key("u1"), wallet.State{Balance: 100})

	opts := append(cfg.StoreOptions(logger, sink), optimistic.WithFetcher(server))
	store := optimistic.NewStore(opts...)
	snaps := snapshot.NewManager(store, snapshot.WithMetrics(sink), snapshot.WithLogger(logger))
	ids := tempid.NewAllocator(cfg.TempPrefix)
	rec := tempid.NewReconciler(store, tempid.WithMetrics(sink), tempid.WithLogger(logger))
	settler := settle.NewSettler(snaps, rec, logger)

	unsubscribe := store.Subscribe(func(ev notify.Event) {
		if ev.Entry == nil {
			fmt.Printf("UI     → %-10s %s\n", ev.Cause, ev.Key)
			return
		}
		fmt.Printf("UI     → %-10s %s = %+v\n", ev.Cause, ev.Key, ev.Entry.Value)
	})
	defer unsubscribe()

	if err := demoLikeRollback(ctx, store, settle.NewSyncPolicy(settler), social.NewMutator(snaps, ids), server); err != nil {
		return err
	}
	if err := demoWalletReconcile(ctx, store, settler, wallet.NewMutator(snaps, ids), server); err != nil {
		return err
	}
	if err := demoStaleFetch(ctx, store, social.NewMutator(snaps, ids)); err != nil {
		return err
	}

	section("METRICS")
	if b, ok := sink.(*metrics.Basic); ok {
		fmt.Printf("%+v\n", b.Stats())
	} else {
		fmt.Println("metrics exported through", cfg.Metrics)
	}
	return nil
}

// demoLikeRollback: 4 likes, like, server fails, back to 4.
func demoLikeRollback(ctx context.Context, store *optimistic.ShardedStore, policy settle.Policy, mut *social.Mutator, server *fakeServer) error {
	section("1) LIKE, SERVER FAILS")

	if _, err := store.Fetch(ctx, social.LikesKey("p1")); err != nil {
		return err
	}

	res, err := mut.ApplyLikeToggle(ctx, "p1", true)
	if err != nil {
		return err
	}
	got, _ := social.Likes(store, "p1")
	fmt.Println("CACHE  → likes after tap =", got.Likes)

	server.failNext.Store(true)
	outcome := settle.Succeeded(res.Snapshots...)
	if err := server.like("p1", true); err != nil {
		fmt.Println("SERVER → like:", err)
		outcome = settle.Failed(err, res.Snapshots...)
	}
	if err := policy.Settle(ctx, outcome); err != nil {
		return err
	}

	got, _ = social.Likes(store, "p1")
	fmt.Println("CACHE  → likes after rollback =", got.Likes)
	return policy.Close()
}

// demoWalletReconcile: balance 100, expense 25, server confirms, temp id swapped.
func demoWalletReconcile(ctx context.Context, store *optimistic.ShardedStore, settler *settle.Settler, mut *wallet.Mutator, server *fakeServer) error {
	section("2) EXPENSE, SERVER CONFIRMS")

	if _, err := store.Fetch(ctx, wallet.Key("u1")); err != nil {
		return err
	}

	policy := settle.NewAsyncPolicy(settler, cfg.SettleBuffer, settle.WithErrorHandler(func(o settle.Outcome, err error) {
		fmt.Println("SETTLE → failed:", err)
	}))

	res, err := mut.ApplyTransaction(ctx, "u1", wallet.Draft{Amount: 25, Type: wallet.Expense, Description: "coffee"})
	if err != nil {
		return err
	}
	st, _ := wallet.Cached(store, "u1")
	fmt.Println("CACHE  → balance =", st.Balance, "tx =", st.Transactions[0].ID)

	confirmed, err := server.transact("u1", res.Transaction)
	outcome := settle.Succeeded(res.Snapshot).Reconciling(wallet.Key("u1"), res.Transaction.ID, confirmed)
	if err != nil {
		outcome = settle.Failed(err, res.Snapshot)
	}
	if err := policy.Settle(ctx, outcome); err != nil {
		return err
	}
	if err := policy.Close(); err != nil {
		return err
	}

	st, _ = wallet.Cached(store, "u1")
	fmt.Println("CACHE  → balance =", st.Balance, "tx =", st.Transactions[0].ID)
	return nil
}

// demoStaleFetch: a fetch that started before a like must not overwrite it.
func demoStaleFetch(ctx context.Context, store *optimistic.ShardedStore, mut *social.Mutator) error {
	section("3) STALE FETCH RACE")

	key := social.LikesKey("p2")
	tok := store.BeginFetch(key)
	fmt.Println("CLIENT → fetch started, generation", tok.Gen)

	if _, err := mut.ApplyLikeToggle(ctx, "p2", true); err != nil {
		return err
	}

	applied := store.CompleteFetch(ctx, tok, social.LikeCounter{}, nil)
	fmt.Println("CLIENT → late response applied =", applied)

	got, _ := social.Likes(store, "p2")
	fmt.Println("CACHE  → likes =", got.Likes)
	return nil
}
