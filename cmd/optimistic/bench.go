package main

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	optimistic "github.com/krisalay/optimistic-cache"
	"github.com/krisalay/optimistic-cache/metrics"
	"github.com/krisalay/optimistic-cache/settle"
	"github.com/krisalay/optimistic-cache/snapshot"
	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/wallet"
)

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	goroutines, err := flags.GetInt("goroutines")
	if err != nil {
		return err
	}
	ops, err := flags.GetInt("ops")
	if err != nil {
		return err
	}
	users, err := flags.GetInt("users")
	if err != nil {
		return err
	}
	failRate, err := flags.GetFloat64("fail-rate")
	if err != nil {
		return err
	}
	if users < 1 {
		users = 1
	}

	section("MUTATION BENCHMARK")
	fmt.Println("Shards        :", cfg.Shards)
	fmt.Println("Goroutines    :", goroutines)
	fmt.Println("Ops/Goroutine :", ops)
	fmt.Println("Wallets       :", users)
	fmt.Println("Fail rate     :", failRate)

	reg := prometheus.NewRegistry()
	sink, err := cfg.NewMetrics(reg)
	if err != nil {
		return err
	}
	logger := cfg.Logger()

	store := optimistic.NewStore(cfg.StoreOptions(logger, sink)...)
	snaps := snapshot.NewManager(store, snapshot.WithMetrics(sink), snapshot.WithLogger(logger))
	ids := tempid.NewAllocator(cfg.TempPrefix)
	rec := tempid.NewReconciler(store, tempid.WithMetrics(sink), tempid.WithLogger(logger))
	policy := settle.NewAsyncPolicy(settle.NewSettler(snaps, rec, logger), cfg.SettleBuffer)
	mut := wallet.NewMutator(snaps, ids)

	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				userID := fmt.Sprintf("u%d", (g*ops+i)%users)
				res, err := mut.ApplyTransaction(ctx, userID, wallet.Draft{Amount: 1, Type: wallet.Income})
				if err != nil {
					continue
				}

				var o settle.Outcome
				if rand.Float64() < failRate {
					o = settle.Failed(errUnavailable, res.Snapshot)
				} else {
					server := res.Transaction
					server.ID = fmt.Sprintf("tx-%d-%d", g, i)
					o = settle.Succeeded(res.Snapshot).Reconciling(wallet.Key(userID), res.Transaction.ID, server)
				}
				_ = policy.Settle(ctx, o)
			}
		}(g)
	}
	wg.Wait()
	applied := time.Since(start)

	if err := policy.Close(); err != nil {
		return err
	}
	settled := time.Since(start)

	total := goroutines * ops
	section("RESULTS")
	fmt.Println("Total mutations :", total)
	fmt.Println("Applied in      :", applied)
	fmt.Println("Settled in      :", settled)
	fmt.Printf("Throughput      : %.0f mutations/sec\n", float64(total)/applied.Seconds())
	fmt.Println("Cached wallets  :", store.Len())

	section("METRICS")
	switch m := sink.(type) {
	case *metrics.Basic:
		fmt.Printf("%+v\n", m.Stats())
	case *metrics.Prometheus:
		families, err := reg.Gather()
		if err != nil {
			return err
		}
		for _, mf := range families {
			for _, metric := range mf.GetMetric() {
				fmt.Printf("%-50s %v %.0f\n", mf.GetName(), metric.GetLabel(), metric.GetCounter().GetValue())
			}
		}
	default:
		fmt.Println("metrics exported through", cfg.Metrics)
	}
	return nil
}
