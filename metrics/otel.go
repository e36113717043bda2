package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/krisalay/optimistic-cache/types"
)

const instrumentationName = "github.com/krisalay/optimistic-cache"

var (
	hitAttrs   = metric.WithAttributes(attribute.String("result", "hit"))
	missAttrs  = metric.WithAttributes(attribute.String("result", "miss"))
	foundAttrs = metric.WithAttributes(attribute.String("result", "found"))
)

// OTel records cache events with OpenTelemetry instruments.
type OTel struct {
	reads        metric.Int64Counter
	speculations metric.Int64Counter
	staleFetches metric.Int64Counter
	rollbacks    metric.Int64Counter
	superseded   metric.Int64Counter
	reconciles   metric.Int64Counter
}

var _ types.Metrics = (*OTel)(nil)

// NewOTel creates the instruments on the meter from mp.
// A nil mp uses the global provider.
func NewOTel(mp metric.MeterProvider) (*OTel, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	o := &OTel{}
	var err error

	if o.reads, err = meter.Int64Counter("cache_reads_total",
		metric.WithDescription("Store reads by result")); err != nil {
		return nil, err
	}
	if o.speculations, err = meter.Int64Counter("cache_speculative_writes_total",
		metric.WithDescription("Speculative writes applied before server confirmation")); err != nil {
		return nil, err
	}
	if o.staleFetches, err = meter.Int64Counter("cache_stale_fetches_discarded_total",
		metric.WithDescription("Fetch results dropped because their key was cancelled or refetched")); err != nil {
		return nil, err
	}
	if o.rollbacks, err = meter.Int64Counter("cache_rollbacks_total",
		metric.WithDescription("Snapshots restored after a failed mutation")); err != nil {
		return nil, err
	}
	if o.superseded, err = meter.Int64Counter("cache_rollback_superseded_total",
		metric.WithDescription("Newer pending mutations overwritten by a rollback")); err != nil {
		return nil, err
	}
	if o.reconciles, err = meter.Int64Counter("cache_reconciles_total",
		metric.WithDescription("Temp record reconciliations by result")); err != nil {
		return nil, err
	}
	return o, nil
}

// The types.Metrics interface carries no context; events are recorded against Background.

func (o *OTel) Hit()        { o.reads.Add(context.Background(), 1, hitAttrs) }
func (o *OTel) Miss()       { o.reads.Add(context.Background(), 1, missAttrs) }
func (o *OTel) Speculate()  { o.speculations.Add(context.Background(), 1) }
func (o *OTel) StaleFetch() { o.staleFetches.Add(context.Background(), 1) }

// Rollback implements types.Metrics.
func (o *OTel) Rollback(superseded int) {
	ctx := context.Background()
	o.rollbacks.Add(ctx, 1)
	if superseded > 0 {
		o.superseded.Add(ctx, int64(superseded))
	}
}

// Reconcile implements types.Metrics.
func (o *OTel) Reconcile(found bool) {
	if found {
		o.reconciles.Add(context.Background(), 1, foundAttrs)
	} else {
		o.reconciles.Add(context.Background(), 1, missAttrs)
	}
}
