package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krisalay/optimistic-cache/types"
)

const namespace = "optimistic_cache"

// Prometheus exports cache events as Prometheus counters.
type Prometheus struct {
	reads        *prometheus.CounterVec
	speculations prometheus.Counter
	staleFetches prometheus.Counter
	rollbacks    prometheus.Counter
	superseded   prometheus.Counter
	reconciles   *prometheus.CounterVec
}

var _ types.Metrics = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Store reads by result.",
		}, []string{"result"}),
		speculations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speculative_writes_total",
			Help:      "Speculative writes applied before server confirmation.",
		}),
		staleFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_fetches_discarded_total",
			Help:      "Fetch results dropped because their key was cancelled or refetched.",
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Snapshots restored after a failed mutation.",
		}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollback_superseded_total",
			Help:      "Newer pending mutations overwritten by a rollback of an older snapshot.",
		}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciles_total",
			Help:      "Temp record reconciliations by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			p.reads, p.speculations, p.staleFetches, p.rollbacks, p.superseded, p.reconciles,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func (p *Prometheus) Hit()        { p.reads.WithLabelValues("hit").Inc() }
func (p *Prometheus) Miss()       { p.reads.WithLabelValues("miss").Inc() }
func (p *Prometheus) Speculate()  { p.speculations.Inc() }
func (p *Prometheus) StaleFetch() { p.staleFetches.Inc() }

// Rollback implements types.Metrics.
func (p *Prometheus) Rollback(superseded int) {
	p.rollbacks.Inc()
	p.superseded.Add(float64(superseded))
}

// Reconcile implements types.Metrics.
func (p *Prometheus) Reconcile(found bool) {
	if found {
		p.reconciles.WithLabelValues("found").Inc()
	} else {
		p.reconciles.WithLabelValues("miss").Inc()
	}
}
