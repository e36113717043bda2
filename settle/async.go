package settle

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Settle after Close.
var ErrClosed = errors.New("settle policy closed")

// job is one outcome waiting for the worker.
type job struct {
	ctx context.Context
	o   Outcome
}

/*
AsyncPolicy queues outcomes and settles them on one background worker.

Outcomes are applied in the order they were handed over, each as its own
later event, the way server responses arrive. Unlike a write-back cache the
queue never drops: a full queue blocks Settle until there is room or ctx is
done, because a lost outcome would leave a speculative value in place forever.
*/
type AsyncPolicy struct {
	settler *Settler

	// onError receives outcomes whose settlement failed. Optional.
	onError func(Outcome, error)

	ch chan job

	// mu guards closed against sends racing Close.
	mu     sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

var _ Policy = (*AsyncPolicy)(nil)

// AsyncOption configures an AsyncPolicy.
type AsyncOption func(*AsyncPolicy)

// WithErrorHandler sets the callback for failed settlements.
func WithErrorHandler(fn func(Outcome, error)) AsyncOption {
	return func(p *AsyncPolicy) { p.onError = fn }
}

// NewAsyncPolicy creates an AsyncPolicy with a queue of the given size and starts its worker.
func NewAsyncPolicy(s *Settler, buffer int, opts ...AsyncOption) *AsyncPolicy {
	if buffer < 0 {
		buffer = 0
	}
	p := &AsyncPolicy{
		settler: s,
		ch:      make(chan job, buffer),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(1)
	go p.worker()

	return p
}

// Settle queues o. It returns ctx.Err() if the queue stays full until ctx is done.
func (p *AsyncPolicy) Settle(ctx context.Context, o Outcome) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	// the outcome must still be applied after the caller's request ends
	j := job{ctx: context.WithoutCancel(ctx), o: o}
	select {
	case p.ch <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AsyncPolicy) worker() {
	defer p.wg.Done()

	for j := range p.ch {
		if err := p.settler.Apply(j.ctx, j.o); err != nil && p.onError != nil {
			p.onError(j.o, err)
		}
	}
}

/*
Close stops accepting outcomes and waits until every queued one is applied.
Calling Close twice is safe.
*/
func (p *AsyncPolicy) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}
