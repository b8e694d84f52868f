package view

import (
	"context"
	"sync"
	"time"
)

type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type SystemClock struct{}

func (SystemClock) NewTicker(d time.Duration) Ticker {
	return systemTicker{time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// Poller calls fn on every tick until stopped. Calls never overlap; ticks
// missed while fn runs are dropped.
type Poller struct {
	clock    Clock
	interval time.Duration
	fn       func(context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func NewPoller(clock Clock, interval time.Duration, fn func(context.Context)) *Poller {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Poller{clock: clock, interval: interval, fn: fn}
}

// Start is a no-op when the poller is running or was stopped.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.done != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.clock.NewTicker(p.interval), p.done)
}

func (p *Poller) run(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			p.fn(ctx)
		}
	}
}

// Stop cancels the running tick, if any, and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.stopped = true
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
