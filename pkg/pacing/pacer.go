// Package pacing inserts randomized, human-looking delays between browser
// actions and caps how fast a session may advance through the feed.
package pacing

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Range is an inclusive delay range
type Range struct {
	Min time.Duration
	Max time.Duration
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer draws random delays and sleeps on them. A Pacer is safe for
// concurrent use, but each worker normally owns its own.
type Pacer struct {
	mu      sync.Mutex
	rng     *rand.Rand
	limiter *rate.Limiter
	sleep   SleepFunc
}

// Option configures a Pacer
type Option func(*Pacer)

// WithSeed makes the delay sequence reproducible
func WithSeed(seed uint64) Option {
	return func(p *Pacer) {
		p.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithNavigationsPerMinute caps advances per minute; n <= 0 disables the cap
func WithNavigationsPerMinute(n int) Option {
	return func(p *Pacer) {
		if n <= 0 {
			p.limiter = nil
			return
		}
		p.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithSleeper replaces the real sleep, mostly for tests
func WithSleeper(fn SleepFunc) Option {
	return func(p *Pacer) {
		p.sleep = fn
	}
}

// New creates a Pacer seeded from the runtime's random source
func New(opts ...Option) *Pacer {
	p := &Pacer{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Duration draws a uniform delay from r
func (p *Pacer) Duration(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Min + time.Duration(p.rng.Int64N(int64(r.Max-r.Min)+1))
}

// Sleep waits a random duration from r. It returns ctx.Err() if ctx ends first.
func (p *Pacer) Sleep(ctx context.Context, r Range) error {
	return p.sleep(ctx, p.Duration(r))
}

// SleepFor waits exactly d
func (p *Pacer) SleepFor(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// Navigation blocks until the navigation cap allows another advance
func (p *Pacer) Navigation(ctx context.Context) error {
	if p.limiter == nil {
		return ctx.Err()
	}
	return p.limiter.Wait(ctx)
}

// Chance returns true with probability prob
func (p *Pacer) Chance(prob float64) bool {
	if prob <= 0 {
		return false
	}
	if prob >= 1 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < prob
}

// IntBetween returns a uniform integer in [min, max]
func (p *Pacer) IntBetween(min, max int) int {
	if max <= min {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + p.rng.IntN(max-min+1)
}

// Pick returns a uniformly chosen element of items, or "" when empty
func (p *Pacer) Pick(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[p.IntBetween(0, len(items)-1)]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
