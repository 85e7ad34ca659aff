package pacing

import (
	"context"
	"sync"
	"time"
)

// Recorder is a SleepFunc that records requested delays instead of sleeping
type Recorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

// Sleep records d and returns immediately
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Delays returns a copy of every recorded delay
func (r *Recorder) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// Total sums the recorded delays
func (r *Recorder) Total() time.Duration {
	var total time.Duration
	for _, d := range r.Delays() {
		total += d
	}
	return total
}

// Instant returns a seeded Pacer that never actually sleeps, and its Recorder
func Instant(seed uint64) (*Pacer, *Recorder) {
	rec := &Recorder{}
	return New(WithSeed(seed), WithSleeper(rec.Sleep)), rec
}
