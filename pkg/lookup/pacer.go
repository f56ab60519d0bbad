package lookup

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Sleeper waits for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// RealSleeper sleeps on a timer.
var RealSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
})

// Pacer enforces a randomized cooldown in [min, max] before each request.
type Pacer struct {
	min, max time.Duration
	sleeper  Sleeper

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPacer creates a Pacer. A nil rnd seeds from the runtime source.
func NewPacer(min, max time.Duration, sleeper Sleeper, rnd *rand.Rand) *Pacer {
	if max < min {
		max = min
	}
	if sleeper == nil {
		sleeper = RealSleeper
	}
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Pacer{min: min, max: max, sleeper: sleeper, rnd: rnd}
}

// Delay returns the next cooldown duration.
func (p *Pacer) Delay() time.Duration {
	if p.max == p.min {
		return p.min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.min + time.Duration(p.rnd.Int64N(int64(p.max-p.min)+1))
}

// Wait sleeps for the next cooldown.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.sleeper.Sleep(ctx, p.Delay())
}
