package server

import (
	"context"
	"time"
)

// Clock abstracts time for the loop pacer.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx is done.
	SleepUntil(ctx context.Context, t time.Time) error
}

// realClock is the wall clock.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
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

// pacer keeps the loop on a fixed period. Deadlines advance by exactly one
// period while the loop keeps up; a late iteration re-arms from the current
// time instead of bursting catch-up ticks.
type pacer struct {
	clock  Clock
	period time.Duration
	next   time.Time
}

func newPacer(clock Clock, period time.Duration) *pacer {
	return &pacer{clock: clock, period: period, next: clock.Now().Add(period)}
}

// wait blocks until the next tick is due and reports whether the loop was
// already behind schedule.
func (p *pacer) wait(ctx context.Context) (behind bool, err error) {
	now := p.clock.Now()
	if now.After(p.next) {
		p.next = now.Add(p.period)
		return true, ctx.Err()
	}
	if err := p.clock.SleepUntil(ctx, p.next); err != nil {
		return false, err
	}
	p.next = p.next.Add(p.period)
	return false, nil
}
