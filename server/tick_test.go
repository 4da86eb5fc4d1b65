package server

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) SleepUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, t)
	if t.After(c.now) {
		c.now = t
	}
	return nil
}

func TestPacer_PhaseLocked(t *testing.T) {
	t0 := time.Unix(0, 0)
	clk := &fakeClock{now: t0}
	p := newPacer(clk, 500*time.Millisecond)

	for i := 1; i <= 3; i++ {
		clk.now = clk.now.Add(100 * time.Millisecond) // work shorter than a period
		behind, err := p.wait(context.Background())
		require.NoError(t, err)
		assert.False(t, behind)
		assert.Equal(t, t0.Add(time.Duration(i)*500*time.Millisecond), clk.now, "wakes exactly on the deadline")
	}
	assert.Equal(t, t0.Add(2*time.Second), p.next)
}

// 2 ticks per second, iteration 1 takes 600ms: the deadline after it is
// re-armed from the time it finished, not accumulated from the old one.
func TestPacer_OverrunRearmsFromNow(t *testing.T) {
	t0 := time.Unix(0, 0)
	clk := &fakeClock{now: t0}
	p := newPacer(clk, 500*time.Millisecond)

	behind, err := p.wait(context.Background())
	require.NoError(t, err)
	require.False(t, behind)
	require.Equal(t, t0.Add(500*time.Millisecond), clk.now)

	clk.now = clk.now.Add(600 * time.Millisecond)
	behind, err = p.wait(context.Background())
	require.NoError(t, err)
	assert.True(t, behind)
	assert.Equal(t, t0.Add(1100*time.Millisecond), clk.now, "no sleep when late")
	assert.Equal(t, t0.Add(1600*time.Millisecond), p.next)

	behind, err = p.wait(context.Background())
	require.NoError(t, err)
	assert.False(t, behind)
	assert.Equal(t, t0.Add(1600*time.Millisecond), clk.now)
	assert.Len(t, clk.sleeps, 2, "missed ticks are skipped, not replayed")
}

func TestPacer_Cancelled(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := newPacer(clk, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestServer_RunCountsOverruns(t *testing.T) {
	h := newHarness(t)
	clk := &fakeClock{now: time.Unix(0, 0)}
	h.srv.clock = clk

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// each command pushes the clock past the next deadline
	h.srv.opts.Period = time.Millisecond
	go func() {
		for i := 0; i < 3; i++ {
			_, _ = h.srv.Exec(ctx, func(s *Server) (any, error) {
				clk.now = clk.now.Add(10 * time.Millisecond)
				return nil, nil
			})
		}
		cancel()
	}()
	require.NoError(t, h.srv.Run(ctx))
	assert.GreaterOrEqual(t, testutil.ToFloat64(h.metrics.Behind), 2.0)
}
