package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
)

func TestPeriod(t *testing.T) {
	cases := []struct {
		name                      string
		clock, prescaler, compare uint32
		want                      time.Duration
	}{
		{"firmware default", 8_000_000, 256, 155, 4992 * time.Microsecond},
		{"no prescaler", 1_000_000, 1, 999, time.Millisecond},
		{"zero clock", 0, 256, 155, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Period(c.clock, c.prescaler, c.compare))
		})
	}
}

func start(t *testing.T, tm *Timer) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tm.Run(ctx) }()
	return cancel, done
}

func TestTimerRaisesEveryPeriod(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ctrl := irq.NewController()
	var n atomic.Int32
	ctrl.Register(irq.TimerCompare, func(*irq.Frame) { n.Add(1) })

	tm := &Timer{IRQ: ctrl, Period: 5 * time.Millisecond, Clock: clk}
	cancel, done := start(t, tm)

	for i := int32(1); i <= 3; i++ {
		clk.BlockUntil(1)
		clk.Advance(4 * time.Millisecond)
		assert.Equal(t, i-1, n.Load(), "no tick before the period")
		clk.Advance(time.Millisecond)
		require.Eventually(t, func() bool { return n.Load() == i }, time.Second, time.Millisecond)
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, uint64(3), tm.Ticks())
	assert.Zero(t, tm.Overruns())
}

func TestTimerOverrunIsLateNotSkipped(t *testing.T) {
	clk := clockwork.NewFakeClock()
	ctrl := irq.NewController()
	period := 5 * time.Millisecond
	var n atomic.Int32
	ctrl.Register(irq.TimerCompare, func(*irq.Frame) {
		if n.Add(1) == 1 {
			clk.Advance(3 * period)
		}
	})

	tm := &Timer{IRQ: ctrl, Period: period, Clock: clk}
	cancel, done := start(t, tm)

	clk.BlockUntil(1)
	clk.Advance(period)
	require.Eventually(t, func() bool { return n.Load() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), tm.Overruns())

	clk.BlockUntil(1)
	clk.Advance(period)
	require.Eventually(t, func() bool { return n.Load() == 3 }, time.Second, time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, uint64(3), tm.Ticks())
}
