// Package scheduler raises the periodic timer-compare event.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
)

// Period is the compare-match period of a clear-on-compare timer:
// (compare+1) * prescaler clock cycles.
func Period(clockHz, prescaler, compare uint32) time.Duration {
	if clockHz == 0 {
		return 0
	}
	cycles := (uint64(compare) + 1) * uint64(prescaler)
	return time.Duration(cycles * uint64(time.Second) / uint64(clockHz))
}

// Timer raises TimerCompare once per Period.
//
// The next tick is armed only after the handler returns. A handler that runs
// past the next deadline makes that tick late, never dropped; the schedule
// then restarts from the late tick.
type Timer struct {
	IRQ    *irq.Controller
	Period time.Duration
	Clock  clockwork.Clock

	ticks    atomic.Uint64
	overruns atomic.Uint64
}

// Run ticks until ctx is done.
func (t *Timer) Run(ctx context.Context) error {
	clk := t.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	period := t.Period
	if period <= 0 {
		period = time.Millisecond
	}

	due := clk.Now().Add(period)
	tm := clk.NewTimer(period)
	defer tm.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tm.Chan():
		}

		t.IRQ.Raise(irq.TimerCompare)
		t.ticks.Add(1)

		due = due.Add(period)
		wait := due.Sub(clk.Now())
		if wait <= 0 {
			n := t.overruns.Add(1)
			log.Debug().Dur("late", -wait).Uint64("overruns", n).Msg("timer tick overran its period")
			due = clk.Now()
			wait = 0
		}
		tm.Reset(wait)
	}
}

// Ticks is the number of timer events raised.
func (t *Timer) Ticks() uint64 { return t.ticks.Load() }

// Overruns counts ticks whose handler finished after the next deadline.
func (t *Timer) Overruns() uint64 { return t.overruns.Load() }
