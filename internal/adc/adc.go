// Package adc turns an analog input into conversion-complete events. A
// Converter paces conversions and latches each result into Registers; the
// Sampler handler copies the result into the shared sample.
package adc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/analog"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
	"github.com/coreman2200/funtimes-levelmeter/internal/shared"
)

// CyclesPerConversion is the length of a free-running conversion in ADC
// clock cycles.
const CyclesPerConversion = 13

// ConversionPeriod is the time between free-running conversions.
func ConversionPeriod(clockHz, prescaler uint32) time.Duration {
	if clockHz == 0 || prescaler == 0 {
		return 0
	}
	return time.Duration(uint64(CyclesPerConversion) * uint64(prescaler) * uint64(time.Second) / uint64(clockHz))
}

// Registers hold the last completed conversion as a low and a high byte.
type Registers struct {
	v atomic.Uint32
}

// Latch stores a completed conversion. Only 10 bits are kept.
func (r *Registers) Latch(raw uint16) { r.v.Store(uint32(raw & shared.SampleMax)) }

// Result returns both bytes of one conversion. A Latch racing the read
// cannot split them.
func (r *Registers) Result() (lo, hi uint8) {
	v := r.v.Load()
	return uint8(v), uint8(v >> 8)
}

// Low is the low result byte.
func (r *Registers) Low() uint8 { lo, _ := r.Result(); return lo }

// High is the high result byte; only its two lowest bits are used.
func (r *Registers) High() uint8 { _, hi := r.Result(); return hi }

// Sampler is the conversion-complete handler.
type Sampler struct {
	Regs   *Registers
	Sample *shared.SampleCell
}

// Handle copies the latched conversion into the shared sample. It never
// fails and never validates; the latest conversion wins.
func (s Sampler) Handle(*irq.Frame) {
	lo, hi := s.Regs.Result()
	s.Sample.Store(uint16(lo) | uint16(hi)<<8)
}

// Converter runs free-running conversions on Pin.
type Converter struct {
	Pin    analog.PinADC
	Regs   *Registers
	IRQ    *irq.Controller
	Period time.Duration
	Clock  clockwork.Clock

	conversions atomic.Uint64
	failures    atomic.Uint64
}

// Convert performs one conversion and raises ADCComplete. A failed read
// skips the conversion.
func (c *Converter) Convert() bool {
	s, err := c.Pin.Read()
	if err != nil {
		if c.failures.Add(1) == 1 {
			log.Warn().Err(err).Str("pin", c.Pin.String()).Msg("adc read failed; skipping conversion")
		}
		return false
	}
	raw := s.Raw
	if raw < 0 {
		raw = 0
	}
	if raw > shared.SampleMax {
		raw = shared.SampleMax
	}
	c.Regs.Latch(uint16(raw))
	c.conversions.Add(1)
	c.IRQ.Raise(irq.ADCComplete)
	return true
}

// Run converts once per Period until ctx is done.
func (c *Converter) Run(ctx context.Context) error {
	clk := c.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	period := c.Period
	if period <= 0 {
		period = time.Millisecond
	}
	t := clk.NewTicker(period)
	defer t.Stop()

	log.Debug().Str("pin", c.Pin.String()).Dur("period", period).Msg("adc free-running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			c.Convert()
		}
	}
}

// Conversions is the number of completed conversions.
func (c *Converter) Conversions() uint64 { return c.conversions.Load() }

// Failures is the number of skipped conversions.
func (c *Converter) Failures() uint64 { return c.failures.Load() }
