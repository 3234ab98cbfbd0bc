package pattern

import (
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
)

// Writer receives the mask after every animation step.
type Writer interface {
	Write(m Mask) error
}

// Animator advances the pattern once every Period+1 ticks.
type Animator struct {
	Period  uint
	Pattern *Cell
	Out     Writer

	countdown uint
	steps     uint64
	outErrs   uint64
}

// Tick is called on every timer tick, after the classifier. It reports the
// mask and whether an animation step happened.
func (a *Animator) Tick(s irq.Suppressor) (Mask, bool) {
	if a.countdown != 0 {
		a.countdown--
		return a.Pattern.Read(s).Mask, false
	}
	a.countdown = a.Period

	p := a.Pattern.Update(s, func(p Pattern) Pattern {
		p.Mask = p.Mask.Step(p.Mode)
		return p
	})
	a.steps++
	if a.Out != nil {
		if err := a.Out.Write(p.Mask); err != nil {
			a.outErrs++
		}
	}
	return p.Mask, true
}

// Countdown is the number of ticks left before the next step.
func (a *Animator) Countdown() uint { return a.countdown }

// Steps is the number of animation steps taken.
func (a *Animator) Steps() uint64 { return a.steps }

// OutputErrors counts failed output writes. Outputs are fire-and-forget on the
// tick, so failures are only counted.
func (a *Animator) OutputErrors() uint64 { return a.outErrs }

// Preservation masks: only these bits of each port belong to the lights.
const (
	LowPortBits  gpio.GPIOValue = 0b00000011
	HighPortBits gpio.GPIOValue = 0b00000111
)

// Output splits the mask over two ports: lights 0-1 on Low bits 0-1, lights
// 2-4 on High bits 0-2. Every other bit of either port is left alone.
type Output struct {
	Low  gpio.Group
	High gpio.Group
}

// Write implements Writer.
func (o Output) Write(m Mask) error {
	v := gpio.GPIOValue(uint8(m) & MaskBits)
	return multierr.Append(
		o.Low.Out(v&LowPortBits, LowPortBits),
		o.High.Out((v>>2)&HighPortBits, HighPortBits),
	)
}

// Read reassembles the mask from the port levels.
func (o Output) Read() (Mask, error) {
	lo, err := o.Low.Read(LowPortBits)
	if err != nil {
		return 0, err
	}
	hi, err := o.High.Read(HighPortBits)
	if err != nil {
		return 0, err
	}
	return Mask(uint8(lo) | uint8(hi)<<2), nil
}
