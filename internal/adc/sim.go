package adc

import (
	"sync"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"

	"github.com/coreman2200/funtimes-levelmeter/internal/shared"
)

// SimPin is an analog input for hosts without a converter. It either replays
// a script of samples in a loop or sweeps up and down the full range.
type SimPin struct {
	N string

	mu     sync.Mutex
	script []uint16
	step   int32
	pos    int32
	down   bool
}

var _ analog.PinADC = (*SimPin)(nil)

// NewSweep returns a pin that moves step counts per read, 0..1023 and back.
func NewSweep(step int32) *SimPin {
	if step <= 0 {
		step = 1
	}
	return &SimPin{N: "SIM_ADC", step: step}
}

// NewScript returns a pin that replays values forever.
func NewScript(values ...uint16) *SimPin {
	return &SimPin{N: "SIM_ADC", script: values}
}

func (p *SimPin) String() string   { return p.N }
func (p *SimPin) Halt() error      { return nil }
func (p *SimPin) Name() string     { return p.N }
func (p *SimPin) Number() int      { return -1 }
func (p *SimPin) Function() string { return string(pin.FuncNone) }

func (p *SimPin) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{V: 5 * physic.Volt, Raw: shared.SampleMax}
}

func (p *SimPin) Read() (analog.Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.script) > 0 {
		v := int32(p.script[int(p.pos)%len(p.script)])
		p.pos = (p.pos + 1) % int32(len(p.script))
		return analog.Sample{Raw: v}, nil
	}
	v := p.pos
	if p.down {
		p.pos -= p.step
		if p.pos <= 0 {
			p.pos, p.down = 0, false
		}
	} else {
		p.pos += p.step
		if p.pos >= shared.SampleMax {
			p.pos, p.down = shared.SampleMax, true
		}
	}
	return analog.Sample{Raw: v}, nil
}
