// Package port groups up to eight GPIO pins into an 8-bit port that supports
// masked writes, the way a microcontroller port register does.
package port

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/pin"
)

// Width is the number of bits in a port.
const Width = 8

// Port implements gpio.Group over its pins. Bit i of a value maps to pins[i].
type Port struct {
	name string
	pins []gpio.PinIO

	mu    sync.Mutex
	latch uint8
}

var _ gpio.Group = (*Port)(nil)

// New builds a port from pins, bit 0 first.
func New(name string, pins ...gpio.PinIO) (*Port, error) {
	if len(pins) == 0 || len(pins) > Width {
		return nil, errors.Errorf("port %s: want 1..%d pins, got %d", name, Width, len(pins))
	}
	for i, p := range pins {
		if p == nil {
			return nil, errors.Errorf("port %s: pin %d is nil", name, i)
		}
	}
	return &Port{name: name, pins: pins}, nil
}

// Open resolves pin names through the host registry. host.Init must have run.
func Open(name string, pinNames ...string) (*Port, error) {
	pins := make([]gpio.PinIO, 0, len(pinNames))
	for _, n := range pinNames {
		p := gpioreg.ByName(n)
		if p == nil {
			return nil, errors.Errorf("port %s: no gpio named %q", name, n)
		}
		pins = append(pins, p)
	}
	return New(name, pins...)
}

// SimPins returns n fake pins named prefix0..prefixN-1, for hosts without the
// real hardware.
func SimPins(prefix string, n int) []gpio.PinIO {
	out := make([]gpio.PinIO, n)
	for i := range out {
		out[i] = &gpiotest.Pin{
			N:         fmt.Sprintf("%s%d", prefix, i),
			Num:       i,
			EdgesChan: make(chan gpio.Level, 8),
		}
	}
	return out
}

// Out drives the masked bits of value and leaves every other pin untouched.
func (p *Port) Out(value, mask gpio.GPIOValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pn := range p.pins {
		bit := uint8(1) << uint(i)
		if uint64(mask)&uint64(bit) == 0 {
			continue
		}
		l := gpio.Level(uint64(value)&uint64(bit) != 0)
		if err := pn.Out(l); err != nil {
			return errors.Wrapf(err, "port %s: bit %d", p.name, i)
		}
		if l {
			p.latch |= bit
		} else {
			p.latch &^= bit
		}
	}
	return nil
}

// Read samples the masked pins.
func (p *Port) Read(mask gpio.GPIOValue) (gpio.GPIOValue, error) {
	var v gpio.GPIOValue
	for i, pn := range p.pins {
		bit := gpio.GPIOValue(1) << uint(i)
		if mask&bit == 0 {
			continue
		}
		if pn.Read() == gpio.High {
			v |= bit
		}
	}
	return v, nil
}

// Latch is the last value written through Out.
func (p *Port) Latch() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latch
}

// WaitForEdge is not supported on a port; watch a single line instead.
func (p *Port) WaitForEdge(timeout time.Duration) (int, gpio.Edge, error) {
	return 0, gpio.NoEdge, gpio.ErrGroupFeatureNotImplemented
}

// Pins implements gpio.Group.
func (p *Port) Pins() []pin.Pin {
	out := make([]pin.Pin, len(p.pins))
	for i, pn := range p.pins {
		out[i] = pn
	}
	return out
}

// ByOffset implements gpio.Group.
func (p *Port) ByOffset(offset int) pin.Pin {
	if offset < 0 || offset >= len(p.pins) {
		return nil
	}
	return p.pins[offset]
}

// ByName implements gpio.Group.
func (p *Port) ByName(name string) pin.Pin {
	for _, pn := range p.pins {
		if pn.Name() == name {
			return pn
		}
	}
	return nil
}

// ByNumber implements gpio.Group.
func (p *Port) ByNumber(number int) pin.Pin {
	for _, pn := range p.pins {
		if pn.Number() == number {
			return pn
		}
	}
	return nil
}

func (p *Port) String() string {
	names := make([]string, len(p.pins))
	for i, pn := range p.pins {
		names[i] = pn.Name()
	}
	return fmt.Sprintf("%s[%s]", p.name, strings.Join(names, ","))
}

// Halt halts every pin.
func (p *Port) Halt() error {
	var err error
	for _, pn := range p.pins {
		if e := pn.Halt(); e != nil {
			err = multierr.Append(err, errors.Wrapf(e, "port %s: halt %s", p.name, pn.Name()))
		}
	}
	return err
}
