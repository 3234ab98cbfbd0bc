package adc

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/pin"
	"periph.io/x/conn/v3/spi"
)

// MCP3008Channels is the number of single-ended inputs.
const MCP3008Channels = 8

// MCP3008 is a 10-bit, 8-channel SPI converter.
type MCP3008 struct {
	mu     sync.Mutex
	c      spi.Conn
	vref   physic.ElectricPotential
	closer spi.PortCloser
	once   sync.Once
	err    error
}

// NewMCP3008 connects to the converter on p. vref is the reference voltage
// used to fill Sample.V.
func NewMCP3008(p spi.Port, f physic.Frequency, vref physic.ElectricPotential) (*MCP3008, error) {
	c, err := p.Connect(f, spi.Mode0, 8)
	if err != nil {
		return nil, errors.Wrap(err, "mcp3008: connect")
	}
	return &MCP3008{c: c, vref: vref}, nil
}

// OpenMCP3008 is NewMCP3008 on a port the device owns. Close, or Halt on
// any of its pins, closes p.
func OpenMCP3008(p spi.PortCloser, f physic.Frequency, vref physic.ElectricPotential) (*MCP3008, error) {
	d, err := NewMCP3008(p, f, vref)
	if err != nil {
		return nil, err
	}
	d.closer = p
	return d, nil
}

// Close releases the owned port, if any. Later calls return the first
// result.
func (d *MCP3008) Close() error {
	d.once.Do(func() {
		if d.closer != nil {
			d.err = errors.Wrap(d.closer.Close(), "mcp3008: close")
		}
	})
	return d.err
}

// Pin returns single-ended input ch.
func (d *MCP3008) Pin(ch int) (analog.PinADC, error) {
	if ch < 0 || ch >= MCP3008Channels {
		return nil, errors.Errorf("mcp3008: channel %d out of range", ch)
	}
	return &mcpPin{d: d, ch: ch}, nil
}

func (d *MCP3008) read(ch int) (int32, error) {
	w := []byte{0x01, byte(8+ch) << 4, 0x00}
	r := make([]byte, len(w))
	d.mu.Lock()
	err := d.c.Tx(w, r)
	d.mu.Unlock()
	if err != nil {
		return 0, errors.Wrapf(err, "mcp3008: read ch%d", ch)
	}
	return int32(r[1]&0x03)<<8 | int32(r[2]), nil
}

type mcpPin struct {
	d  *MCP3008
	ch int
}

var _ analog.PinADC = (*mcpPin)(nil)

func (p *mcpPin) String() string   { return p.Name() }
func (p *mcpPin) Halt() error      { return p.d.Close() }
func (p *mcpPin) Name() string     { return fmt.Sprintf("MCP3008_CH%d", p.ch) }
func (p *mcpPin) Number() int      { return p.ch }
func (p *mcpPin) Function() string { return string(pin.FuncNone) }

func (p *mcpPin) Range() (analog.Sample, analog.Sample) {
	return analog.Sample{}, analog.Sample{V: p.d.vref, Raw: 1023}
}

func (p *mcpPin) Read() (analog.Sample, error) {
	raw, err := p.d.read(p.ch)
	if err != nil {
		return analog.Sample{}, err
	}
	return analog.Sample{Raw: raw, V: p.d.vref * physic.ElectricPotential(raw) / 1023}, nil
}
