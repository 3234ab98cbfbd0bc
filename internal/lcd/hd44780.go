package lcd

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
)

// HD44780 instruction set.
const (
	cmdClear       = 0x01
	cmdHome        = 0x02
	cmdEntryMode   = 0x04
	cmdDisplayCtrl = 0x08
	cmdShift       = 0x10
	cmdFunctionSet = 0x20
	cmdSetDDRAM    = 0x80

	entryIncrement = 0x02
	entryShift     = 0x01

	ctrlDisplayOn = 0x04
	ctrlCursorOn  = 0x02
	ctrlBlinkOn   = 0x01

	shiftRight = 0x04

	fnTwoLines = 0x08
)

var rowOffsets = [4]byte{0x00, 0x40, 0x14, 0x54}

// Pins of a 4-bit parallel interface. R/W is tied low.
type Pins struct {
	RS gpio.PinOut
	E  gpio.PinOut
	D  [4]gpio.PinOut // D4..D7
}

// HD44780 drives a character module over a 4-bit bus.
type HD44780 struct {
	mu    sync.Mutex
	pins  Pins
	clk   clockwork.Clock
	rows  int
	cols  int
	row   int
	col   int
	entry byte
	ctrl  byte
}

var _ display.TextDisplay = (*HD44780)(nil)

// NewHD44780 runs the 4-bit initialization sequence and returns a cleared
// display with the cursor off. clk may be nil.
func NewHD44780(pins Pins, rows, cols int, clk clockwork.Clock) (*HD44780, error) {
	if pins.RS == nil || pins.E == nil {
		return nil, errors.New("hd44780: RS and E are required")
	}
	for i, p := range pins.D {
		if p == nil {
			return nil, errors.Errorf("hd44780: D%d is required", i+4)
		}
	}
	if rows <= 0 || rows > len(rowOffsets) {
		return nil, errors.Errorf("hd44780: %d rows not supported", rows)
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	d := &HD44780{pins: pins, clk: clk, rows: rows, cols: cols}
	if err := d.init(); err != nil {
		return nil, errors.Wrap(err, "hd44780: init")
	}
	return d, nil
}

func (d *HD44780) init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clk.Sleep(50 * time.Millisecond)
	if err := d.pins.RS.Out(gpio.Low); err != nil {
		return err
	}
	// Three 8-bit function sets force a known state, then switch to 4 bits.
	for _, n := range []byte{0x3, 0x3, 0x3, 0x2} {
		if err := d.nibble(n); err != nil {
			return err
		}
		d.clk.Sleep(5 * time.Millisecond)
	}
	fn := byte(cmdFunctionSet)
	if d.rows > 1 {
		fn |= fnTwoLines
	}
	d.entry = cmdEntryMode | entryIncrement
	d.ctrl = cmdDisplayCtrl | ctrlDisplayOn
	for _, c := range []byte{fn, d.ctrl, cmdClear, d.entry} {
		if err := d.command(c); err != nil {
			return err
		}
	}
	return nil
}

func (d *HD44780) nibble(n byte) error {
	for i, p := range d.pins.D {
		if err := p.Out(gpio.Level(n&(1<<uint(i)) != 0)); err != nil {
			return err
		}
	}
	if err := d.pins.E.Out(gpio.High); err != nil {
		return err
	}
	d.clk.Sleep(time.Microsecond)
	if err := d.pins.E.Out(gpio.Low); err != nil {
		return err
	}
	d.clk.Sleep(50 * time.Microsecond)
	return nil
}

func (d *HD44780) send(b byte, data bool) error {
	if err := d.pins.RS.Out(gpio.Level(data)); err != nil {
		return err
	}
	if err := d.nibble(b >> 4); err != nil {
		return err
	}
	return d.nibble(b & 0x0f)
}

// command sends an instruction. The caller holds d.mu.
func (d *HD44780) command(c byte) error {
	if err := d.send(c, false); err != nil {
		return errors.Wrapf(err, "hd44780: command %#02x", c)
	}
	if c == cmdClear || c == cmdHome {
		d.clk.Sleep(2 * time.Millisecond)
	}
	return nil
}

func (d *HD44780) AutoScroll(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if enabled {
		d.entry |= entryShift
	} else {
		d.entry &^= entryShift
	}
	return d.command(d.entry)
}

func (d *HD44780) Cols() int   { return d.cols }
func (d *HD44780) Rows() int   { return d.rows }
func (d *HD44780) MinCol() int { return 0 }
func (d *HD44780) MinRow() int { return 0 }

func (d *HD44780) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row, d.col = 0, 0
	return d.command(cmdClear)
}

func (d *HD44780) Home() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row, d.col = 0, 0
	return d.command(cmdHome)
}

func (d *HD44780) Cursor(modes ...display.CursorMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctrl := d.ctrl
	for _, m := range modes {
		switch m {
		case display.CursorOff:
			ctrl &^= ctrlCursorOn | ctrlBlinkOn
		case display.CursorUnderline:
			ctrl |= ctrlCursorOn
		case display.CursorBlock, display.CursorBlink:
			ctrl |= ctrlBlinkOn
		default:
			return errors.Errorf("hd44780: invalid cursor mode %d", m)
		}
	}
	d.ctrl = ctrl
	return d.command(d.ctrl)
}

func (d *HD44780) Move(dir display.CursorDirection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch dir {
	case display.Forward:
		d.col++
		return d.command(cmdShift | shiftRight)
	case display.Backward:
		if d.col > 0 {
			d.col--
		}
		return d.command(cmdShift)
	case display.Up:
		if d.row > 0 {
			d.row--
		}
	case display.Down:
		if d.row < d.rows-1 {
			d.row++
		}
	default:
		return errors.Errorf("hd44780: invalid direction %d", dir)
	}
	return d.command(cmdSetDDRAM | (rowOffsets[d.row] + byte(d.col)))
}

func (d *HD44780) MoveTo(row, col int) error {
	if row < 0 || row >= d.rows || col < 0 || col >= d.cols {
		return errors.Errorf("hd44780: position (%d,%d) outside %dx%d", row, col, d.rows, d.cols)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.row, d.col = row, col
	return d.command(cmdSetDDRAM | (rowOffsets[row] + byte(col)))
}

func (d *HD44780) Display(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if on {
		d.ctrl |= ctrlDisplayOn
	} else {
		d.ctrl &^= ctrlDisplayOn
	}
	return d.command(d.ctrl)
}

func (d *HD44780) String() string {
	return fmt.Sprintf("HD44780{%dx%d, RS=%s, E=%s}", d.rows, d.cols, d.pins.RS, d.pins.E)
}

func (d *HD44780) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range p {
		if err := d.send(c, true); err != nil {
			return i, errors.Wrap(err, "hd44780: write")
		}
		d.col++
	}
	return len(p), nil
}

func (d *HD44780) WriteString(s string) (int, error) {
	return d.Write([]byte(s))
}

// Halt switches the display off.
func (d *HD44780) Halt() error {
	return d.Display(false)
}
