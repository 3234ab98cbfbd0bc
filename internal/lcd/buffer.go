// Package lcd holds the character displays the refresh loop writes to. Both
// implement display.TextDisplay.
package lcd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/display"
)

// Default geometry of the character module.
const (
	DefaultRows = 2
	DefaultCols = 16
)

// Greeting is printed at the home position on startup.
const Greeting = "ADC"

// Greet clears d and prints the greeting.
func Greet(d display.TextDisplay) error {
	if err := d.Clear(); err != nil {
		return errors.Wrap(err, "lcd: clear")
	}
	if err := d.Home(); err != nil {
		return errors.Wrap(err, "lcd: home")
	}
	if _, err := d.WriteString(Greeting); err != nil {
		return errors.Wrap(err, "lcd: greet")
	}
	return nil
}

// Buffer is an in-memory character display.
type Buffer struct {
	mu         sync.Mutex
	rows, cols int
	cells      [][]byte
	row, col   int
	on         bool
	autoScroll bool
	cursor     display.CursorMode
	writes     int
}

var _ display.TextDisplay = (*Buffer)(nil)

// NewBuffer returns a blank rows x cols display.
func NewBuffer(rows, cols int) *Buffer {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}
	b := &Buffer{rows: rows, cols: cols, on: true}
	b.cells = make([][]byte, rows)
	for i := range b.cells {
		b.cells[i] = []byte(strings.Repeat(" ", cols))
	}
	return b
}

func (b *Buffer) AutoScroll(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoScroll = enabled
	return nil
}

func (b *Buffer) Cols() int   { return b.cols }
func (b *Buffer) Rows() int   { return b.rows }
func (b *Buffer) MinCol() int { return 0 }
func (b *Buffer) MinRow() int { return 0 }

func (b *Buffer) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.cells {
		for i := range r {
			r[i] = ' '
		}
	}
	b.row, b.col = 0, 0
	return nil
}

func (b *Buffer) Cursor(modes ...display.CursorMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range modes {
		if m < display.CursorOff || m > display.CursorBlink {
			return errors.Errorf("lcd: invalid cursor mode %d", m)
		}
		b.cursor = m
	}
	return nil
}

func (b *Buffer) Home() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.row, b.col = 0, 0
	return nil
}

func (b *Buffer) Move(dir display.CursorDirection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch dir {
	case display.Forward:
		b.advance()
	case display.Backward:
		if b.col > 0 {
			b.col--
		} else if b.row > 0 {
			b.row, b.col = b.row-1, b.cols-1
		}
	case display.Up:
		if b.row > 0 {
			b.row--
		}
	case display.Down:
		if b.row < b.rows-1 {
			b.row++
		}
	default:
		return errors.Errorf("lcd: invalid direction %d", dir)
	}
	return nil
}

func (b *Buffer) MoveTo(row, col int) error {
	if row < 0 || row >= b.rows || col < 0 || col >= b.cols {
		return errors.Errorf("lcd: position (%d,%d) outside %dx%d", row, col, b.rows, b.cols)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.row, b.col = row, col
	return nil
}

func (b *Buffer) Display(on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.on = on
	return nil
}

func (b *Buffer) String() string {
	return fmt.Sprintf("lcd.Buffer{%dx%d}", b.rows, b.cols)
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range p {
		b.cells[b.row][b.col] = c
		b.advance()
	}
	b.writes++
	return len(p), nil
}

func (b *Buffer) WriteString(s string) (int, error) {
	return b.Write([]byte(s))
}

// advance moves the cursor one cell on, wrapping to the next row. Past the
// last cell it scrolls when auto scroll is on and wraps home otherwise.
func (b *Buffer) advance() {
	b.col++
	if b.col < b.cols {
		return
	}
	b.col = 0
	b.row++
	if b.row < b.rows {
		return
	}
	if !b.autoScroll {
		b.row = 0
		return
	}
	b.row = b.rows - 1
	first := b.cells[0]
	copy(b.cells, b.cells[1:])
	for i := range first {
		first[i] = ' '
	}
	b.cells[b.rows-1] = first
}

// Row returns the text of row i.
func (b *Buffer) Row(i int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= b.rows {
		return ""
	}
	return string(b.cells[i])
}

// Lines returns every row.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, b.rows)
	for i, r := range b.cells {
		out[i] = string(r)
	}
	return out
}

// Position is the cursor position.
func (b *Buffer) Position() (row, col int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.row, b.col
}

// On reports whether the display is switched on.
func (b *Buffer) On() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

// Writes counts Write calls.
func (b *Buffer) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}
