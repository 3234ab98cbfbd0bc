// Package refresh runs the foreground loop that mirrors the latest sample on
// the character display.
package refresh

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
	"github.com/coreman2200/funtimes-levelmeter/internal/shared"
)

// Field is where the sample is printed.
type Field struct {
	Row   int
	Col   int
	Width int
}

// DefaultField is the second row, column 5, six characters wide.
var DefaultField = Field{Row: 1, Col: 5, Width: 6}

// FormatSample renders v in decimal with no padding.
func FormatSample(v uint16) string {
	return strconv.FormatUint(uint64(v), 10)
}

// Loop redraws the sample field on every pass.
type Loop struct {
	IRQ     *irq.Controller
	Sample  *shared.SampleCell
	Inputs  *shared.InputMailbox
	Display display.TextDisplay
	Field   Field

	// Interval paces passes. Zero spins, yielding between passes.
	Interval time.Duration
	Clock    clockwork.Clock

	passes uint64
	errs   uint64
	last   uint16
}

// snapshot copies the sample with conversions held off.
func (l *Loop) snapshot() uint16 {
	l.IRQ.Mask(irq.ADCComplete)
	defer l.IRQ.Unmask(irq.ADCComplete)
	return l.Sample.Load()
}

// Once performs one pass and returns the value it printed.
func (l *Loop) Once() (uint16, error) {
	v := l.snapshot()
	l.last = v
	l.passes++

	if l.Inputs != nil {
		if b, ok := l.Inputs.Take(l.IRQ); ok {
			log.Debug().Uint8("snapshot", b).Msg("input edge")
		}
	}

	f := l.Field
	if f.Width == 0 {
		f = DefaultField
	}
	err := l.draw(f, FormatSample(v))
	if err != nil {
		l.errs++
	}
	return v, err
}

func (l *Loop) draw(f Field, text string) error {
	if err := l.Display.MoveTo(f.Row, f.Col); err != nil {
		return errors.Wrap(err, "refresh: move to field")
	}
	if _, err := l.Display.WriteString(strings.Repeat(" ", f.Width)); err != nil {
		return errors.Wrap(err, "refresh: clear field")
	}
	if err := l.Display.MoveTo(f.Row, f.Col); err != nil {
		return errors.Wrap(err, "refresh: move to field")
	}
	if _, err := l.Display.WriteString(text); err != nil {
		return errors.Wrap(err, "refresh: write sample")
	}
	return nil
}

// Run loops until ctx is done. Display errors are logged once and otherwise
// only counted; the next pass redraws anyway.
func (l *Loop) Run(ctx context.Context) error {
	clk := l.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	var tick <-chan time.Time
	if l.Interval > 0 {
		t := clk.NewTicker(l.Interval)
		defer t.Stop()
		tick = t.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := l.Once(); err != nil && l.errs == 1 {
			log.Warn().Err(err).Str("display", l.Display.String()).Msg("display write failed")
		}

		if tick == nil {
			runtime.Gosched()
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}
	}
}

// Passes is the number of completed passes.
func (l *Loop) Passes() uint64 { return l.passes }

// Errors counts passes whose display write failed.
func (l *Loop) Errors() uint64 { return l.errs }

// Last is the value printed by the most recent pass.
func (l *Loop) Last() uint16 { return l.last }
