package led

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-levelmeter/internal/pattern"
)

// DefaultFPS is how often the output ports are polled.
const DefaultFPS = 30

// Source reports the mask currently driven on the light ports.
type Source interface {
	Read() (pattern.Mask, error)
}

// Looper polls the light ports and redraws the strip when the mask changes.
// It only reads the ports, so it needs no interrupt suppression.
type Looper struct {
	Source  Source
	Driver  Driver
	Palette Palette
	FPS     int
	Clock   clockwork.Clock

	last   pattern.Mask
	drawn  bool
	frames uint64
}

// Refresh reads the ports once and redraws if needed. It reports whether a
// frame was written.
func (l *Looper) Refresh() (bool, error) {
	m, err := l.Source.Read()
	if err != nil {
		return false, err
	}
	if l.drawn && m == l.last {
		return false, nil
	}
	if err := l.Driver.Write(l.Palette.Frame(m)); err != nil {
		return false, err
	}
	l.last, l.drawn = m, true
	l.frames++
	return true, nil
}

// Run refreshes at FPS until ctx is done.
func (l *Looper) Run(ctx context.Context) error {
	clk := l.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	fps := l.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	ticker := clk.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	warned := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := l.Refresh(); err != nil && !warned {
				log.Warn().Err(err).Msg("led mirror refresh failed")
				warned = true
			}
		}
	}
}

// Frames is the number of frames written.
func (l *Looper) Frames() uint64 { return l.frames }
