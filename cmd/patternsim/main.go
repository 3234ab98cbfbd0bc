// Command patternsim runs the classifier and animator over a list of samples,
// one timer tick per sample, and prints what the lights show.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
	"github.com/coreman2200/funtimes-levelmeter/internal/pattern"
	"github.com/coreman2200/funtimes-levelmeter/internal/port"
	"github.com/coreman2200/funtimes-levelmeter/internal/shared"
)

func main() {
	var (
		samples = flag.String("samples", "0,200,900", "comma-separated 10-bit samples, one per tick")
		mode    = flag.String("mode", "scroll-left", "animation: none | scroll-left | invert | scroll-right")
		mask    = flag.String("mask", "00000", "initial light mask, most significant light first")
		period  = flag.Uint("period", 0, "ticks between animation steps")
		repeat  = flag.Int("repeat", 1, "replay the sample list this many times")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	vals, err := parseSamples(*samples)
	if err != nil {
		log.Fatal().Err(err).Msg("samples")
	}
	m, err := pattern.ParseMode(*mode)
	if err != nil {
		log.Fatal().Err(err).Msg("mode")
	}
	k, err := pattern.ParseMask(*mask)
	if err != nil {
		log.Fatal().Err(err).Msg("mask")
	}
	var all []uint16
	for i := 0; i < *repeat; i++ {
		all = append(all, vals...)
	}
	if err := simulate(os.Stdout, all, pattern.Pattern{Mode: m, Mask: k}, *period); err != nil {
		log.Fatal().Err(err).Msg("simulate")
	}
}

func parseSamples(s string) ([]uint16, error) {
	var out []uint16
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %q", f)
		}
		if v > shared.SampleMax {
			return nil, errors.Errorf("sample %d above %d", v, shared.SampleMax)
		}
		out = append(out, uint16(v))
	}
	if len(out) == 0 {
		return nil, errors.New("no samples")
	}
	return out, nil
}

// simulate wires the tick path exactly as the firmware does, on simulated
// ports, and writes one row per tick.
func simulate(w io.Writer, samples []uint16, initial pattern.Pattern, period uint) error {
	lo, err := port.New("PORTG", port.SimPins("PG", port.Width)...)
	if err != nil {
		return err
	}
	hi, err := port.New("PORTB", port.SimPins("PB", port.Width)...)
	if err != nil {
		return err
	}
	out := pattern.Output{Low: lo, High: hi}

	ctrl := irq.NewController()
	var sample shared.SampleCell
	cell := pattern.NewCell(initial)
	cls := pattern.Classifier{Sample: &sample, Pattern: cell}
	anim := &pattern.Animator{Period: period, Pattern: cell, Out: out}

	var level pattern.Mask
	var stepped bool
	ctrl.Register(irq.TimerCompare, func(f *irq.Frame) {
		level = cls.Update(f)
		_, stepped = anim.Tick(f)
	})

	fmt.Fprintf(w, "%4s  %6s  %5s  %5s  %5s  %s\n", "tick", "sample", "level", "class", "out", "step")
	for i, v := range samples {
		sample.Store(v)
		ctrl.Raise(irq.TimerCompare)
		lit, err := out.Read()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%4d  %6d  %5d  %5s  %5s  %t\n", i+1, v, pattern.Level(v), level, lit, stepped)
	}
	p := cell.Read(ctrl)
	fmt.Fprintf(w, "final %s (0x%02x)\n", p, p.Encode())
	return nil
}
