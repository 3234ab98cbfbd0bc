package app

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-levelmeter/internal/adc"
	"github.com/coreman2200/funtimes-levelmeter/internal/config"
	"github.com/coreman2200/funtimes-levelmeter/internal/diagnostics"
	"github.com/coreman2200/funtimes-levelmeter/internal/input"
	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
	"github.com/coreman2200/funtimes-levelmeter/internal/lcd"
	"github.com/coreman2200/funtimes-levelmeter/internal/led"
	"github.com/coreman2200/funtimes-levelmeter/internal/pattern"
	"github.com/coreman2200/funtimes-levelmeter/internal/refresh"
	"github.com/coreman2200/funtimes-levelmeter/internal/scheduler"
	"github.com/coreman2200/funtimes-levelmeter/internal/shared"
)

// HWConfig is the set of devices the core drives.
type HWConfig struct {
	LightsLow  gpio.Group
	LightsHigh gpio.Group
	Inputs     gpio.Group // optional
	EdgeLine   gpio.PinIn // optional; no input edges without it
	ADC        analog.PinADC
	Display    display.TextDisplay
	Mirror     led.Driver // optional
	Clock      clockwork.Clock
}

// Core is the wired meter: the shared cells, their handlers and the event
// sources that feed them.
type Core struct {
	IRQ        *irq.Controller
	Sample     *shared.SampleCell
	Pattern    *pattern.Cell
	Inputs     *shared.InputMailbox
	Output     pattern.Output
	Classifier pattern.Classifier
	Animator   *pattern.Animator
	Timer      *scheduler.Timer
	Converter  *adc.Converter
	Watcher    *input.Watcher
	Refresh    *refresh.Loop
	Mirror     *led.Looper

	Diagnostics []diagnostics.Diagnostic

	hw     HWConfig
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// InitCore builds and wires every component. Nothing runs until Run.
func InitCore(ctx context.Context, hw HWConfig, cfg *config.Config) (*Core, error) {
	if hw.LightsLow == nil || hw.LightsHigh == nil || hw.ADC == nil || hw.Display == nil {
		return nil, errors.New("app: lights, adc and display are required")
	}
	initial, err := cfg.InitialPattern()
	if err != nil {
		return nil, errors.Wrap(err, "app: initial pattern")
	}
	clk := hw.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	c := &Core{
		IRQ:     irq.NewController(),
		Sample:  &shared.SampleCell{},
		Pattern: pattern.NewCell(initial),
		Inputs:  &shared.InputMailbox{},
		Output:  pattern.Output{Low: hw.LightsLow, High: hw.LightsHigh},
		hw:      hw,
	}

	// 1) Conversion-complete: latched result -> shared sample.
	regs := &adc.Registers{}
	c.IRQ.Register(irq.ADCComplete, adc.Sampler{Regs: regs, Sample: c.Sample}.Handle)
	c.Converter = &adc.Converter{
		Pin:    hw.ADC,
		Regs:   regs,
		IRQ:    c.IRQ,
		Period: adc.ConversionPeriod(cfg.Clock.Hz, cfg.ADC.Prescaler),
		Clock:  clk,
	}

	// 2) Timer tick: classify, then animate.
	c.Classifier = pattern.Classifier{Sample: c.Sample, Pattern: c.Pattern}
	c.Animator = &pattern.Animator{Period: cfg.Pattern.Period, Pattern: c.Pattern, Out: c.Output}
	c.IRQ.Register(irq.TimerCompare, func(f *irq.Frame) {
		c.Classifier.Update(f)
		c.Animator.Tick(f)
	})
	c.Timer = &scheduler.Timer{
		IRQ:    c.IRQ,
		Period: scheduler.Period(cfg.Clock.Hz, cfg.Timer.Prescaler, cfg.Timer.Compare),
		Clock:  clk,
	}
	c.Diagnostics = append(c.Diagnostics, diagnostics.TimerPeriod(c.Timer.Period))

	// 3) Input edges: port snapshot -> mailbox.
	if hw.Inputs != nil && hw.EdgeLine != nil {
		c.IRQ.Register(irq.ExternalInput, input.Notifier{Port: hw.Inputs, Mailbox: c.Inputs}.Handle)
		c.Watcher = &input.Watcher{Line: hw.EdgeLine, IRQ: c.IRQ}
	}

	// 4) Foreground display loop.
	if err := lcd.Greet(hw.Display); err != nil {
		return nil, err
	}
	c.Refresh = &refresh.Loop{
		IRQ:      c.IRQ,
		Sample:   c.Sample,
		Inputs:   c.Inputs,
		Display:  hw.Display,
		Field:    refresh.Field{Row: cfg.Display.FieldRow, Col: cfg.Display.FieldCol, Width: cfg.Display.FieldWidth},
		Interval: time.Duration(cfg.Display.IntervalMs) * time.Millisecond,
		Clock:    clk,
	}

	// 5) Optional strip mirror of the light ports.
	if hw.Mirror != nil {
		c.Mirror = &led.Looper{Source: c.Output, Driver: hw.Mirror, Palette: led.DefaultPalette, FPS: cfg.Mirror.FPS, Clock: clk}
	}

	if err := c.Output.Write(initial.Mask); err != nil {
		return nil, errors.Wrap(err, "app: drive initial pattern")
	}
	log.Info().Str("pattern", initial.String()).Uint("period", cfg.Pattern.Period).
		Dur("tick", c.Timer.Period).Dur("conversion", c.Converter.Period).Msg("core ready")
	return c, nil
}

// Run starts the event sources and runs the display loop in the foreground
// until ctx is done. Cancellation is not an error.
func (c *Core) Run(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	defer c.cancel()

	var mu sync.Mutex
	var errs error
	goRun := func(name string, run func(context.Context) error) {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("component", name).Msg("stopped")
				mu.Lock()
				errs = multierr.Append(errs, errors.Wrap(err, name))
				mu.Unlock()
				c.cancel()
			}
		}()
	}

	if c.Watcher != nil {
		goRun("input", c.Watcher.Run)
	}
	goRun("timer", c.Timer.Run)
	goRun("adc", c.Converter.Run)
	if c.Mirror != nil {
		goRun("mirror", c.Mirror.Run)
	}

	err := c.Refresh.Run(ctx)
	c.cancel()
	c.wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		errs = multierr.Append(errs, errors.Wrap(err, "refresh"))
	}
	return errs
}

// Close releases every device and logs the interrupt summary.
func (c *Core) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	diagnostics.Emit(diagnostics.InterruptStats(c.IRQ))

	var err error
	if c.hw.Mirror != nil {
		err = multierr.Append(err, c.hw.Mirror.Close())
	}
	for _, r := range []any{c.hw.Display, c.hw.ADC, c.hw.Inputs, c.hw.LightsLow, c.hw.LightsHigh} {
		if h, ok := r.(conn.Resource); ok && h != nil {
			err = multierr.Append(err, h.Halt())
		}
	}
	return err
}
