package app

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/coreman2200/funtimes-levelmeter/internal/adc"
	"github.com/coreman2200/funtimes-levelmeter/internal/config"
	"github.com/coreman2200/funtimes-levelmeter/internal/diagnostics"
	"github.com/coreman2200/funtimes-levelmeter/internal/lcd"
	"github.com/coreman2200/funtimes-levelmeter/internal/led"
	"github.com/coreman2200/funtimes-levelmeter/internal/port"
)

// ADCFreq is the SPI clock for the external converter.
const ADCFreq = physic.MegaHertz

// SimHW builds every device in memory.
func SimHW(cfg *config.Config) (HWConfig, error) {
	lo, err := port.New("PORTG", port.SimPins("PG", port.Width)...)
	if err != nil {
		return HWConfig{}, err
	}
	hi, err := port.New("PORTB", port.SimPins("PB", port.Width)...)
	if err != nil {
		return HWConfig{}, err
	}
	inPins := port.SimPins("PD", port.Width)
	in, err := port.New("PIND", inPins...)
	if err != nil {
		return HWConfig{}, err
	}
	return HWConfig{
		LightsLow:  lo,
		LightsHigh: hi,
		Inputs:     in,
		EdgeLine:   inPins[0],
		ADC:        simADC(cfg),
		Display:    lcd.NewBuffer(cfg.Display.Rows, cfg.Display.Cols),
	}, nil
}

func simADC(cfg *config.Config) analog.PinADC {
	if len(cfg.ADC.Script) > 0 {
		vals := make([]uint16, len(cfg.ADC.Script))
		for i, v := range cfg.ADC.Script {
			vals[i] = uint16(v)
		}
		return adc.NewScript(vals...)
	}
	return adc.NewSweep(cfg.ADC.SimStep)
}

// OpenHW opens the configured devices. host.Init must have run. The light
// and input ports are required; the converter and display fall back to their
// simulations with a diagnostic.
func OpenHW(cfg *config.Config) (HWConfig, []diagnostics.Diagnostic, error) {
	var diags []diagnostics.Diagnostic
	lo, err := port.Open("lights-low", cfg.Pins.LightsLow...)
	if err != nil {
		return HWConfig{}, nil, err
	}
	hi, err := port.Open("lights-high", cfg.Pins.LightsHigh...)
	if err != nil {
		return HWConfig{}, nil, err
	}
	in, err := port.Open("inputs", cfg.Pins.Inputs...)
	if err != nil {
		return HWConfig{}, nil, err
	}
	hw := HWConfig{LightsLow: lo, LightsHigh: hi, Inputs: in}
	if cfg.Pins.EdgeLine != "" {
		if p := gpioreg.ByName(cfg.Pins.EdgeLine); p != nil {
			hw.EdgeLine = p
		} else {
			diags = append(diags, diagnostics.Fallback("INPUT_EDGE_MISSING", "edge line "+cfg.Pins.EdgeLine, nil))
		}
	}

	switch cfg.ADC.Device {
	case "mcp3008":
		if p, err := openMCP3008(cfg.ADC); err != nil {
			diags = append(diags, diagnostics.Fallback("ADC_FALLBACK", "mcp3008", err))
			hw.ADC = simADC(cfg)
		} else {
			hw.ADC = p
		}
	default:
		hw.ADC = simADC(cfg)
	}

	switch cfg.Display.Device {
	case "hd44780":
		if d, err := openHD44780(cfg.Display); err != nil {
			diags = append(diags, diagnostics.Fallback("LCD_FALLBACK", "hd44780", err))
			hw.Display = lcd.NewBuffer(cfg.Display.Rows, cfg.Display.Cols)
		} else {
			hw.Display = d
		}
	default:
		hw.Display = lcd.NewBuffer(cfg.Display.Rows, cfg.Display.Cols)
	}
	return hw, diags, nil
}

// OpenMirror opens the LED strip, or the console when there is no SPI port.
func OpenMirror(cfg *config.Config) (led.Driver, []diagnostics.Diagnostic, error) {
	d, onStrip, err := led.Open(led.Opts{Port: cfg.Mirror.SPI, Pixels: led.Lights})
	if err != nil {
		return nil, nil, err
	}
	if !onStrip {
		return d, []diagnostics.Diagnostic{diagnostics.Fallback("MIRROR_CONSOLE", "LED strip", nil)}, nil
	}
	return d, nil, nil
}

func openMCP3008(c config.ADC) (analog.PinADC, error) {
	p, err := spireg.Open(c.SPI)
	if err != nil {
		return nil, errors.Wrap(err, "open spi")
	}
	vref := physic.ElectricPotential(c.VRef * float64(physic.Volt))
	d, err := adc.OpenMCP3008(p, ADCFreq, vref)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	pin, err := d.Pin(c.Channel)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	return pin, nil
}

func openHD44780(c config.Display) (display.TextDisplay, error) {
	byName := func(n string) (gpio.PinOut, error) {
		p := gpioreg.ByName(n)
		if p == nil {
			return nil, errors.Errorf("no gpio named %q", n)
		}
		return p, nil
	}
	var pins lcd.Pins
	var err error
	if pins.RS, err = byName(c.RS); err != nil {
		return nil, err
	}
	if pins.E, err = byName(c.E); err != nil {
		return nil, err
	}
	if len(c.Data) != len(pins.D) {
		return nil, errors.Errorf("want %d data pins, got %d", len(pins.D), len(c.Data))
	}
	for i, n := range c.Data {
		if pins.D[i], err = byName(n); err != nil {
			return nil, err
		}
	}
	return lcd.NewHD44780(pins, c.Rows, c.Cols, nil)
}
