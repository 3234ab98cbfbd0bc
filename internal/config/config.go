package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/funtimes-levelmeter/internal/pattern"
)

type Clock struct {
	Hz uint32 `yaml:"hz"` // CPU clock feeding the timer and converter
}

type Timer struct {
	Prescaler uint32 `yaml:"prescaler"`
	Compare   uint32 `yaml:"compare"`
}

type ADC struct {
	Prescaler uint32  `yaml:"prescaler"`
	Device    string  `yaml:"device"`  // "sim" | "mcp3008"
	SPI       string  `yaml:"spi"`     // spireg name
	Channel   int     `yaml:"channel"` // mcp3008 input
	VRef      float64 `yaml:"vref"`    // volts
	SimStep   int32   `yaml:"sim_step"`
	Script    []int   `yaml:"script,omitempty"`
}

type Pattern struct {
	Mode   string `yaml:"mode"`
	Mask   string `yaml:"mask"` // binary, most significant light first
	Period uint   `yaml:"period"`
}

type Display struct {
	Device     string   `yaml:"device"` // "buffer" | "hd44780"
	Rows       int      `yaml:"rows"`
	Cols       int      `yaml:"cols"`
	FieldRow   int      `yaml:"field_row"`
	FieldCol   int      `yaml:"field_col"`
	FieldWidth int      `yaml:"field_width"`
	IntervalMs int      `yaml:"interval_ms"` // 0 spins
	RS         string   `yaml:"rs,omitempty"`
	E          string   `yaml:"e,omitempty"`
	Data       []string `yaml:"data,omitempty"` // D4..D7
}

type Pins struct {
	LightsLow  []string `yaml:"lights_low,omitempty"`  // port carrying lights 0-1 on bits 0-1
	LightsHigh []string `yaml:"lights_high,omitempty"` // port carrying lights 2-4 on bits 0-2
	Inputs     []string `yaml:"inputs,omitempty"`      // 8-bit button port
	EdgeLine   string   `yaml:"edge_line,omitempty"`   // shared both-edge interrupt line
}

type Mirror struct {
	Enabled bool   `yaml:"enabled"`
	SPI     string `yaml:"spi"`
	FPS     int    `yaml:"fps"`
}

type Config struct {
	Driver   string  `yaml:"driver"` // "hw" | "sim"
	LogLevel string  `yaml:"log_level"`
	Clock    Clock   `yaml:"clock"`
	Timer    Timer   `yaml:"timer"`
	ADC      ADC     `yaml:"adc"`
	Pattern  Pattern `yaml:"pattern"`
	Display  Display `yaml:"display"`
	Pins     Pins    `yaml:"pins"`
	Mirror   Mirror  `yaml:"mirror"`
}

// Default is the stock board: 8 MHz clock, ~5 ms tick, free-running
// converter at clock/128, lights start inverting 00100 every 101 ticks.
func Default() *Config {
	return &Config{
		Driver:   "sim",
		LogLevel: "info",
		Clock:    Clock{Hz: 8_000_000},
		Timer:    Timer{Prescaler: 256, Compare: 155},
		ADC: ADC{
			Prescaler: 128,
			Device:    "sim",
			VRef:      5,
			SimStep:   8,
		},
		Pattern: Pattern{Mode: "invert", Mask: "00100", Period: 100},
		Display: Display{
			Device:     "buffer",
			Rows:       2,
			Cols:       16,
			FieldRow:   1,
			FieldCol:   5,
			FieldWidth: 6,
		},
		Mirror: Mirror{FPS: 30},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: read")
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "config: marshal")
	}
	return os.WriteFile(path, b, 0644)
}

// InitialPattern parses the pattern section.
func (c *Config) InitialPattern() (pattern.Pattern, error) {
	mode, err := pattern.ParseMode(c.Pattern.Mode)
	if err != nil {
		return pattern.Pattern{}, err
	}
	m, err := pattern.ParseMask(c.Pattern.Mask)
	if err != nil {
		return pattern.Pattern{}, err
	}
	return pattern.Pattern{Mode: mode, Mask: m}, nil
}

// Validate reports every out-of-range setting.
func (c *Config) Validate() error {
	var err error
	if c.Driver != "hw" && c.Driver != "sim" {
		err = multierr.Append(err, errors.Errorf("driver %q: want hw or sim", c.Driver))
	}
	if c.Clock.Hz == 0 {
		err = multierr.Append(err, errors.New("clock.hz must be positive"))
	}
	if c.Timer.Prescaler == 0 {
		err = multierr.Append(err, errors.New("timer.prescaler must be positive"))
	}
	if c.ADC.Prescaler == 0 {
		err = multierr.Append(err, errors.New("adc.prescaler must be positive"))
	}
	switch c.ADC.Device {
	case "sim", "mcp3008":
	default:
		err = multierr.Append(err, errors.Errorf("adc.device %q: want sim or mcp3008", c.ADC.Device))
	}
	if c.ADC.Channel < 0 || c.ADC.Channel > 7 {
		err = multierr.Append(err, errors.Errorf("adc.channel %d out of range", c.ADC.Channel))
	}
	for _, v := range c.ADC.Script {
		if v < 0 || v > 1023 {
			err = multierr.Append(err, errors.Errorf("adc.script value %d outside 0..1023", v))
			break
		}
	}
	if _, e := c.InitialPattern(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "pattern"))
	}
	switch c.Display.Device {
	case "buffer", "hd44780":
	default:
		err = multierr.Append(err, errors.Errorf("display.device %q: want buffer or hd44780", c.Display.Device))
	}
	d := c.Display
	if d.Rows <= 0 || d.Cols <= 0 {
		err = multierr.Append(err, errors.Errorf("display %dx%d", d.Rows, d.Cols))
	} else if d.FieldRow < 0 || d.FieldRow >= d.Rows || d.FieldCol < 0 || d.FieldCol+d.FieldWidth > d.Cols {
		err = multierr.Append(err, errors.Errorf("display field (%d,%d)+%d outside %dx%d", d.FieldRow, d.FieldCol, d.FieldWidth, d.Rows, d.Cols))
	}
	if d.FieldWidth < 4 {
		err = multierr.Append(err, errors.Errorf("display.field_width %d cannot hold 1023", d.FieldWidth))
	}
	if d.IntervalMs < 0 {
		err = multierr.Append(err, errors.New("display.interval_ms must not be negative"))
	}
	if c.Driver == "hw" {
		if len(c.Pins.LightsLow) != 2 || len(c.Pins.LightsHigh) != 3 {
			err = multierr.Append(err, errors.New("pins: want 2 low and 3 high light pins"))
		}
		if n := len(c.Pins.Inputs); n == 0 || n > 8 {
			err = multierr.Append(err, errors.Errorf("pins.inputs: want 1..8, got %d", n))
		}
		if c.Display.Device == "hd44780" && (c.Display.RS == "" || c.Display.E == "" || len(c.Display.Data) != 4) {
			err = multierr.Append(err, errors.New("display: hd44780 needs rs, e and four data pins"))
		}
	}
	return err
}
