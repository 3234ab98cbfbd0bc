// Package led mirrors the five indicator lights onto an addressable LED strip,
// or onto the console when no strip is attached.
package led

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes an RGB frame to hardware. len(rgb) must be 3*N.
	Write(rgb []byte) error
	// Close releases resources.
	Close() error
}

// DrawerDriver feeds RGB frames to a display.Drawer, one pixel per LED.
type DrawerDriver struct {
	Drawer display.Drawer
	closer spi.PortCloser
	img    *image.NRGBA
}

// NewDrawerDriver wraps d. Frames are drawn at d's bounds.
func NewDrawerDriver(d display.Drawer) *DrawerDriver {
	return &DrawerDriver{Drawer: d, img: image.NewNRGBA(d.Bounds())}
}

// Write implements Driver.
func (w *DrawerDriver) Write(rgb []byte) error {
	b := w.img.Bounds()
	if len(rgb) != 3*b.Dx() {
		return errors.Errorf("led: frame of %d bytes for %d pixels", len(rgb), b.Dx())
	}
	for i := 0; i < b.Dx(); i++ {
		w.img.SetNRGBA(b.Min.X+i, b.Min.Y, color.NRGBA{R: rgb[3*i], G: rgb[3*i+1], B: rgb[3*i+2], A: 255})
	}
	if err := w.Drawer.Draw(b, w.img, image.Point{}); err != nil {
		return errors.Wrap(err, "led: draw")
	}
	return nil
}

// Close implements Driver. It halts the drawer and releases its port.
func (w *DrawerDriver) Close() error {
	err := w.Drawer.Halt()
	if w.closer != nil {
		err = multierr.Append(err, w.closer.Close())
	}
	return err
}

// Opts selects the strip.
type Opts struct {
	Port   string           // spireg name, "" for the first port
	Pixels int              // strip length
	Freq   physic.Frequency // NRZ bit rate
}

// DefaultFreq suits WS2812-class strips.
const DefaultFreq = 2500 * physic.KiloHertz

// Open returns an NRZ strip on the SPI port. When no port can be opened it
// falls back to printing the strip on the console; the bool reports whether
// real hardware is driven. host.Init must have run.
func Open(o Opts) (Driver, bool, error) {
	if o.Pixels <= 0 {
		o.Pixels = Lights
	}
	if o.Freq == 0 {
		o.Freq = DefaultFreq
	}
	p, err := spireg.Open(o.Port)
	if err != nil {
		log.Warn().Err(err).Str("port", o.Port).Msg("no SPI port for the LED mirror; printing at the console")
		return NewDrawerDriver(screen.New(o.Pixels)), false, nil
	}
	d, err := NewNRZ(p, o)
	if err != nil {
		_ = p.Close()
		return nil, false, err
	}
	d.closer = p
	return d, true, nil
}

// NewNRZ drives an NRZ strip on an open SPI port.
func NewNRZ(p spi.Port, o Opts) (*DrawerDriver, error) {
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: o.Pixels,
		Channels:  3,
		Freq:      o.Freq,
	})
	if err != nil {
		return nil, errors.Wrap(err, "led: nrzled")
	}
	if err := dev.Halt(); err != nil {
		return nil, errors.Wrap(err, "led: blank strip")
	}
	return NewDrawerDriver(dev), nil
}
