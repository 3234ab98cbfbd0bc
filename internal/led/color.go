package led

import (
	"image/color"

	"github.com/coreman2200/funtimes-levelmeter/internal/pattern"
)

// Lights is the strip length the mirror expects.
const Lights = pattern.Lights

// MaxBrightness caps the alpha channel when colours are flattened to RGB.
const MaxBrightness uint8 = 200

const (
	alphaOffset uint8 = 0x18
	greenOffset uint8 = 0x10
	redOffset   uint8 = 0x08
	blueOffset  uint8 = 0x0
)

// Color is a packed 0xAAGGRRBB value.
type Color uint32

func setcolor(c uint32, n uint8, off uint8) uint32 {
	var val uint32 = uint32(n) << off
	var mask uint32 = 0xFF << off
	return (c & (^mask)) | val
}

func getcolor(c uint32, off uint8) uint8 {
	var mask uint32 = 0xFF << off
	return uint8((c & mask) >> off)
}

// ARGB packs a colour.
func ARGB(a, r, g, b uint8) Color {
	var c uint32
	c = setcolor(c, a, alphaOffset)
	c = setcolor(c, r, redOffset)
	c = setcolor(c, g, greenOffset)
	c = setcolor(c, b, blueOffset)
	return Color(c)
}

func (c Color) A() uint8 { return getcolor(uint32(c), alphaOffset) }
func (c Color) R() uint8 { return getcolor(uint32(c), redOffset) }
func (c Color) G() uint8 { return getcolor(uint32(c), greenOffset) }
func (c Color) B() uint8 { return getcolor(uint32(c), blueOffset) }

// NRGBA flattens c, scaling by alpha capped at MaxBrightness.
func (c Color) NRGBA() color.NRGBA {
	a := uint32(c.A())
	if a > uint32(MaxBrightness) {
		a = uint32(MaxBrightness)
	}
	return color.NRGBA{
		R: uint8(uint32(c.R()) * a / 255),
		G: uint8(uint32(c.G()) * a / 255),
		B: uint8(uint32(c.B()) * a / 255),
		A: 255,
	}
}

// Palette colours light i when it is lit. Unlit lights are black.
type Palette [Lights]Color

// DefaultPalette runs green to red up the bar.
var DefaultPalette = Palette{
	ARGB(0xFF, 0x00, 0xFF, 0x00),
	ARGB(0xFF, 0x80, 0xFF, 0x00),
	ARGB(0xFF, 0xFF, 0xFF, 0x00),
	ARGB(0xFF, 0xFF, 0x80, 0x00),
	ARGB(0xFF, 0xFF, 0x00, 0x00),
}

// Frame renders m as an RGB frame.
func (p Palette) Frame(m pattern.Mask) []byte {
	out := make([]byte, 3*Lights)
	for i, on := range m.Bools() {
		if !on {
			continue
		}
		c := p[i].NRGBA()
		out[3*i], out[3*i+1], out[3*i+2] = c.R, c.G, c.B
	}
	return out
}
