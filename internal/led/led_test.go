package led

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"strconv"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/display/displaytest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/funtimes-levelmeter/internal/pattern"
)

var argbCases = []struct {
	A, R, G, B uint8
	Expect     uint32
}{
	{0xFF, 0x22, 0x11, 0x33, 0xFF112233},
	{0x00, 0x44, 0x2A, 0x34, 0x002A4434},
	{0xAB, 0x88, 0x3B, 0x35, 0xAB3B8835},
}

func TestARGBPacking(t *testing.T) {
	for k, v := range argbCases {
		t.Run("case"+strconv.Itoa(k), func(t *testing.T) {
			c := ARGB(v.A, v.R, v.G, v.B)
			assert.Equal(t, v.Expect, uint32(c))
			assert.Equal(t, v.A, c.A())
			assert.Equal(t, v.R, c.R())
			assert.Equal(t, v.G, c.G())
			assert.Equal(t, v.B, c.B())
		})
	}
}

func TestNRGBACapsBrightness(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 200, A: 255}, ARGB(0xFF, 0xFF, 0, 0).NRGBA())
	assert.Equal(t, color.NRGBA{G: 100, A: 255}, ARGB(100, 0, 0xFF, 0).NRGBA())
}

func TestPaletteFrame(t *testing.T) {
	f := DefaultPalette.Frame(0b00101)
	require.Len(t, f, 3*Lights)
	assert.NotZero(t, f[1], "light 0 green")
	assert.Equal(t, []byte{0, 0, 0}, f[3:6], "light 1 off")
	assert.NotZero(t, f[6]+f[7], "light 2 lit")
	assert.Equal(t, make([]byte, 6), f[9:])
}

func TestDrawerDriver(t *testing.T) {
	d := &displaytest.Drawer{Img: image.NewNRGBA(image.Rect(0, 0, Lights, 1))}
	w := NewDrawerDriver(d)

	require.NoError(t, w.Write(DefaultPalette.Frame(0b10000)))
	assert.Equal(t, DefaultPalette[4].NRGBA(), d.Img.NRGBAAt(4, 0))
	assert.Equal(t, color.NRGBA{A: 255}, d.Img.NRGBAAt(0, 0))

	assert.Error(t, w.Write([]byte{1, 2, 3}))
	assert.NoError(t, w.Close())
}

func TestNRZStrip(t *testing.T) {
	buf := bytes.Buffer{}
	w, err := NewNRZ(spitest.NewRecordRaw(&buf), Opts{Pixels: Lights, Freq: DefaultFreq})
	require.NoError(t, err)
	n := buf.Len()

	require.NoError(t, w.Write(DefaultPalette.Frame(0b11111)))
	assert.Greater(t, buf.Len(), n)
}

type fakeSource struct{ m pattern.Mask }

func (f *fakeSource) Read() (pattern.Mask, error) { return f.m, nil }

type recordDriver struct{ frames [][]byte }

func (r *recordDriver) Write(rgb []byte) error {
	r.frames = append(r.frames, append([]byte(nil), rgb...))
	return nil
}

func (r *recordDriver) Close() error { return nil }

func TestLooperDrawsOnChange(t *testing.T) {
	src := &fakeSource{m: 0b00001}
	drv := &recordDriver{}
	l := &Looper{Source: src, Driver: drv, Palette: DefaultPalette}

	for _, m := range []pattern.Mask{0b00001, 0b00001, 0b00011, 0b00011, 0b00001} {
		src.m = m
		_, err := l.Refresh()
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(3), l.Frames())
	assert.Len(t, drv.frames, 3)
}

func TestLooperRun(t *testing.T) {
	clk := clockwork.NewFakeClock()
	drv := &recordDriver{}
	l := &Looper{Source: &fakeSource{m: 0b11111}, Driver: drv, Palette: DefaultPalette, FPS: 10, Clock: clk}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	clk.Advance(100 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
