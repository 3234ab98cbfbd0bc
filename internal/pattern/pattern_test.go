package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
	"github.com/coreman2200/funtimes-levelmeter/internal/port"
	"github.com/coreman2200/funtimes-levelmeter/internal/shared"
)

func mask(t *testing.T, s string) Mask {
	t.Helper()
	m, err := ParseMask(s)
	require.NoError(t, err)
	return m
}

func TestLevelBands(t *testing.T) {
	cases := []struct {
		v    uint16
		want int
	}{
		{0, 0}, {170, 0}, {171, 1}, {341, 1}, {342, 2},
		{511, 2}, {512, 3}, {682, 3}, {683, 4},
		{852, 4}, {853, 5}, {1023, 5},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Level(c.v), "sample %d", c.v)
	}
}

func TestLevelMaskLightsLowestBits(t *testing.T) {
	for n := 0; n < Levels; n++ {
		m := LevelMask(n)
		for i := 0; i < Lights; i++ {
			assert.Equal(t, i < n, m.Lit(i), "level %d light %d", n, i)
		}
	}
	assert.Equal(t, Mask(0), LevelMask(-1))
	assert.Equal(t, Mask(0b11111), LevelMask(9))
}

func TestSteps(t *testing.T) {
	cases := []struct {
		mode     Mode
		in, want string
	}{
		{ModeScrollLeft, "00001", "00010"},
		{ModeScrollLeft, "10000", "00001"},
		{ModeScrollLeft, "11111", "11111"},
		{ModeInvert, "01010", "10101"},
		{ModeInvert, "00000", "11111"},
		{ModeScrollRight, "00001", "10000"},
		{ModeScrollRight, "10100", "01010"},
		{ModeNone, "01101", "01101"},
	}
	for _, c := range cases {
		t.Run(c.mode.String()+"/"+c.in, func(t *testing.T) {
			assert.Equal(t, c.want, mask(t, c.in).Step(c.mode).String())
		})
	}
}

func TestParseMaskErrors(t *testing.T) {
	for _, s := range []string{"", "101010", "10201", "1x1", "+101", "-1"} {
		_, err := ParseMask(s)
		assert.Error(t, err, s)
	}
	m, err := ParseMask("0b101")
	require.NoError(t, err)
	assert.Equal(t, Mask(0b101), m)
	m, err = ParseMask("11111")
	require.NoError(t, err)
	assert.Equal(t, Mask(0b11111), m)
	m, err = ParseMask(" 00000 ")
	require.NoError(t, err)
	assert.Zero(t, m)
}

func TestBoolsRoundTrip(t *testing.T) {
	m := Mask(0b10110)
	assert.Equal(t, [Lights]bool{false, true, true, false, true}, m.Bools())
	assert.Equal(t, m, MaskFromBools(m.Bools()))
}

func TestEncodeDecode(t *testing.T) {
	assert.Equal(t, uint8(0b01000100), Pattern{Mode: ModeInvert, Mask: 0b00100}.Encode())
	assert.Equal(t, uint8(0b10000011), Pattern{Mode: ModeScrollLeft, Mask: 0b00011}.Encode())
	assert.Equal(t, uint8(0b00110000), Pattern{Mode: ModeScrollRight, Mask: 0b10000}.Encode())

	assert.Equal(t, Pattern{Mode: ModeInvert, Mask: 0b00100}, Decode(0b01000100))
	assert.Equal(t, Pattern{Mode: ModeNone, Mask: 0b00001}, Decode(0b11000001), "two mode bits")
	assert.Equal(t, "scroll-left/00011", Decode(0b10000011).String())
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeScrollLeft, ModeInvert, ModeScrollRight} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("sideways")
	assert.Error(t, err)
}

func TestClassifierPreservesMode(t *testing.T) {
	ctrl := irq.NewController()
	var sample shared.SampleCell
	cell := NewCell(Pattern{Mode: ModeScrollRight, Mask: 0b10101})
	c := Classifier{Sample: &sample, Pattern: cell}

	sample.Store(600)
	assert.Equal(t, Mask(0b00111), c.Update(ctrl))
	assert.Equal(t, Pattern{Mode: ModeScrollRight, Mask: 0b00111}, cell.Read(ctrl))
}

type recorder struct{ got []Mask }

func (r *recorder) Write(m Mask) error {
	r.got = append(r.got, m)
	return nil
}

func TestAnimatorAdvancesOncePerCycle(t *testing.T) {
	ctrl := irq.NewController()
	cell := NewCell(Pattern{Mode: ModeScrollLeft, Mask: 0b00001})
	out := &recorder{}
	a := &Animator{Period: 3, Pattern: cell, Out: out}

	var advanced []bool
	for i := 0; i < 9; i++ {
		_, ok := a.Tick(ctrl)
		advanced = append(advanced, ok)
		assert.LessOrEqual(t, a.Countdown(), a.Period)
	}
	assert.Equal(t, []bool{true, false, false, false, true, false, false, false, true}, advanced)
	assert.Equal(t, uint64(3), a.Steps())
	assert.Equal(t, []Mask{0b00010, 0b00100, 0b01000}, out.got)
	assert.Equal(t, Mask(0b01000), cell.Read(ctrl).Mask)
}

func TestAnimatorPeriodZeroStepsEveryTick(t *testing.T) {
	ctrl := irq.NewController()
	cell := NewCell(Pattern{Mode: ModeInvert, Mask: 0b00100})
	a := &Animator{Pattern: cell}

	for i := 0; i < 4; i++ {
		_, ok := a.Tick(ctrl)
		assert.True(t, ok)
		assert.Zero(t, a.Countdown())
	}
	assert.Equal(t, Mask(0b00100), cell.Read(ctrl).Mask)
}

func newOutput(t *testing.T) (Output, *port.Port, *port.Port) {
	t.Helper()
	lo, err := port.New("PORTG", port.SimPins("PG", 8)...)
	require.NoError(t, err)
	hi, err := port.New("PORTB", port.SimPins("PB", 8)...)
	require.NoError(t, err)
	return Output{Low: lo, High: hi}, lo, hi
}

func TestOutputPreservesOtherBits(t *testing.T) {
	o, lo, hi := newOutput(t)
	require.NoError(t, lo.Out(0b10101100, 0xFF))
	require.NoError(t, hi.Out(0b11001000, 0xFF))

	require.NoError(t, o.Write(0b10110))
	assert.Equal(t, uint8(0b10101110), lo.Latch())
	assert.Equal(t, uint8(0b11001101), hi.Latch())

	got, err := o.Read()
	require.NoError(t, err)
	assert.Equal(t, Mask(0b10110), got)
}

// Samples 0, 200, 900 with scroll-left and a step on every tick.
func TestEndToEndTicks(t *testing.T) {
	ctrl := irq.NewController()
	var sample shared.SampleCell
	cell := NewCell(Pattern{Mode: ModeScrollLeft})
	o, _, _ := newOutput(t)
	c := Classifier{Sample: &sample, Pattern: cell}
	a := &Animator{Pattern: cell, Out: o}

	ctrl.Register(irq.TimerCompare, func(f *irq.Frame) {
		c.Update(f)
		a.Tick(f)
	})

	var seen []string
	for _, v := range []uint16{0, 200, 900} {
		sample.Store(v)
		ctrl.Raise(irq.TimerCompare)
		m, err := o.Read()
		require.NoError(t, err)
		seen = append(seen, m.String())
	}
	assert.Equal(t, []string{"00000", "00010", "11111"}, seen)
	assert.Equal(t, ModeScrollLeft, cell.Read(ctrl).Mode)
}
