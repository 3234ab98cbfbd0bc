// Package pattern derives the five-light level pattern from a sample and
// animates it.
package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// Lights is the number of indicator lights.
const Lights = 5

// Register layout of the packed pattern byte.
const (
	MaskBits       uint8 = 0b00011111
	ModeBits       uint8 = 0b11100000
	bitScrollLeft  uint8 = 0b10000000
	bitInvert      uint8 = 0b01000000
	bitScrollRight uint8 = 0b00100000
	carryBit       uint8 = 0b00100000
)

// Mode selects how the mask moves on each animation step.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeScrollLeft
	ModeInvert
	ModeScrollRight
)

func (m Mode) String() string {
	switch m {
	case ModeScrollLeft:
		return "scroll-left"
	case ModeInvert:
		return "invert"
	case ModeScrollRight:
		return "scroll-right"
	default:
		return "none"
	}
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ModeNone, nil
	case "scroll-left", "left":
		return ModeScrollLeft, nil
	case "invert":
		return ModeInvert, nil
	case "scroll-right", "right":
		return ModeScrollRight, nil
	}
	return ModeNone, fmt.Errorf("unknown animation mode %q", s)
}

// Mask is the set of lit lights, bit 0 = first light.
type Mask uint8

// ParseMask reads a binary string such as "00100", most significant light
// first.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0b")
	if len(s) == 0 || len(s) > Lights {
		return 0, fmt.Errorf("mask %q: want 1..%d binary digits", s, Lights)
	}
	m, err := strconv.ParseUint(s, 2, 8)
	if err != nil {
		return 0, fmt.Errorf("mask %q: not binary", s)
	}
	return Mask(m), nil
}

// Lit reports whether light i is on.
func (m Mask) Lit(i int) bool {
	if i < 0 || i >= Lights {
		return false
	}
	return uint8(m)&(1<<uint(i)) != 0
}

// Bools expands the mask, index 0 = bit 0.
func (m Mask) Bools() [Lights]bool {
	var b [Lights]bool
	for i := range b {
		b[i] = m.Lit(i)
	}
	return b
}

// MaskFromBools packs b back into a mask.
func MaskFromBools(b [Lights]bool) Mask {
	var m uint8
	for i, on := range b {
		if on {
			m |= 1 << uint(i)
		}
	}
	return Mask(m)
}

func (m Mask) String() string {
	return fmt.Sprintf("%05b", uint8(m)&MaskBits)
}

// ScrollLeft shifts every light up by one; the top light wraps to bit 0.
func (m Mask) ScrollLeft() Mask {
	t := (uint8(m) & MaskBits) << 1
	if t&carryBit != 0 {
		t |= 0b00000001
		t &^= carryBit
	}
	return Mask(t)
}

// Invert is the five-bit complement.
func (m Mask) Invert() Mask {
	return Mask(^uint8(m) & MaskBits)
}

// ScrollRight shifts every light down by one; bit 0 wraps to the top light.
func (m Mask) ScrollRight() Mask {
	t := uint8(m) & MaskBits
	if t&0b00000001 != 0 {
		t |= carryBit
	}
	return Mask(t >> 1)
}

// Step applies one animation step of mode.
func (m Mask) Step(mode Mode) Mask {
	switch mode {
	case ModeScrollLeft:
		return m.ScrollLeft()
	case ModeInvert:
		return m.Invert()
	case ModeScrollRight:
		return m.ScrollRight()
	default:
		return m
	}
}

// Pattern is the tagged form of the packed light byte.
type Pattern struct {
	Mode Mode
	Mask Mask
}

// Encode packs p into the register layout.
func (p Pattern) Encode() uint8 {
	b := uint8(p.Mask) & MaskBits
	switch p.Mode {
	case ModeScrollLeft:
		b |= bitScrollLeft
	case ModeInvert:
		b |= bitInvert
	case ModeScrollRight:
		b |= bitScrollRight
	}
	return b
}

// Decode unpacks a register byte. Mode bits that are not one-hot select
// ModeNone.
func Decode(b uint8) Pattern {
	p := Pattern{Mask: Mask(b & MaskBits)}
	switch b & ModeBits {
	case bitScrollLeft:
		p.Mode = ModeScrollLeft
	case bitInvert:
		p.Mode = ModeInvert
	case bitScrollRight:
		p.Mode = ModeScrollRight
	}
	return p
}

func (p Pattern) String() string {
	return p.Mode.String() + "/" + p.Mask.String()
}
