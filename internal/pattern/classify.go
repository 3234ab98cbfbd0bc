package pattern

import (
	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
	"github.com/coreman2200/funtimes-levelmeter/internal/shared"
)

// Levels is the number of bands a sample is quantized into.
const Levels = 6

// thresholds[n] is the value a sample must exceed to reach level n+1.
var thresholds = [Levels - 1]uint16{170, 341, 511, 682, 852}

// Level quantizes a 10-bit sample. Values equal to a threshold stay in the
// lower band.
func Level(v uint16) int {
	n := 0
	for _, th := range thresholds {
		if v > th {
			n++
		}
	}
	return n
}

// LevelMask lights the lowest n lights.
func LevelMask(n int) Mask {
	if n <= 0 {
		return 0
	}
	if n > Lights {
		n = Lights
	}
	return Mask(uint8(1)<<uint(n) - 1)
}

// Classify maps a sample straight to its level mask.
func Classify(v uint16) Mask { return LevelMask(Level(v)) }

// Cell holds the live pattern. It has no lock of its own: every access goes
// through a Suppressor.
//
// Writers: the classifier and the animator, both on the timer tick.
type Cell struct {
	p Pattern
}

// NewCell returns a cell holding p.
func NewCell(p Pattern) *Cell { return &Cell{p: p} }

// Read returns the pattern inside s.Critical.
func (c *Cell) Read(s irq.Suppressor) (p Pattern) {
	s.Critical(func() { p = c.p })
	return p
}

// Update replaces the pattern with fn(old) inside s.Critical and returns the
// new value.
func (c *Cell) Update(s irq.Suppressor, fn func(Pattern) Pattern) (p Pattern) {
	s.Critical(func() {
		c.p = fn(c.p)
		p = c.p
	})
	return p
}

// Classifier rewrites the mask bits of the pattern from the latest sample.
type Classifier struct {
	Sample  *shared.SampleCell
	Pattern *Cell
}

// Update reads the sample and replaces only the mask; the mode is never
// touched. Both reads and the write happen in one critical section.
func (c Classifier) Update(s irq.Suppressor) Mask {
	var m Mask
	s.Critical(func() {
		m = Classify(c.Sample.Load())
		c.Pattern.p.Mask = m
	})
	return m
}
