// Package shared holds the cells that cross event contexts. Each cell has a
// single writer; readers go through an accessor that names the suppression
// they rely on.
package shared

import (
	"sync/atomic"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
)

// SampleMax is the largest value a 10-bit conversion produces.
const SampleMax = 1023

// SampleCell is the latest completed conversion. The two halves are stored
// separately, low byte first, so a read that is not suppressed can observe a
// low byte from one conversion and a high byte from the next.
//
// Writer: the conversion-complete handler.
type SampleCell struct {
	lo atomic.Uint32
	hi atomic.Uint32
}

// Store publishes v. Only the conversion-complete handler calls it.
func (c *SampleCell) Store(v uint16) {
	c.lo.Store(uint32(v & 0xff))
	c.hi.Store(uint32(v >> 8))
}

// Load combines the two halves. It is tear-free only while the writer is held
// off, either inside a handler, inside a critical section or with the
// conversion source masked.
func (c *SampleCell) Load() uint16 {
	return uint16(c.lo.Load()) | uint16(c.hi.Load())<<8
}

// Read loads the sample inside s.Critical.
func (c *SampleCell) Read(s irq.Suppressor) (v uint16) {
	s.Critical(func() { v = c.Load() })
	return v
}

// InputMailbox is a single-slot mailbox for input-line snapshots. A post
// overwrites any snapshot that has not been taken yet.
//
// Writer: the input-edge handler. Consumer: the foreground loop.
type InputMailbox struct {
	snapshot    atomic.Uint32
	pending     atomic.Bool
	posts       atomic.Uint64
	overwritten atomic.Uint64
}

// Post latches b and marks the mailbox pending. Handler-only.
func (m *InputMailbox) Post(b uint8) {
	m.snapshot.Store(uint32(b))
	if m.pending.Swap(true) {
		m.overwritten.Add(1)
	}
	m.posts.Add(1)
}

// Pending reports whether a snapshot is waiting.
func (m *InputMailbox) Pending() bool { return m.pending.Load() }

// Take drains the mailbox inside s.Critical. ok is false when nothing was
// pending.
func (m *InputMailbox) Take(s irq.Suppressor) (b uint8, ok bool) {
	s.Critical(func() {
		if m.pending.Swap(false) {
			b, ok = uint8(m.snapshot.Load()), true
		}
	})
	return b, ok
}

// Posts is the number of snapshots ever posted.
func (m *InputMailbox) Posts() uint64 { return m.posts.Load() }

// Overwritten is the number of snapshots replaced before they were taken.
func (m *InputMailbox) Overwritten() uint64 { return m.overwritten.Load() }
