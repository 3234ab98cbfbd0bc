// Package irq models the interrupt sources of the control loop as registered
// callbacks dispatched by a Controller.
//
// Holding the controller's lock is the equivalent of running with the global
// interrupt flag cleared: no handler can start until it is released. Every
// handler runs with that lock held, so handlers never nest or interleave.
package irq

import (
	"fmt"
	"sync"
)

// Source identifies one event context.
type Source uint8

const (
	ADCComplete Source = iota
	TimerCompare
	ExternalInput

	numSources
)

func (s Source) String() string {
	switch s {
	case ADCComplete:
		return "adc"
	case TimerCompare:
		return "timer"
	case ExternalInput:
		return "input"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// Sources lists every dispatchable source.
func Sources() []Source {
	return []Source{ADCComplete, TimerCompare, ExternalInput}
}

// Handler is the body of an interrupt. It must return promptly and must not
// block, touch the display or format text.
type Handler func(f *Frame)

// Suppressor runs fn with every interrupt source held off.
type Suppressor interface {
	Critical(fn func())
}

// Frame is handed to a running handler. Suppression is already in effect
// while a frame is live, so Critical only runs fn.
type Frame struct {
	src Source
}

// Source reports which event is being serviced.
func (f *Frame) Source() Source { return f.src }

// Critical implements Suppressor.
func (f *Frame) Critical(fn func()) { fn() }

// Stats counts what happened to one source.
type Stats struct {
	Dispatched uint64 // handler ran
	Deferred   uint64 // raised while masked
	Dropped    uint64 // raised while an earlier deferred event was still pending
}

// Controller owns the global and per-source enables.
type Controller struct {
	mu       sync.Mutex
	handlers [numSources]Handler
	enabled  [numSources]bool
	pending  [numSources]bool
	stats    [numSources]Stats
}

// NewController returns a controller with every source enabled and no
// handlers bound.
func NewController() *Controller {
	c := &Controller{}
	for i := range c.enabled {
		c.enabled[i] = true
	}
	return c
}

// Register binds h to src, replacing any earlier handler.
func (c *Controller) Register(src Source, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[src] = h
}

// Raise signals that src fired. It blocks while a critical section or another
// handler is running. A masked source latches a single pending event instead
// of dispatching.
func (c *Controller) Raise(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled[src] {
		if c.pending[src] {
			c.stats[src].Dropped++
		}
		c.pending[src] = true
		c.stats[src].Deferred++
		return
	}
	c.dispatch(src)
}

// Mask disables src. Once Mask returns no handler for src is running and none
// will start until Unmask.
func (c *Controller) Mask(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled[src] = false
}

// Unmask re-enables src and services a latched event, if any, exactly once.
func (c *Controller) Unmask(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled[src] = true
	if c.pending[src] {
		c.pending[src] = false
		c.dispatch(src)
	}
}

// Enabled reports whether src is currently unmasked.
func (c *Controller) Enabled(src Source) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled[src]
}

// Critical runs fn with every source held off. It must not be called from a
// handler; use the handler's Frame instead.
func (c *Controller) Critical(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Stats returns a copy of the counters for src.
func (c *Controller) Stats(src Source) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats[src]
}

// dispatch runs the handler for src. The caller must hold c.mu.
func (c *Controller) dispatch(src Source) {
	h := c.handlers[src]
	if h == nil {
		return
	}
	c.stats[src].Dispatched++
	h(&Frame{src: src})
}
