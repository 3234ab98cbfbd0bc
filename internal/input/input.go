// Package input latches the button port on every edge of the shared input
// line.
package input

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
	"github.com/coreman2200/funtimes-levelmeter/internal/shared"
)

// PortBits selects the whole 8-bit input port.
const PortBits gpio.GPIOValue = 0xFF

// Notifier is the input-edge handler.
type Notifier struct {
	Port    gpio.Group
	Mailbox *shared.InputMailbox
}

// Handle snapshots the port into the mailbox.
func (n Notifier) Handle(*irq.Frame) {
	v, err := n.Port.Read(PortBits)
	if err != nil {
		return
	}
	n.Mailbox.Post(uint8(v))
}

// DefaultPoll bounds each edge wait so cancellation is noticed.
const DefaultPoll = 100 * time.Millisecond

// Watcher raises ExternalInput on both edges of Line.
type Watcher struct {
	Line gpio.PinIn
	IRQ  *irq.Controller
	Poll time.Duration

	edges atomic.Uint64
}

// Arm configures the line with a pull-up and both-edge detection.
func (w *Watcher) Arm() error {
	if err := w.Line.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return errors.Wrapf(err, "input: arm %s", w.Line)
	}
	return nil
}

// Listen waits for edges until ctx is done. Arm must have succeeded.
func (w *Watcher) Listen(ctx context.Context) error {
	poll := w.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if w.Line.WaitForEdge(poll) {
			w.edges.Add(1)
			w.IRQ.Raise(irq.ExternalInput)
		}
	}
}

// Run arms the line and listens.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Arm(); err != nil {
		return err
	}
	log.Debug().Str("line", w.Line.String()).Msg("input edges armed")
	return w.Listen(ctx)
}

// Edges is the number of edges seen.
func (w *Watcher) Edges() uint64 { return w.edges.Load() }
