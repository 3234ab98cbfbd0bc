package diagnostics

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
)

func TestTimerPeriod(t *testing.T) {
	d := TimerPeriod(4992 * time.Microsecond)
	assert.Equal(t, Info, d.Severity)
	assert.Equal(t, "TIMER_PERIOD", d.Code)

	d = TimerPeriod(8 * time.Millisecond)
	assert.Equal(t, Warn, d.Severity)
	assert.NotEmpty(t, d.SuggestedFixes)
}

func TestFallback(t *testing.T) {
	d := Fallback("ADC_FALLBACK", "mcp3008", errors.New("no spi"))
	assert.Equal(t, Warn, d.Severity)
	assert.Equal(t, "no spi", d.Detail)
	assert.Equal(t, "mcp3008 unavailable; simulating", d.Summary)
}

func TestInterruptStats(t *testing.T) {
	c := irq.NewController()
	c.Register(irq.TimerCompare, func(*irq.Frame) {})
	c.Raise(irq.TimerCompare)
	d := InterruptStats(c)
	assert.Equal(t, map[string]uint64{"dispatched": 1, "deferred": 0, "dropped": 0}, d.Evidence["timer"])
}

func TestEmit(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	Emit(TimerPeriod(8*time.Millisecond), Fallback("LCD_FALLBACK", "hd44780", nil))
	out := buf.String()
	assert.Contains(t, out, `"code":"TIMER_PERIOD"`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "hd44780 unavailable")
}
