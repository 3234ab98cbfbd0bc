package diagnostics

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-levelmeter/internal/irq"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// NominalTick is the tick the animation timings are written against.
const NominalTick = 5 * time.Millisecond

// TickTolerance is the deviation from NominalTick worth a warning.
const TickTolerance = 0.05

// TimerPeriod checks the configured tick against NominalTick.
func TimerPeriod(got time.Duration) Diagnostic {
	dev := float64(got-NominalTick) / float64(NominalTick)
	d := Diagnostic{
		Severity: Info,
		Code:     "TIMER_PERIOD",
		Summary:  fmt.Sprintf("tick period %s", got),
		Evidence: map[string]any{"period": got.String(), "nominal": NominalTick.String(), "deviation": dev},
	}
	if dev > TickTolerance || dev < -TickTolerance {
		d.Severity = Warn
		d.Summary = fmt.Sprintf("tick period %s is %.0f%% off %s", got, dev*100, NominalTick)
		d.LikelyCauses = []string{"clock.hz, timer.prescaler or timer.compare changed"}
		d.SuggestedFixes = []string{"scale pattern.period to keep the animation speed"}
	}
	return d
}

// Fallback records a device that was replaced by its simulation.
func Fallback(code, what string, err error) Diagnostic {
	return Diagnostic{
		Severity:       Warn,
		Code:           code,
		Summary:        what + " unavailable; simulating",
		Detail:         errString(err),
		LikelyCauses:   []string{"device not wired", "missing permissions on /dev", "host.Init found no driver"},
		SuggestedFixes: []string{"check pin names in config.yaml", "run with driver: sim"},
	}
}

// InterruptStats summarizes what each source did.
func InterruptStats(c *irq.Controller) Diagnostic {
	ev := map[string]any{}
	for _, s := range irq.Sources() {
		st := c.Stats(s)
		ev[s.String()] = map[string]uint64{
			"dispatched": st.Dispatched,
			"deferred":   st.Deferred,
			"dropped":    st.Dropped,
		}
	}
	return Diagnostic{Severity: Info, Code: "IRQ_STATS", Summary: "interrupt activity", Evidence: ev}
}

// Emit logs every diagnostic at its severity.
func Emit(ds ...Diagnostic) {
	for _, d := range ds {
		var e *zerolog.Event
		switch d.Severity {
		case Err:
			e = log.Error()
		case Warn:
			e = log.Warn()
		default:
			e = log.Info()
		}
		e = e.Str("code", d.Code)
		if d.Detail != "" {
			e = e.Str("detail", d.Detail)
		}
		if len(d.Evidence) > 0 {
			e = e.Interface("evidence", d.Evidence)
		}
		if len(d.SuggestedFixes) > 0 {
			e = e.Strs("fixes", d.SuggestedFixes)
		}
		e.Msg(d.Summary)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
