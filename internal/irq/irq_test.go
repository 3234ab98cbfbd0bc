package irq

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaiseDispatchesRegisteredHandler(t *testing.T) {
	c := NewController()
	var got []Source
	for _, s := range Sources() {
		c.Register(s, func(f *Frame) { got = append(got, f.Source()) })
	}

	c.Raise(TimerCompare)
	c.Raise(ADCComplete)
	c.Raise(ExternalInput)

	assert.Equal(t, []Source{TimerCompare, ADCComplete, ExternalInput}, got)
	assert.Equal(t, uint64(1), c.Stats(TimerCompare).Dispatched)
}

func TestRaiseWithoutHandlerIsIgnored(t *testing.T) {
	c := NewController()
	c.Raise(ADCComplete)
	assert.Equal(t, Stats{}, c.Stats(ADCComplete))
}

func TestMaskedSourceLatchesOnePendingEvent(t *testing.T) {
	c := NewController()
	n := 0
	c.Register(ADCComplete, func(*Frame) { n++ })

	c.Mask(ADCComplete)
	assert.False(t, c.Enabled(ADCComplete))
	c.Raise(ADCComplete)
	c.Raise(ADCComplete)
	c.Raise(ADCComplete)
	assert.Equal(t, 0, n, "handler must not run while masked")

	c.Unmask(ADCComplete)
	assert.Equal(t, 1, n, "pending event serviced exactly once")

	st := c.Stats(ADCComplete)
	assert.Equal(t, uint64(3), st.Deferred)
	assert.Equal(t, uint64(2), st.Dropped)
	assert.Equal(t, uint64(1), st.Dispatched)

	c.Unmask(ADCComplete)
	assert.Equal(t, 1, n, "no second replay")
}

func TestMaskOnlyAffectsOneSource(t *testing.T) {
	c := NewController()
	var timer int
	c.Register(TimerCompare, func(*Frame) { timer++ })
	c.Mask(ADCComplete)
	c.Raise(TimerCompare)
	assert.Equal(t, 1, timer)
}

func TestFrameCriticalRunsInline(t *testing.T) {
	c := NewController()
	ran := false
	c.Register(TimerCompare, func(f *Frame) {
		f.Critical(func() { ran = true })
	})
	c.Raise(TimerCompare)
	assert.True(t, ran)
}

func TestCriticalHoldsOffHandlers(t *testing.T) {
	c := NewController()
	fired := make(chan struct{})
	c.Register(ExternalInput, func(*Frame) { close(fired) })

	inside := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Critical(func() {
			close(inside)
			<-release
		})
	}()
	<-inside

	go c.Raise(ExternalInput)
	select {
	case <-fired:
		t.Fatal("handler ran inside a critical section")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("handler never ran after the critical section ended")
	}
}

func TestCriticalReleasesOnPanic(t *testing.T) {
	c := NewController()
	require.Panics(t, func() {
		c.Critical(func() { panic("boom") })
	})
	done := make(chan struct{})
	go func() {
		c.Critical(func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("critical section leaked its lock")
	}
}

func TestSourceString(t *testing.T) {
	assert.Equal(t, "adc", ADCComplete.String())
	assert.Equal(t, "timer", TimerCompare.String())
	assert.Equal(t, "input", ExternalInput.String())
	assert.Equal(t, "source(9)", Source(9).String())
}
