package telemetry

import (
	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/systems"
	"gonum.org/v1/gonum/stat"
)

// Collector accumulates broker work within time windows and produces WindowStats.
type Collector struct {
	windowDurationTicks int32
	dt                  float32

	// Current window tracking
	windowStartTick int32

	// Counters for current window
	events     int
	emissions  int
	cells      int
	candidates int
	matches    int

	scratch []float64
}

// NewCollector creates a new stats collector.
// windowTicks: ticks per stats window, raised to 1 if smaller
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowTicks int, dt float32) *Collector {
	return &Collector{
		windowDurationTicks: int32(max(windowTicks, 1)),
		dt:                  dt,
	}
}

// RecordEvent records one scheduled or queued event.
func (c *Collector) RecordEvent(s systems.EmitStats) {
	c.events++
	c.record(s)
}

// RecordEmission records one agent-emitted event.
func (c *Collector) RecordEmission(s systems.EmitStats) {
	c.emissions++
	c.record(s)
}

func (c *Collector) record(s systems.EmitStats) {
	c.cells += s.Cells
	c.candidates += s.Candidates
	c.matches += s.Matched
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush samples the agent store, produces a WindowStats and resets counters
// for the next window.
func (c *Collector) Flush(currentTick int32, agents *systems.AgentSystem) WindowStats {
	n := agents.Count()

	var matchRate float64
	if c.candidates > 0 {
		matchRate = float64(c.matches) / float64(c.candidates)
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * float64(c.dt),

		Agents:  n,
		Species: agents.SpeciesTable().Len(),

		Events:     c.events,
		Emissions:  c.emissions,
		Cells:      c.cells,
		Candidates: c.candidates,
		Matches:    c.matches,
		MatchRate:  matchRate,
	}

	for _, f := range agents.Flags[:n] {
		if f&^components.FlagIdle != 0 {
			stats.ActiveAgents++
		}
	}

	if cap(c.scratch) < n {
		c.scratch = make([]float64, n)
	}
	values := c.scratch[:n]
	for _, ch := range components.Channels {
		cs := ChannelStats{WindowEndTick: currentTick, Channel: ch.String()}
		if n > 0 {
			cs.HabituationMean = stat.Mean(widen(values, agents.Adaptation[ch][:n]), nil)
			cs.DriftMean = stat.Mean(widen(values, agents.DNA[ch][:n]), nil)

			d := ComputeDistribution(widen(values, agents.Channels[ch][:n]))
			cs.Mean, cs.Std = d.Mean, d.Std
			cs.Min, cs.Max = d.Min, d.Max
			cs.P10, cs.P50, cs.P90 = d.P10, d.P50, d.P90
		}
		stats.Channels[ch] = cs
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.events = 0
	c.emissions = 0
	c.cells = 0
	c.candidates = 0
	c.matches = 0

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}

// widen copies src into dst as float64 and returns dst.
func widen(dst []float64, src []float32) []float64 {
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst[:len(src)]
}
