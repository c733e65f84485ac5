package systems

import (
	"fmt"

	"github.com/pthm-cable/hfps/components"
)

// HabituationPushRate scales how much each applied pressure hardens the agent.
const HabituationPushRate float32 = 0.01

// EmitStats reports the work done by one Emit call.
type EmitStats struct {
	Cells      int // candidate cells in the broad phase
	Candidates int // agents visited in those cells
	Matched    int // listener entries that passed the narrow phase

	Reach float32 // query radius the event was emitted with
}

// Add accumulates o into s.
func (s *EmitStats) Add(o EmitStats) {
	s.Cells += o.Cells
	s.Candidates += o.Candidates
	s.Matched += o.Matched
}

// EventBroker propagates world events into agent pressure. It keeps no
// simulation state between calls: only its query radius and a reusable cell
// buffer. Emit calls must be serialized against each other and against Tick.
type EventBroker struct {
	// MaxInfluenceRadius is the reach of events that carry no radius of their
	// own. Zero derives it from the largest listener radius of
	// the species table at emit time.
	MaxInfluenceRadius float32

	cells []int
}

// NewEventBroker creates a broker with the given default query radius.
func NewEventBroker(maxInfluenceRadius float32) *EventBroker {
	return &EventBroker{
		MaxInfluenceRadius: maxInfluenceRadius,
		cells:              make([]int, 0, 25),
	}
}

// QueryRadius returns the reach of ev: the broad-phase query radius and the
// narrow-phase distance cutoff.
func (b *EventBroker) QueryRadius(ev *components.WorldEvent, species *components.SpeciesTable) float32 {
	if ev.Radius > 0 {
		return ev.Radius
	}
	if b.MaxInfluenceRadius > 0 {
		return b.MaxInfluenceRadius
	}
	return species.MaxListenerRadius()
}

// Emit applies ev to every agent in range with a matching listener, writing
// pressure and habituation directly into agents. The grid must have been
// rebuilt from current positions this frame.
//
// The query radius is also the event's reach: an agent farther than it from
// the origin is skipped whatever its listener radius, so the outcome depends
// on distance alone and never on cell alignment. A NaN distance never matches.
//
// Per matching listener at distance d <= radius:
//
//	falloff  = 1 - d/radius
//	pressure = intensity * power * falloff
//	channel += pressure * sensitivity * (1 + habituation) * drift
//	habituation = clamp(habituation - |pressure| * adaptationRate * 0.01, -0.9, 2.0)
//
// Channel values are not clamped here; Tick's decay is the only bound.
func (b *EventBroker) Emit(ev components.WorldEvent, agents *AgentSystem, grid *SpatialGrid) (EmitStats, error) {
	var stats EmitStats

	hash := components.EventHash(ev.Name)
	profiles := agents.species.Profiles()
	count := int32(agents.Count())

	radius := b.QueryRadius(&ev, agents.species)
	reachSq := radius * radius
	b.cells = grid.NearbyCells(b.cells[:0], ev.X, ev.Y, radius)
	stats.Cells = len(b.cells)
	stats.Reach = radius

	for _, cell := range b.cells {
		for a := grid.heads[cell]; a != EmptySlot; a = grid.next[a] {
			if a >= count {
				return stats, fmt.Errorf("emit %q: grid slot %d (count %d), grid is stale: %w",
					ev.Name, a, count, ErrIndexOutOfRange)
			}
			stats.Candidates++

			distSq := distanceSq(agents.X[a], agents.Y[a], ev.X, ev.Y)
			if !(distSq <= reachSq) {
				continue
			}
			profile := &profiles[agents.Species[a]]

			for li := range profile.Listeners {
				stim := &profile.Listeners[li]
				if stim.EventHash != hash || !(distSq <= stim.Radius*stim.Radius) {
					continue
				}
				stats.Matched++

				falloff := 1 - sqrtf(distSq)/stim.Radius
				pressure := ev.BaseIntensity * stim.Power * falloff

				c := stim.Channel
				sensitivity := profile.Sensitivity[c] * (1 + agents.Adaptation[c][a]) * agents.DNA[c][a]
				agents.Channels[c][a] += pressure * sensitivity

				push := absf(pressure) * profile.AdaptationRates[c] * HabituationPushRate
				agents.Adaptation[c][a] = clampFloat(agents.Adaptation[c][a]-push, MinHabituation, MaxHabituation)
			}
		}
	}

	return stats, nil
}
