package systems

import (
	"fmt"

	"github.com/pthm-cable/hfps/components"
)

// Model constants.
const (
	// TickDT is the fixed timestep of Tick, in seconds.
	TickDT float32 = 0.016

	// HabituationRecovery scales the habituation buffer each tick.
	HabituationRecovery float32 = 0.9995

	// DriftRate is how much of the habituation buffer leaks into the DNA modifier per tick.
	DriftRate float32 = 0.00001

	// MinHabituation is the most sensitized the habituation buffer can get.
	MinHabituation float32 = -0.9
	// MaxHabituation is the most numbed the habituation buffer can get.
	MaxHabituation float32 = 2.0

	// MinDrift is the lower bound of the long-term DNA modifier.
	MinDrift float32 = 0.1
	// MaxDrift is the upper bound of the long-term DNA modifier.
	MaxDrift float32 = 5.0
)

// AgentSystem is the dense struct-of-arrays agent store. Row i of every column
// belongs to agent i. Rows are append-only, so an index stays valid for the
// lifetime of the store.
//
// The per-channel columns are indexed [channel][agent] so each Tick pass walks
// contiguous memory.
type AgentSystem struct {
	X, Y []float32

	Channels   [components.NumChannels][]float32 // current pressure
	Adaptation [components.NumChannels][]float32 // habituation buffer in [MinHabituation, MaxHabituation]
	DNA        [components.NumChannels][]float32 // long-term drift in [MinDrift, MaxDrift], default 1.0

	Flags   []components.Flag
	Species []components.SpeciesID

	species *components.SpeciesTable
}

// NewAgentSystem preallocates columns for capacity agents.
func NewAgentSystem(capacity int, species *components.SpeciesTable) *AgentSystem {
	if capacity < 0 {
		capacity = 0
	}
	s := &AgentSystem{
		X:       make([]float32, 0, capacity),
		Y:       make([]float32, 0, capacity),
		Flags:   make([]components.Flag, 0, capacity),
		Species: make([]components.SpeciesID, 0, capacity),
		species: species,
	}
	for c := range s.Channels {
		s.Channels[c] = make([]float32, 0, capacity)
		s.Adaptation[c] = make([]float32, 0, capacity)
		s.DNA[c] = make([]float32, 0, capacity)
	}
	return s
}

// AddAgent appends one agent and returns its index. The grid's agent slot limit
// is not checked here; SpatialGrid.Insert rejects indices beyond it.
func (s *AgentSystem) AddAgent(x, y float32, species components.SpeciesID) (int, error) {
	if _, err := s.species.Lookup(species); err != nil {
		return -1, fmt.Errorf("add agent: %w", err)
	}

	idx := len(s.X)
	s.X = append(s.X, x)
	s.Y = append(s.Y, y)
	for c := range s.Channels {
		s.Channels[c] = append(s.Channels[c], 0)
		s.Adaptation[c] = append(s.Adaptation[c], 0)
		s.DNA[c] = append(s.DNA[c], 1)
	}
	s.Flags = append(s.Flags, 0)
	s.Species = append(s.Species, species)
	return idx, nil
}

// Count returns the number of agents.
func (s *AgentSystem) Count() int {
	return len(s.X)
}

// SpeciesTable returns the table the store resolves species against.
func (s *AgentSystem) SpeciesTable() *components.SpeciesTable {
	return s.species
}

// Tick runs the fixed-timestep homeostasis pass. Call once per frame, after all
// of that frame's events have been emitted.
func (s *AgentSystem) Tick() {
	n := s.Count()
	profiles := s.species.Profiles()

	// Channel-major so each inner loop streams through contiguous columns.
	for c := 0; c < components.NumChannels; c++ {
		channels := s.Channels[c][:n]
		adaptation := s.Adaptation[c][:n]
		dna := s.DNA[c][:n]

		for i := 0; i < n; i++ {
			// Decay toward zero, never across it
			decay := profiles[s.Species[i]].DecayRates[c] * TickDT
			if v := channels[i]; v > 0 {
				channels[i] = max(v-decay, 0)
			} else if v < 0 {
				channels[i] = min(v+decay, 0)
			}

			adaptation[i] *= HabituationRecovery

			dna[i] = clampFloat(dna[i]+adaptation[i]*DriftRate, MinDrift, MaxDrift)
		}
	}

	s.updateFlags(profiles)
}

// updateFlags recomputes the active flag mask of every agent. Branch-heavy, so
// it stays a plain per-agent loop.
func (s *AgentSystem) updateFlags(profiles []components.BehaviorProfile) {
	for i := range s.Flags {
		flags := components.FlagIdle
		for _, t := range profiles[s.Species[i]].Thresholds {
			if t.Active(s.Channels[t.Channel][i]) {
				flags |= t.Flag
			}
		}
		s.Flags[i] = flags
	}
}

// Pressure returns agent i's current pressure on ch.
func (s *AgentSystem) Pressure(i int, ch components.Channel) (float32, error) {
	if err := s.check(i, ch); err != nil {
		return 0, err
	}
	return s.Channels[ch][i], nil
}

// SetPressure overwrites agent i's pressure on ch.
func (s *AgentSystem) SetPressure(i int, ch components.Channel, v float32) error {
	if err := s.check(i, ch); err != nil {
		return err
	}
	s.Channels[ch][i] = v
	return nil
}

// Habituation returns agent i's habituation buffer on ch.
func (s *AgentSystem) Habituation(i int, ch components.Channel) (float32, error) {
	if err := s.check(i, ch); err != nil {
		return 0, err
	}
	return s.Adaptation[ch][i], nil
}

// Drift returns agent i's DNA modifier on ch.
func (s *AgentSystem) Drift(i int, ch components.Channel) (float32, error) {
	if err := s.check(i, ch); err != nil {
		return 0, err
	}
	return s.DNA[ch][i], nil
}

// ActiveFlags returns agent i's flag mask as of the last Tick.
func (s *AgentSystem) ActiveFlags(i int) (components.Flag, error) {
	if err := s.checkIndex(i); err != nil {
		return 0, err
	}
	return s.Flags[i], nil
}

// Position returns agent i's position.
func (s *AgentSystem) Position(i int) (x, y float32, err error) {
	if err := s.checkIndex(i); err != nil {
		return 0, 0, err
	}
	return s.X[i], s.Y[i], nil
}

// SetPosition moves agent i. The grid sees the move after its next rebuild.
func (s *AgentSystem) SetPosition(i int, x, y float32) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	s.X[i], s.Y[i] = x, y
	return nil
}

// SpeciesOf returns agent i's species.
func (s *AgentSystem) SpeciesOf(i int) (components.SpeciesID, error) {
	if err := s.checkIndex(i); err != nil {
		return 0, err
	}
	return s.Species[i], nil
}

// Kernel exports agent i's long-term drift.
func (s *AgentSystem) Kernel(i int) (components.DNAKernel, error) {
	var k components.DNAKernel
	if err := s.checkIndex(i); err != nil {
		return k, err
	}
	for c := range k.Modifiers {
		k.Modifiers[c] = s.DNA[c][i]
	}
	return k, nil
}

// InjectKernel overwrites agent i's drift with k, clamped to [MinDrift, MaxDrift].
func (s *AgentSystem) InjectKernel(i int, k components.DNAKernel) error {
	if err := s.checkIndex(i); err != nil {
		return err
	}
	for c, m := range k.Modifiers {
		s.DNA[c][i] = clampFloat(m, MinDrift, MaxDrift)
	}
	return nil
}

// PendingEmissions appends one event per (agent, emission) pair whose flag is
// active as of the last Tick. The events originate at the agent with the
// emission's power as base intensity and its radius as query radius.
// Nothing calls this implicitly; the host decides whether and when to emit them.
func (s *AgentSystem) PendingEmissions(dst []components.WorldEvent) []components.WorldEvent {
	profiles := s.species.Profiles()
	for i, flags := range s.Flags {
		for _, e := range profiles[s.Species[i]].Emissions {
			if e.Flag == 0 || flags&e.Flag != e.Flag {
				continue
			}
			dst = append(dst, components.WorldEvent{
				Name:          e.EventName,
				X:             s.X[i],
				Y:             s.Y[i],
				BaseIntensity: e.Power,
				Radius:        e.Radius,
			})
		}
	}
	return dst
}

func (s *AgentSystem) checkIndex(i int) error {
	if i < 0 || i >= s.Count() {
		return fmt.Errorf("agent %d (count %d): %w", i, s.Count(), ErrIndexOutOfRange)
	}
	return nil
}

func (s *AgentSystem) check(i int, ch components.Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("channel %d: %w", ch, ErrInvalidChannel)
	}
	return s.checkIndex(i)
}
