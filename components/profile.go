package components

import (
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Flag is a behavior state bitmask (fleeing, sleeping, ...).
type Flag uint32

// FlagIdle is set on every agent after each tick, whatever else is active.
const FlagIdle Flag = 1

// ErrInvalidProfile is returned when a profile fails registration checks.
var ErrInvalidProfile = errors.New("invalid behavior profile")

// EventHash returns the stable identity hash of an event name.
// Stable across processes, so hashes computed by the loader match hashes
// computed at emit time.
func EventHash(name string) uint64 {
	return xxhash.Sum64String(name)
}

// Threshold sets Flag while Channel is past Value.
// Value >= 0 triggers on current >= Value; Value < 0 triggers on current <= Value.
type Threshold struct {
	Channel Channel
	Value   float32
	Flag    Flag
}

// Active reports whether the threshold condition holds for the given pressure.
func (t Threshold) Active(current float32) bool {
	if t.Value >= 0 {
		return current >= t.Value
	}
	return current <= t.Value
}

// Stimulus is a reaction to a world event: which channel it pressures and how far it reaches.
type Stimulus struct {
	EventName string
	EventHash uint64
	Channel   Channel
	Power     float32 // multiplier on the event's base intensity
	Radius    float32 // pressure falls linearly to zero at this distance
}

// Emission is an event the agent itself broadcasts while Flag is active.
type Emission struct {
	Flag      Flag
	EventName string
	EventHash uint64
	Power     float32
	Radius    float32 // broadcast reach; listeners beyond it never hear the event
}

// BehaviorProfile is the immutable per-species configuration shared by every
// agent of the species. Never mutate a profile after it has been registered.
type BehaviorProfile struct {
	Name string

	Sensitivity     [NumChannels]float32 // multiplier on incoming pressure
	DecayRates      [NumChannels]float32 // pressure units removed per second (homeostasis)
	AdaptationRates [NumChannels]float32 // habituation speed

	Thresholds []Threshold
	Listeners  []Stimulus
	Emissions  []Emission
}

// DefaultProfile returns a profile with the loader defaults:
// sensitivity 1.0, decay 0.1, adaptation 0.0 on every channel.
func DefaultProfile(name string) BehaviorProfile {
	p := BehaviorProfile{Name: name}
	for c := range p.Sensitivity {
		p.Sensitivity[c] = 1.0
		p.DecayRates[c] = 0.1
	}
	return p
}

// Validate checks channel indices, radii and hashes.
func (p *BehaviorProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidProfile)
	}
	for i, t := range p.Thresholds {
		if !t.Channel.Valid() {
			return fmt.Errorf("%w: %s threshold %d: %w", ErrInvalidProfile, p.Name, i, ErrUnknownChannel)
		}
	}
	for i, s := range p.Listeners {
		if !s.Channel.Valid() {
			return fmt.Errorf("%w: %s listener %d: %w", ErrInvalidProfile, p.Name, i, ErrUnknownChannel)
		}
		if !(s.Radius > 0) || math.IsInf(float64(s.Radius), 0) {
			return fmt.Errorf("%w: %s listener %d (%s): radius must be positive and finite", ErrInvalidProfile, p.Name, i, s.EventName)
		}
		if s.EventHash != EventHash(s.EventName) {
			return fmt.Errorf("%w: %s listener %d (%s): event hash not precomputed", ErrInvalidProfile, p.Name, i, s.EventName)
		}
	}
	for i, e := range p.Emissions {
		if !(e.Radius >= 0) || math.IsInf(float64(e.Radius), 0) {
			return fmt.Errorf("%w: %s emission %d (%s): radius must be finite and not negative", ErrInvalidProfile, p.Name, i, e.EventName)
		}
		if e.EventHash != EventHash(e.EventName) {
			return fmt.Errorf("%w: %s emission %d (%s): event hash not precomputed", ErrInvalidProfile, p.Name, i, e.EventName)
		}
	}
	return nil
}

// MaxListenerRadius returns the largest stimulus radius of the profile.
func (p *BehaviorProfile) MaxListenerRadius() float32 {
	var r float32
	for _, s := range p.Listeners {
		if s.Radius > r {
			r = s.Radius
		}
	}
	return r
}

// DNAKernel is the exportable record of an agent's long-term drift.
// It can be injected into another agent to transfer learned experience.
type DNAKernel struct {
	Modifiers [NumChannels]float32 `json:"modifiers"`
}
