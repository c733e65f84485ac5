package main

import (
	"github.com/pthm-cable/hfps/components"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Starting value, taken from the species file
}

// ParamVector holds the tuned parameters of one species channel.
type ParamVector struct {
	Channel components.Channel
	Specs   []ParamSpec
}

// NewParamVector creates the parameter set for ch, seeded from p.
func NewParamVector(p components.BehaviorProfile, ch components.Channel) *ParamVector {
	pv := &ParamVector{
		Channel: ch,
		Specs: []ParamSpec{
			{Name: "sensitivity", Min: 0.1, Max: 3.0},
			{Name: "adaptation_rate", Min: 0, Max: 5.0},
			{Name: "decay_rate", Min: 0.01, Max: 2.0},
		},
	}
	start := pv.Clamp([]float64{
		float64(p.Sensitivity[ch]),
		float64(p.AdaptationRates[ch]),
		float64(p.DecayRates[ch]),
	})
	for i := range pv.Specs {
		pv.Specs[i].Default = start[i]
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the starting values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// Apply writes clamped values into a copy of p.
func (pv *ParamVector) Apply(p components.BehaviorProfile, values []float64) components.BehaviorProfile {
	clamped := pv.Clamp(values)
	p.Sensitivity[pv.Channel] = float32(clamped[0])
	p.AdaptationRates[pv.Channel] = float32(clamped[1])
	p.DecayRates[pv.Channel] = float32(clamped[2])
	return p
}
