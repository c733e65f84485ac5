package main

import (
	"fmt"
	"math"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/systems"
)

// Probe is a repeated stimulus applied to a single agent at the event origin.
type Probe struct {
	Event     string
	Intensity float32
	Interval  int // frames between pulses
	Pulses    int

	// Frames to wait for the channel to settle after the last pulse.
	MaxRecoveryFrames int
}

// Response is what the agent did under a probe.
type Response struct {
	FirstPeak      float64 `yaml:"first_peak"`      // channel jump caused by the first pulse
	LastPeak       float64 `yaml:"last_peak"`       // channel jump caused by the last pulse
	Ratio          float64 `yaml:"ratio"`           // LastPeak / FirstPeak
	RecoveryFrames int     `yaml:"recovery_frames"` // frames after the last pulse until |channel| < 1
}

// probe geometry: one agent in the middle cell of a 3x3 grid.
const (
	probeCellSize = 100
	probeOrigin   = 150
)

// RunProbe drives one agent of species p through probe and measures the
// response on ch. The core runs exactly as in a full simulation: grid rebuild,
// emit, tick, once per frame.
func RunProbe(p components.BehaviorProfile, ch components.Channel, probe Probe) (Response, error) {
	if probe.Interval < 1 || probe.Pulses < 1 {
		return Response{}, fmt.Errorf("probe needs at least one pulse and a positive interval")
	}

	table := components.NewSpeciesTable()
	id, err := table.Register(p)
	if err != nil {
		return Response{}, err
	}
	if !listensOn(&p, probe.Event, ch) {
		return Response{}, fmt.Errorf("%s has no %s listener for %q", p.Name, ch, probe.Event)
	}

	agents := systems.NewAgentSystem(1, table)
	if _, err := agents.AddAgent(probeOrigin, probeOrigin, id); err != nil {
		return Response{}, err
	}
	grid, err := systems.NewSpatialGrid(systems.GridConfig{Cols: 3, Rows: 3, CellSize: probeCellSize, AgentSlots: 1})
	if err != nil {
		return Response{}, err
	}
	broker := systems.NewEventBroker(0)
	ev := components.WorldEvent{Name: probe.Event, X: probeOrigin, Y: probeOrigin, BaseIntensity: probe.Intensity}

	var resp Response
	frames := (probe.Pulses-1)*probe.Interval + 1
	for frame := 0; frame < frames; frame++ {
		grid.Clear()
		if err := grid.Insert(0, agents.X[0], agents.Y[0]); err != nil {
			return Response{}, err
		}

		if frame%probe.Interval == 0 {
			before := agents.Channels[ch][0]
			if _, err := broker.Emit(ev, agents, grid); err != nil {
				return Response{}, err
			}
			jump := math.Abs(float64(agents.Channels[ch][0] - before))
			if frame == 0 {
				resp.FirstPeak = jump
			}
			resp.LastPeak = jump
		}

		agents.Tick()
	}

	for resp.RecoveryFrames < probe.MaxRecoveryFrames && math.Abs(float64(agents.Channels[ch][0])) >= 1 {
		agents.Tick()
		resp.RecoveryFrames++
	}

	if resp.FirstPeak > 0 {
		resp.Ratio = resp.LastPeak / resp.FirstPeak
	}
	return resp, nil
}

func listensOn(p *components.BehaviorProfile, event string, ch components.Channel) bool {
	for _, s := range p.Listeners {
		if s.EventName == event && s.Channel == ch {
			return true
		}
	}
	return false
}

// Target is the response the calibration aims for.
type Target struct {
	FirstPeak   float64 // desired jump from the first pulse
	Ratio       float64 // desired last/first ratio, e.g. 0.5 = half as startled
	RecoverySec float64 // desired settle time after the last pulse, 0 = ignore
}

// FitnessEvaluator runs probes and scores them against a target.
type FitnessEvaluator struct {
	params  *ParamVector
	profile components.BehaviorProfile
	probe   Probe
	target  Target

	last Response
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, profile components.BehaviorProfile, probe Probe, target Target) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:  params,
		profile: profile,
		probe:   probe,
		target:  target,
	}
}

// LastResponse returns the response from the most recent evaluation.
func (fe *FitnessEvaluator) LastResponse() Response {
	return fe.last
}

// Evaluate computes fitness for a raw parameter vector (lower = better): the
// sum of squared relative errors against the target.
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	resp, err := RunProbe(fe.params.Apply(fe.profile, raw), fe.params.Channel, fe.probe)
	if err != nil {
		return math.Inf(1)
	}
	fe.last = resp

	fitness := sq((resp.FirstPeak - fe.target.FirstPeak) / fe.target.FirstPeak)
	fitness += sq(resp.Ratio - fe.target.Ratio)
	if fe.target.RecoverySec > 0 {
		recoverySec := float64(resp.RecoveryFrames) * float64(systems.TickDT)
		fitness += sq((recoverySec - fe.target.RecoverySec) / fe.target.RecoverySec)
	}
	return fitness
}

func sq(v float64) float64 { return v * v }
