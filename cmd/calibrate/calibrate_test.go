package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/config"
)

func sheepProfile(t *testing.T) components.BehaviorProfile {
	t.Helper()
	p, err := config.EmbeddedSpecies("sheep")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

var dangerProbe = Probe{Event: "danger", Intensity: -40, Interval: 10, Pulses: 5, MaxRecoveryFrames: 200000}

func TestRunProbeHabituates(t *testing.T) {
	resp, err := RunProbe(sheepProfile(t), components.Security, dangerProbe)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(resp.FirstPeak-40) > 1e-3 {
		t.Errorf("first peak = %v, want 40", resp.FirstPeak)
	}
	if resp.Ratio >= 1 || resp.Ratio <= 0 {
		t.Errorf("ratio = %v, want habituated response in (0, 1)", resp.Ratio)
	}
	if resp.RecoveryFrames == 0 || resp.RecoveryFrames >= dangerProbe.MaxRecoveryFrames {
		t.Errorf("recovery frames = %d", resp.RecoveryFrames)
	}
}

func TestRunProbeWithoutAdaptation(t *testing.T) {
	p := sheepProfile(t)
	params := NewParamVector(p, components.Security)
	flat := params.Apply(p, []float64{1, 0, 0.1})

	resp, err := RunProbe(flat, components.Security, dangerProbe)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(resp.Ratio-1) > 1e-4 {
		t.Errorf("ratio = %v, want 1 without habituation", resp.Ratio)
	}
	// The original profile is untouched.
	if p.AdaptationRates[components.Security] != 0.5 {
		t.Errorf("source profile mutated: %v", p.AdaptationRates[components.Security])
	}
}

func TestRunProbeErrors(t *testing.T) {
	p := sheepProfile(t)
	if _, err := RunProbe(p, components.Dominance, dangerProbe); err == nil {
		t.Error("probe on an unheard channel accepted")
	}
	bad := dangerProbe
	bad.Interval = 0
	if _, err := RunProbe(p, components.Security, bad); err == nil {
		t.Error("zero interval accepted")
	}
}

func TestParamVectorRoundTrip(t *testing.T) {
	p := sheepProfile(t)
	pv := NewParamVector(p, components.Security)

	def := pv.DefaultVector()
	if def[0] != 1.0 || def[1] != 0.5 || math.Abs(def[2]-0.1) > 1e-6 {
		t.Errorf("defaults = %v", def)
	}
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if math.Abs(back[i]-def[i]) > 1e-9 {
			t.Errorf("param %d: %v -> %v", i, def[i], back[i])
		}
	}

	clamped := pv.Clamp([]float64{-1, 10, 0})
	if clamped[0] != 0.1 || clamped[1] != 5 || clamped[2] != 0.01 {
		t.Errorf("clamped = %v", clamped)
	}
}

func TestEvaluateScoresTarget(t *testing.T) {
	p := sheepProfile(t)
	pv := NewParamVector(p, components.Security)

	resp, err := RunProbe(p, components.Security, dangerProbe)
	if err != nil {
		t.Fatal(err)
	}

	exact := NewFitnessEvaluator(pv, p, dangerProbe, Target{FirstPeak: resp.FirstPeak, Ratio: resp.Ratio})
	if f := exact.Evaluate(pv.DefaultVector()); f > 1e-6 {
		t.Errorf("fitness at the measured response = %v, want ~0", f)
	}

	off := NewFitnessEvaluator(pv, p, dangerProbe, Target{FirstPeak: 80, Ratio: 0.1})
	if f := off.Evaluate(pv.DefaultVector()); f < 0.2 {
		t.Errorf("fitness far from target = %v", f)
	}
	if off.LastResponse().FirstPeak == 0 {
		t.Error("LastResponse not recorded")
	}
}
