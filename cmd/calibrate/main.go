// Package main provides CMA-ES calibration of a species' response to a
// repeated stimulus: how hard the first pulse hits, how much of that survives
// habituation by the last pulse, and how long the channel takes to settle.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/config"
)

// EvalRow is one line of calibrate_log.csv.
type EvalRow struct {
	Eval           int     `csv:"eval"`
	Fitness        float64 `csv:"fitness"`
	Sensitivity    float64 `csv:"sensitivity"`
	AdaptationRate float64 `csv:"adaptation_rate"`
	DecayRate      float64 `csv:"decay_rate"`
	FirstPeak      float64 `csv:"first_peak"`
	Ratio          float64 `csv:"ratio"`
	RecoveryFrames int     `csv:"recovery_frames"`
}

// Result is written to calibration.yaml. The values go into the species file's
// sensitivity, adaptation_rates and decay_rates maps under Channel.
type Result struct {
	Species        string   `yaml:"species"`
	Channel        string   `yaml:"channel"`
	Event          string   `yaml:"event"`
	Sensitivity    float64  `yaml:"sensitivity"`
	AdaptationRate float64  `yaml:"adaptation_rate"`
	DecayRate      float64  `yaml:"decay_rate"`
	Fitness        float64  `yaml:"fitness"`
	Response       Response `yaml:"response"`
}

func main() {
	speciesArg := flag.String("species", "sheep", "Built-in species name or path to a species YAML file")
	channelName := flag.String("channel", "Security", "Channel to calibrate")
	event := flag.String("event", "danger", "Event the probe emits")
	intensity := flag.Float64("intensity", -40, "Probe base intensity")
	interval := flag.Int("interval", 125, "Frames between pulses")
	pulses := flag.Int("pulses", 10, "Number of pulses")
	targetPeak := flag.Float64("target-peak", 40, "Desired channel jump from the first pulse")
	targetRatio := flag.Float64("target-ratio", 0.5, "Desired last/first pulse response ratio")
	targetRecovery := flag.Float64("target-recovery", 0, "Desired settle time in seconds after the last pulse (0 = ignore)")
	maxEvals := flag.Int("max-evals", 300, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if *targetPeak <= 0 {
		log.Fatal("--target-peak must be positive")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	profile, err := loadProfile(*speciesArg)
	if err != nil {
		log.Fatalf("failed to load species: %v", err)
	}
	ch, err := components.ParseChannel(*channelName)
	if err != nil {
		log.Fatalf("bad --channel: %v", err)
	}

	params := NewParamVector(profile, ch)
	probe := Probe{
		Event:             *event,
		Intensity:         float32(*intensity),
		Interval:          *interval,
		Pulses:            *pulses,
		MaxRecoveryFrames: 100000,
	}
	target := Target{FirstPeak: *targetPeak, Ratio: *targetRatio, RecoverySec: *targetRecovery}
	evaluator := NewFitnessEvaluator(params, profile, probe, target)

	// Fail fast if the species cannot hear the probe at all.
	if _, err := RunProbe(profile, ch, probe); err != nil {
		log.Fatalf("probe: %v", err)
	}

	logPath := filepath.Join(*outputDir, "calibrate_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	var bestResponse Response
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			resp := evaluator.LastResponse()
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
				bestResponse = resp
			}

			row := []EvalRow{{
				Eval:           evalCount,
				Fitness:        fitness,
				Sensitivity:    clamped[0],
				AdaptationRate: clamped[1],
				DecayRate:      clamped[2],
				FirstPeak:      resp.FirstPeak,
				Ratio:          resp.Ratio,
				RecoveryFrames: resp.RecoveryFrames,
			}}
			if evalCount == 1 {
				err = gocsv.Marshal(row, logFile)
			} else {
				err = gocsv.MarshalWithoutHeaders(row, logFile)
			}
			if err != nil {
				log.Printf("failed to log eval %d: %v", evalCount, err)
			}

			if evalCount%20 == 0 {
				fmt.Printf("Eval %d/%d: peak=%.2f ratio=%.3f recovery=%d (best=%.5f) | elapsed: %s\n",
					evalCount, *maxEvals, resp.FirstPeak, resp.Ratio, resp.RecoveryFrames, bestFitness,
					time.Since(startTime).Round(time.Millisecond))
			}
			return fitness
		},
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*math.Log(float64(params.Dim())))
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}

	fmt.Printf("Calibrating %s %s against %q: %d pulses every %d frames, population=%d, max_evals=%d\n",
		profile.Name, ch, *event, *pulses, *interval, popSize, *maxEvals)

	result, err := optimize.Minimize(problem, params.Normalize(params.DefaultVector()), settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\nCalibration complete after %d evaluations in %s\n", evalCount, time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("Best fitness: %.6f\n", bestFitness)
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.4f (was %.4f)\n", spec.Name, bestParams[i], spec.Default)
	}

	out := Result{
		Species:        profile.Name,
		Channel:        ch.String(),
		Event:          *event,
		Sensitivity:    bestParams[0],
		AdaptationRate: bestParams[1],
		DecayRate:      bestParams[2],
		Fitness:        bestFitness,
		Response:       bestResponse,
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		log.Fatalf("failed to marshal result: %v", err)
	}
	resultPath := filepath.Join(*outputDir, "calibration.yaml")
	if err := os.WriteFile(resultPath, data, 0644); err != nil {
		log.Fatalf("failed to write result: %v", err)
	}
	fmt.Printf("\nResult saved to: %s\n", resultPath)
}

// loadProfile resolves a built-in species name or a species file path.
func loadProfile(arg string) (components.BehaviorProfile, error) {
	if _, err := os.Stat(arg); err == nil {
		return config.LoadSpecies(arg)
	}
	return config.EmbeddedSpecies(arg)
}
