package telemetry

import (
	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/systems"
	"gonum.org/v1/gonum/stat"
)

// ExposureStats tracks per-agent statistics over the run.
type ExposureStats struct {
	// Most extreme pressure seen on each channel, sign kept.
	PeakPressure [components.NumChannels]float32

	// Frames spent with any flag beyond idle, and how often that started.
	FlaggedFrames int32
	FlagEpisodes  int32

	wasFlagged bool
}

// ExposureTracker samples the agent store once per frame and keeps running
// per-agent exposure. Rows follow agent indices.
type ExposureTracker struct {
	stats []ExposureStats
}

// NewExposureTracker creates a tracker with room for capacity agents.
func NewExposureTracker(capacity int) *ExposureTracker {
	return &ExposureTracker{stats: make([]ExposureStats, 0, capacity)}
}

// Update samples every agent after the frame's tick.
func (et *ExposureTracker) Update(agents *systems.AgentSystem) {
	n := agents.Count()
	for len(et.stats) < n {
		et.stats = append(et.stats, ExposureStats{})
	}

	for c := range components.Channels {
		col := agents.Channels[c][:n]
		for i, v := range col {
			peak := &et.stats[i].PeakPressure[c]
			if absf32(v) > absf32(*peak) {
				*peak = v
			}
		}
	}

	for i, f := range agents.Flags[:n] {
		s := &et.stats[i]
		flagged := f&^components.FlagIdle != 0
		if flagged {
			s.FlaggedFrames++
			if !s.wasFlagged {
				s.FlagEpisodes++
			}
		}
		s.wasFlagged = flagged
	}
}

// Get returns the stats for agent i, or nil if it has not been sampled.
func (et *ExposureTracker) Get(i int) *ExposureStats {
	if i < 0 || i >= len(et.stats) {
		return nil
	}
	return &et.stats[i]
}

// Count returns the number of tracked agents.
func (et *ExposureTracker) Count() int {
	return len(et.stats)
}

// SpeciesExposure is the per-species summary of agent exposure.
type SpeciesExposure struct {
	Species           string  `csv:"species"`
	Agents            int     `csv:"agents"`
	MeanFlaggedSec    float64 `csv:"mean_flagged_sec"`
	MaxFlaggedSec     float64 `csv:"max_flagged_sec"`
	MeanEpisodes      float64 `csv:"mean_episodes"`
	MeanPeakVitality  float64 `csv:"mean_peak_vitality"`
	MeanPeakSecurity  float64 `csv:"mean_peak_security"`
	MeanPeakDominance float64 `csv:"mean_peak_dominance"`
	MeanPeakEngage    float64 `csv:"mean_peak_engagement"`
}

// Summary groups the tracked agents by species. dt converts frames to seconds.
func (et *ExposureTracker) Summary(agents *systems.AgentSystem, dt float32) []SpeciesExposure {
	table := agents.SpeciesTable()
	groups := make([][]int, table.Len())
	for i := range et.stats {
		if i >= agents.Count() {
			break
		}
		sp := agents.Species[i]
		groups[sp] = append(groups[sp], i)
	}

	out := make([]SpeciesExposure, 0, len(groups))
	for id, members := range groups {
		p, _ := table.Lookup(components.SpeciesID(id))
		row := SpeciesExposure{Species: p.Name, Agents: len(members)}
		if len(members) == 0 {
			out = append(out, row)
			continue
		}

		flagged := make([]float64, len(members))
		episodes := make([]float64, len(members))
		var peaks [components.NumChannels][]float64
		for c := range peaks {
			peaks[c] = make([]float64, len(members))
		}
		for k, i := range members {
			s := &et.stats[i]
			flagged[k] = float64(s.FlaggedFrames) * float64(dt)
			episodes[k] = float64(s.FlagEpisodes)
			for c := range peaks {
				peaks[c][k] = float64(s.PeakPressure[c])
			}
		}

		row.MeanFlaggedSec = stat.Mean(flagged, nil)
		for _, f := range flagged {
			row.MaxFlaggedSec = max(row.MaxFlaggedSec, f)
		}
		row.MeanEpisodes = stat.Mean(episodes, nil)
		row.MeanPeakVitality = stat.Mean(peaks[components.Vitality], nil)
		row.MeanPeakSecurity = stat.Mean(peaks[components.Security], nil)
		row.MeanPeakDominance = stat.Mean(peaks[components.Dominance], nil)
		row.MeanPeakEngage = stat.Mean(peaks[components.Engagement], nil)
		out = append(out, row)
	}
	return out
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
