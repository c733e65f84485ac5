package telemetry

import (
	"log/slog"
	"sort"

	"github.com/pthm-cable/hfps/components"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-" db:"window_start"`
	WindowEndTick   int32   `csv:"window_end" db:"window_end"`
	SimTimeSec      float64 `csv:"sim_time" db:"sim_time"`

	// Population at window end
	Agents  int `csv:"agents" db:"agents"`
	Species int `csv:"species" db:"species"`

	// Broker work during window
	Events     int     `csv:"events" db:"events"`       // scheduled and queued events
	Emissions  int     `csv:"emissions" db:"emissions"` // agent-emitted events
	Cells      int     `csv:"cells" db:"cells"`
	Candidates int     `csv:"candidates" db:"candidates"`
	Matches    int     `csv:"matches" db:"matches"`
	MatchRate  float64 `csv:"match_rate" db:"match_rate"` // matches per candidate

	// Agents with any flag beyond idle at window end
	ActiveAgents int `csv:"active_agents" db:"active_agents"`

	Channels [components.NumChannels]ChannelStats `csv:"-" db:"-"`
}

// ChannelStats is the distribution of one channel across all agents at window end.
type ChannelStats struct {
	WindowEndTick int32   `csv:"window_end" db:"window_end"`
	Channel       string  `csv:"channel" db:"channel"`
	Mean          float64 `csv:"mean" db:"mean"`
	Std           float64 `csv:"std" db:"std"`
	Min           float64 `csv:"min" db:"min"`
	P10           float64 `csv:"p10" db:"p10"`
	P50           float64 `csv:"p50" db:"p50"`
	P90           float64 `csv:"p90" db:"p90"`
	Max           float64 `csv:"max" db:"max"`

	HabituationMean float64 `csv:"habituation_mean" db:"habituation_mean"`
	DriftMean       float64 `csv:"drift_mean" db:"drift_mean"`
}

// Distribution summarises a sample.
type Distribution struct {
	Mean, Std     float64
	Min, Max      float64
	P10, P50, P90 float64
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistribution calculates mean, sample standard deviation, extremes and
// percentiles. values is sorted in place.
func ComputeDistribution(values []float64) Distribution {
	n := len(values)
	if n == 0 {
		return Distribution{}
	}

	var d Distribution
	if n == 1 {
		d.Mean = values[0]
	} else {
		d.Mean, d.Std = stat.MeanStdDev(values, nil)
	}
	d.Min = floats.Min(values)
	d.Max = floats.Max(values)

	sort.Float64s(values)
	d.P10 = Percentile(values, 0.10)
	d.P50 = Percentile(values, 0.50)
	d.P90 = Percentile(values, 0.90)
	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.Agents),
		slog.Int("events", s.Events),
		slog.Int("emissions", s.Emissions),
		slog.Int("candidates", s.Candidates),
		slog.Int("matches", s.Matches),
		slog.Int("active_agents", s.ActiveAgents),
	}
	for _, c := range s.Channels {
		attrs = append(attrs, slog.Any(c.Channel, c))
	}
	return slog.GroupValue(attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (c ChannelStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("mean", c.Mean),
		slog.Float64("std", c.Std),
		slog.Float64("p10", c.P10),
		slog.Float64("p50", c.P50),
		slog.Float64("p90", c.P90),
		slog.Float64("habituation", c.HabituationMean),
		slog.Float64("drift", c.DriftMean),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"agents", s.Agents,
		"events", s.Events,
		"emissions", s.Emissions,
		"candidates", s.Candidates,
		"matches", s.Matches,
		"match_rate", s.MatchRate,
		"active_agents", s.ActiveAgents,
		"security_mean", s.Channels[components.Security].Mean,
		"security_p10", s.Channels[components.Security].P10,
		"vitality_mean", s.Channels[components.Vitality].Mean,
		"dominance_mean", s.Channels[components.Dominance].Mean,
		"engagement_mean", s.Channels[components.Engagement].Mean,
	)
}
