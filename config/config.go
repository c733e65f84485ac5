// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Sim        SimConfig        `yaml:"sim"`
	Grid       GridConfig       `yaml:"grid"`
	Broker     BrokerConfig     `yaml:"broker"`
	Population PopulationConfig `yaml:"population"`
	Events     []EventConfig    `yaml:"events"`
	Emissions  EmissionsConfig  `yaml:"emissions"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimConfig holds frame loop parameters.
type SimConfig struct {
	Seed      int64 `yaml:"seed"`
	Capacity  int   `yaml:"capacity"`   // Agent store preallocation
	MaxFrames int   `yaml:"max_frames"` // 0 = run until interrupted
}

// GridConfig holds the spatial grid layout.
type GridConfig struct {
	Cols       int     `yaml:"cols"`
	Rows       int     `yaml:"rows"`
	CellSize   float64 `yaml:"cell_size"`
	AgentSlots int     `yaml:"agent_slots"`
}

// BrokerConfig holds event broker parameters.
type BrokerConfig struct {
	// 0 derives the radius from the largest listener radius of the loaded species.
	MaxInfluenceRadius float64 `yaml:"max_influence_radius"`
}

// PopulationConfig holds the species files and spawn parameters.
type PopulationConfig struct {
	Species    []SpeciesSpawnConfig `yaml:"species"`
	NoiseScale float64              `yaml:"noise_scale"` // Spawn density noise frequency
	NoiseFloor float64              `yaml:"noise_floor"` // Reject spawn points below this noise value
}

// SpeciesSpawnConfig pairs a species descriptor with how many agents to spawn.
// An empty file selects the embedded species of the same name.
type SpeciesSpawnConfig struct {
	Name  string `yaml:"name"`
	File  string `yaml:"file"`
	Count int    `yaml:"count"`
}

// EventConfig describes a scheduled world event.
type EventConfig struct {
	Name      string  `yaml:"name"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	Intensity float64 `yaml:"intensity"`
	Radius    float64 `yaml:"radius"`   // 0 = broker radius
	AtFrame   int     `yaml:"at_frame"` // First frame the event fires on
	Every     int     `yaml:"every"`    // Repeat interval in frames, 0 = once
}

// FiresAt reports whether the event is scheduled for frame.
func (e EventConfig) FiresAt(frame int) bool {
	if frame < e.AtFrame {
		return false
	}
	if e.Every <= 0 {
		return frame == e.AtFrame
	}
	return (frame-e.AtFrame)%e.Every == 0
}

// EmissionsConfig controls agent-emitted events.
type EmissionsConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxPerFrame int  `yaml:"max_per_frame"` // 0 = unlimited
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"` // Seconds of simulated time per window
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	BookmarkHistorySize int     `yaml:"bookmark_history_size"`
	PanicLevel          float64 `yaml:"panic_level"` // Security p10 that marks a panic bookmark
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32       float32
	CellSize32 float32
	Radius32   float32

	// Telemetry.StatsWindow in frames, at least 1
	WindowFrames int
}

// TickDT is the fixed simulation step in seconds.
const TickDT = 0.016

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the simulation.
func (c *Config) Validate() error {
	if c.Grid.Cols <= 0 || c.Grid.Rows <= 0 || c.Grid.CellSize <= 0 || c.Grid.AgentSlots <= 0 {
		return fmt.Errorf("config: grid %dx%d cell %v slots %d must all be positive",
			c.Grid.Cols, c.Grid.Rows, c.Grid.CellSize, c.Grid.AgentSlots)
	}
	if c.Broker.MaxInfluenceRadius < 0 {
		return fmt.Errorf("config: broker.max_influence_radius %v is negative", c.Broker.MaxInfluenceRadius)
	}
	total := 0
	for _, s := range c.Population.Species {
		if s.Name == "" && s.File == "" {
			return fmt.Errorf("config: population species entry needs a name or a file")
		}
		if s.Count < 0 {
			return fmt.Errorf("config: species %q count %d is negative", s.Name, s.Count)
		}
		total += s.Count
	}
	if total > c.Grid.AgentSlots {
		return fmt.Errorf("config: population %d exceeds grid.agent_slots %d", total, c.Grid.AgentSlots)
	}
	for i, e := range c.Events {
		if e.Name == "" {
			return fmt.Errorf("config: event %d has no name", i)
		}
		if e.Radius < 0 || e.AtFrame < 0 || e.Every < 0 {
			return fmt.Errorf("config: event %q has a negative radius or schedule", e.Name)
		}
	}
	return nil
}

// WindowFrames converts a stats window in seconds to whole frames, at least 1.
func WindowFrames(seconds float64) int {
	return max(int(math.Round(seconds/TickDT)), 1)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = TickDT
	c.Derived.CellSize32 = float32(c.Grid.CellSize)
	c.Derived.Radius32 = float32(c.Broker.MaxInfluenceRadius)
	c.Derived.WindowFrames = WindowFrames(c.Telemetry.StatsWindow)
	if c.Sim.Capacity <= 0 {
		c.Sim.Capacity = c.Grid.AgentSlots
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
