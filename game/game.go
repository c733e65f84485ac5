// Package game hosts the pressure core inside an ECS world and drives it one
// fixed-step frame at a time.
package game

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/config"
	"github.com/pthm-cable/hfps/systems"
	"github.com/pthm-cable/hfps/telemetry"
)

// Options configures game initialization.
type Options struct {
	Seed           int64
	LogStats       bool
	StatsWindowSec float64 // 0 = use config
	OutputDir      string  // empty = no CSV output
	DBPath         string  // empty = no SQLite run log
	StepsPerUpdate int     // frames per UpdateHeadless call, min 1

	// Config overrides the global config. Nil uses config.Cfg().
	Config *config.Config

	// StatsCallback is invoked with each flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Game holds the complete simulation state.
type Game struct {
	cfg     *config.Config
	world   *ecs.World
	rng     *rand.Rand
	rngSeed int64

	// Host-side view of each agent
	agentMapper *ecs.Map3[components.Position, components.Agent, components.Pressure]
	agentFilter *ecs.Filter3[components.Position, components.Agent, components.Pressure]
	posMap      *ecs.Map1[components.Position]
	pressureMap *ecs.Map1[components.Pressure]
	entities    []ecs.Entity // by agent index

	// Pressure core
	species *components.SpeciesTable
	agents  *systems.AgentSystem
	grid    *systems.SpatialGrid
	broker  *systems.EventBroker

	// Event queues. queued holds host events for the next frame; emissions
	// holds the previous frame's agent emissions.
	queued           []components.WorldEvent
	emissions        []components.WorldEvent
	emissionBuf      []components.WorldEvent
	droppedEmissions int

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	outputManager    *telemetry.OutputManager
	recorder         *telemetry.Recorder
	bookmarkDetector *telemetry.BookmarkDetector
	exposure         *telemetry.ExposureTracker
	eventLog         []telemetry.EventRecord // current window
	logStats         bool
	statsCallback    func(telemetry.WindowStats)

	tick           int32
	stepsPerUpdate int
}

// NewGameWithOptions creates a game, loads its species and spawns the
// configured population.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	table, ids, err := config.LoadPopulation(cfg.Population)
	if err != nil {
		return nil, fmt.Errorf("loading population: %w", err)
	}

	grid, err := systems.NewSpatialGrid(systems.GridConfig{
		Cols:       cfg.Grid.Cols,
		Rows:       cfg.Grid.Rows,
		CellSize:   cfg.Derived.CellSize32,
		AgentSlots: cfg.Grid.AgentSlots,
	})
	if err != nil {
		return nil, err
	}

	world := ecs.NewWorld()
	g := &Game{
		cfg:            cfg,
		world:          world,
		rng:            rand.New(rand.NewSource(opts.Seed)),
		rngSeed:        opts.Seed,
		agentMapper:    ecs.NewMap3[components.Position, components.Agent, components.Pressure](world),
		agentFilter:    ecs.NewFilter3[components.Position, components.Agent, components.Pressure](world),
		posMap:         ecs.NewMap1[components.Position](world),
		pressureMap:    ecs.NewMap1[components.Pressure](world),
		species:        table,
		agents:         systems.NewAgentSystem(cfg.Sim.Capacity, table),
		grid:           grid,
		broker:         systems.NewEventBroker(cfg.Derived.Radius32),
		logStats:       opts.LogStats,
		statsCallback:  opts.StatsCallback,
		stepsPerUpdate: max(opts.StepsPerUpdate, 1),
	}

	windowFrames := cfg.Derived.WindowFrames
	if opts.StatsWindowSec > 0 {
		windowFrames = config.WindowFrames(opts.StatsWindowSec)
	}
	g.collector = telemetry.NewCollector(windowFrames, cfg.Derived.DT32)
	g.perfCollector = telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	g.bookmarkDetector = telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize, cfg.Telemetry.PanicLevel)

	if err := g.spawnPopulation(ids); err != nil {
		return nil, err
	}
	g.exposure = telemetry.NewExposureTracker(g.agents.Count())

	if g.outputManager, err = telemetry.NewOutputManager(opts.OutputDir); err != nil {
		return nil, err
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		g.outputManager.Close()
		return nil, err
	}

	names := make([]string, 0, table.Len())
	for _, p := range table.Profiles() {
		names = append(names, p.Name)
	}
	if g.recorder, err = telemetry.OpenRecorder(opts.DBPath, opts.Seed, names, g.agents.Count()); err != nil {
		g.outputManager.Close()
		return nil, err
	}

	slog.Info("game initialized",
		"seed", opts.Seed,
		"agents", g.agents.Count(),
		"species", table.Len(),
		"cells", grid.CellCount(),
		"window_ticks", g.collector.WindowDurationTicks(),
		"run_id", g.recorder.RunID(),
	)
	return g, nil
}

// Tick returns the number of frames simulated so far.
func (g *Game) Tick() int32 {
	return g.tick
}

// Seed returns the spawn RNG seed.
func (g *Game) Seed() int64 {
	return g.rngSeed
}

// Agents exposes the dense agent store.
func (g *Game) Agents() *systems.AgentSystem {
	return g.agents
}

// Species returns the loaded species table.
func (g *Game) Species() *components.SpeciesTable {
	return g.species
}

// Entity returns the host entity for agent index i.
func (g *Game) Entity(i int) (ecs.Entity, error) {
	if i < 0 || i >= len(g.entities) {
		return ecs.Entity{}, fmt.Errorf("entity %d (count %d): %w", i, len(g.entities), systems.ErrIndexOutOfRange)
	}
	return g.entities[i], nil
}

// Pressure returns the readout component of e as of the last frame.
func (g *Game) Pressure(e ecs.Entity) *components.Pressure {
	return g.pressureMap.Get(e)
}

// Move sets the host position of e. It takes effect at the next frame's grid
// rebuild.
func (g *Game) Move(e ecs.Entity, x, y float32) {
	pos := g.posMap.Get(e)
	pos.X, pos.Y = x, y
}

// QueueEvent queues ev for the next frame. Queued events are emitted after
// scheduled ones, in queue order.
func (g *Game) QueueEvent(ev components.WorldEvent) {
	g.queued = append(g.queued, ev)
}

// DroppedEmissions returns how many emissions were discarded by the per-frame cap.
func (g *Game) DroppedEmissions() int {
	return g.droppedEmissions
}

// UpdateHeadless runs StepsPerUpdate frames.
func (g *Game) UpdateHeadless() {
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.simulationStep()
	}
}

// Unload writes the exposure summary and closes output.
func (g *Game) Unload() {
	if g.outputManager != nil {
		if err := g.outputManager.WriteEvents(g.eventLog); err != nil {
			slog.Error("failed to write events", "error", err)
		}
		if err := g.outputManager.WriteExposure(g.exposure.Summary(g.agents, g.cfg.Derived.DT32)); err != nil {
			slog.Error("failed to write exposure", "error", err)
		}
	}
	if err := g.recorder.RecordEvents(g.eventLog); err != nil {
		slog.Error("failed to record events", "error", err)
	}
	g.eventLog = g.eventLog[:0]

	if err := g.outputManager.Close(); err != nil {
		slog.Error("failed to close output", "error", err)
	}
	if err := g.recorder.Close(g.tick); err != nil {
		slog.Error("failed to close recorder", "error", err)
	}
	if g.droppedEmissions > 0 {
		slog.Warn("emissions dropped by per-frame cap", "dropped", g.droppedEmissions)
	}
}
