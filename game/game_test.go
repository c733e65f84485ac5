package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/config"
	"github.com/pthm-cable/hfps/telemetry"
)

const (
	flagFleeing components.Flag = 1 << 1
	flagGrazing components.Flag = 1 << 2
)

// emptyConfig returns the defaults with no population and no schedule.
func emptyConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Population.Species = []config.SpeciesSpawnConfig{{Name: "sheep", Count: 0}}
	cfg.Events = nil
	return cfg
}

func newTestGame(t *testing.T, cfg *config.Config) *Game {
	t.Helper()
	g, err := NewGameWithOptions(Options{Seed: 1, Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Unload)
	return g
}

func TestNewGameSpawnsPopulation(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	g := newTestGame(t, cfg)

	if g.Agents().Count() != 420 {
		t.Fatalf("agents = %d, want 420", g.Agents().Count())
	}
	if g.Species().Len() != 2 {
		t.Errorf("species = %d, want 2", g.Species().Len())
	}

	w, h := g.grid.Extent()
	wolves := 0
	for i := 0; i < g.Agents().Count(); i++ {
		x, y, err := g.Agents().Position(i)
		if err != nil {
			t.Fatal(err)
		}
		if x < 0 || x >= w || y < 0 || y >= h {
			t.Errorf("agent %d at (%v, %v) outside %vx%v", i, x, y, w, h)
		}
		if sp, _ := g.Agents().SpeciesOf(i); sp == 1 {
			wolves++
		}
	}
	if wolves != 20 {
		t.Errorf("wolves = %d, want 20", wolves)
	}
	if _, err := g.Entity(420); err == nil {
		t.Error("Entity beyond count should fail")
	}
}

func TestSpawnIsDeterministic(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	a := newTestGame(t, cfg)
	b := newTestGame(t, cfg)

	for i := 0; i < a.Agents().Count(); i++ {
		ax, ay, _ := a.Agents().Position(i)
		bx, by, _ := b.Agents().Position(i)
		if ax != bx || ay != by {
			t.Fatalf("agent %d: (%v, %v) vs (%v, %v)", i, ax, ay, bx, by)
		}
	}
}

func TestScheduledEventAndEmissionFeedback(t *testing.T) {
	cfg := emptyConfig(t)
	cfg.Events = []config.EventConfig{{Name: "danger", X: 500, Y: 500, Intensity: -40}}
	g := newTestGame(t, cfg)

	e, err := g.SpawnAgent(500, 500, "sheep")
	if err != nil {
		t.Fatal(err)
	}

	g.UpdateHeadless()
	p := g.Pressure(e)
	if p.Channels[components.Security] > -30 {
		t.Errorf("security = %v, want <= -30", p.Channels[components.Security])
	}
	if !p.Has(flagFleeing) {
		t.Errorf("flags = %b, want fleeing", p.Flags)
	}
	if p.Habituation[components.Security] >= 0 {
		t.Errorf("security habituation = %v, want negative", p.Habituation[components.Security])
	}
	// The bleat is queued, not heard on the frame it was raised.
	if p.Channels[components.Engagement] != 0 {
		t.Errorf("engagement = %v on the emitting frame", p.Channels[components.Engagement])
	}

	g.UpdateHeadless()
	if g.Pressure(e).Channels[components.Engagement] <= 0 {
		t.Errorf("engagement = %v, want bleat feedback", g.Pressure(e).Channels[components.Engagement])
	}
	if g.Tick() != 2 {
		t.Errorf("tick = %d, want 2", g.Tick())
	}
}

func TestEmissionsDisabled(t *testing.T) {
	cfg := emptyConfig(t)
	cfg.Events = []config.EventConfig{{Name: "danger", X: 500, Y: 500, Intensity: -40}}
	cfg.Emissions.Enabled = false
	g := newTestGame(t, cfg)

	e, err := g.SpawnAgent(500, 500, "sheep")
	if err != nil {
		t.Fatal(err)
	}
	g.UpdateHeadless()
	g.UpdateHeadless()
	if g.Pressure(e).Channels[components.Engagement] != 0 {
		t.Errorf("engagement = %v with emissions disabled", g.Pressure(e).Channels[components.Engagement])
	}
}

func TestEmissionCap(t *testing.T) {
	cfg := emptyConfig(t)
	cfg.Events = []config.EventConfig{{Name: "danger", X: 500, Y: 500, Intensity: -40}}
	cfg.Emissions.MaxPerFrame = 1
	g := newTestGame(t, cfg)

	for i := 0; i < 3; i++ {
		if _, err := g.SpawnAgent(500, 500, "sheep"); err != nil {
			t.Fatal(err)
		}
	}
	g.UpdateHeadless()
	if g.DroppedEmissions() != 2 {
		t.Errorf("dropped = %d, want 2", g.DroppedEmissions())
	}
	if len(g.emissions) != 1 {
		t.Errorf("queued emissions = %d, want 1", len(g.emissions))
	}
}

func TestEventLogRecordsQueriedRadius(t *testing.T) {
	cfg := emptyConfig(t)
	cfg.Broker.MaxInfluenceRadius = 500
	cfg.Derived.Radius32 = 500
	cfg.Events = []config.EventConfig{{Name: "danger", X: 500, Y: 500, Intensity: -40}}
	g := newTestGame(t, cfg)

	g.QueueEvent(components.WorldEvent{Name: "food", X: 10, Y: 10, BaseIntensity: 5, Radius: 80})
	g.UpdateHeadless()

	if len(g.eventLog) != 2 {
		t.Fatalf("event log = %+v, want 2 records", g.eventLog)
	}
	if g.eventLog[0].Radius != 500 {
		t.Errorf("scheduled event radius = %v, want broker default 500", g.eventLog[0].Radius)
	}
	if g.eventLog[1].Radius != 80 {
		t.Errorf("queued event radius = %v, want 80", g.eventLog[1].Radius)
	}
}

func TestQueueEvent(t *testing.T) {
	g := newTestGame(t, emptyConfig(t))

	e, err := g.SpawnAgent(100, 100, "sheep")
	if err != nil {
		t.Fatal(err)
	}
	g.QueueEvent(components.WorldEvent{Name: "food", X: 100, Y: 100, BaseIntensity: 25})
	g.UpdateHeadless()

	p := g.Pressure(e)
	if p.Channels[components.Vitality] < 15 || !p.Has(flagGrazing) {
		t.Errorf("after food: vitality %v flags %b", p.Channels[components.Vitality], p.Flags)
	}
	if len(g.queued) != 0 {
		t.Error("queue not drained")
	}

	// Events are consumed once.
	before := p.Channels[components.Vitality]
	g.UpdateHeadless()
	if g.Pressure(e).Channels[components.Vitality] >= before {
		t.Error("vitality grew without a new event")
	}
}

func TestMoveTakesEffectNextFrame(t *testing.T) {
	g := newTestGame(t, emptyConfig(t))

	e, err := g.SpawnAgent(100, 100, "sheep")
	if err != nil {
		t.Fatal(err)
	}
	g.Move(e, 900, 900)
	g.QueueEvent(components.WorldEvent{Name: "food", X: 100, Y: 100, BaseIntensity: 25})
	g.UpdateHeadless()

	if x, y, _ := g.Agents().Position(0); x != 900 || y != 900 {
		t.Errorf("store position = (%v, %v), want (900, 900)", x, y)
	}
	if v := g.Pressure(e).Channels[components.Vitality]; v != 0 {
		t.Errorf("vitality = %v, moved agent should be out of range", v)
	}
}

func TestSpawnAgentErrors(t *testing.T) {
	cfg := emptyConfig(t)
	cfg.Grid.AgentSlots = 1
	g := newTestGame(t, cfg)

	if _, err := g.SpawnAgent(0, 0, "unicorn"); err == nil {
		t.Error("unknown species accepted")
	}
	if _, err := g.SpawnAgent(0, 0, "sheep"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.SpawnAgent(0, 0, "sheep"); err == nil {
		t.Error("spawn beyond agent slots accepted")
	}
}

func TestTelemetryOutput(t *testing.T) {
	cfg := emptyConfig(t)
	cfg.Population.Species = []config.SpeciesSpawnConfig{{Name: "sheep", Count: 50}, {Name: "wolf", Count: 5}}
	cfg.Events = []config.EventConfig{{Name: "danger", X: 500, Y: 500, Intensity: -40, Every: 5}}

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	var windows []telemetry.WindowStats
	g, err := NewGameWithOptions(Options{
		Seed:           3,
		Config:         cfg,
		StatsWindowSec: 0.16,
		StepsPerUpdate: 5,
		OutputDir:      filepath.Join(dir, "out"),
		DBPath:         dbPath,
		StatsCallback:  func(s telemetry.WindowStats) { windows = append(windows, s) },
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		g.UpdateHeadless()
	}
	runID := g.recorder.RunID()
	g.Unload()

	if g.Tick() != 20 {
		t.Fatalf("tick = %d, want 20", g.Tick())
	}
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}
	if windows[0].Events != 2 || windows[0].Agents != 55 || windows[1].WindowEndTick != 20 {
		t.Errorf("first window = %+v", windows[0])
	}

	for _, name := range []string{"config.yaml", "telemetry.csv", "channels.csv", "perf.csv", "events.csv", "exposure.csv"} {
		if _, err := os.Stat(filepath.Join(dir, "out", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	r, err := telemetry.OpenRecorder(dbPath, 0, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close(0)
	recorded, err := r.Windows(runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recorded) != 2 {
		t.Errorf("recorded windows = %d, want 2", len(recorded))
	}
}
