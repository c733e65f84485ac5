package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load defaults: %v", err)
	}

	if cfg.Grid.Cols != 20 || cfg.Grid.Rows != 20 || cfg.Grid.AgentSlots != 2000 {
		t.Errorf("grid = %+v", cfg.Grid)
	}
	if cfg.Sim.Capacity != cfg.Grid.AgentSlots {
		t.Errorf("capacity = %d, want agent slots", cfg.Sim.Capacity)
	}
	if cfg.Derived.WindowFrames != 125 {
		t.Errorf("window frames = %d, want 125", cfg.Derived.WindowFrames)
	}
	if len(cfg.Population.Species) == 0 {
		t.Error("no default population")
	}
}

func TestLoadOverlay(t *testing.T) {
	path := writeFile(t, "cfg.yaml", `
grid:
  cell_size: 25
broker:
  max_influence_radius: 0
emissions:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Grid.CellSize != 25 || cfg.Grid.Cols != 20 {
		t.Errorf("overlay grid = %+v", cfg.Grid)
	}
	if cfg.Derived.CellSize32 != 25 {
		t.Errorf("derived cell size = %v", cfg.Derived.CellSize32)
	}
	if cfg.Broker.MaxInfluenceRadius != 0 || cfg.Emissions.Enabled {
		t.Errorf("overlay not applied: %+v %+v", cfg.Broker, cfg.Emissions)
	}
}

func TestWindowFrames(t *testing.T) {
	tests := []struct {
		seconds float64
		want    int
	}{
		{2.0, 125},
		{0.16, 10},
		{0.001, 1},
		{0, 1},
	}
	for _, tt := range tests {
		if got := WindowFrames(tt.seconds); got != tt.want {
			t.Errorf("WindowFrames(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero cols", "grid:\n  cols: 0\n", "grid"},
		{"negative radius", "broker:\n  max_influence_radius: -1\n", "max_influence_radius"},
		{"too many agents", "population:\n  species:\n    - name: sheep\n      count: 5000\n", "agent_slots"},
		{"unnamed event", "events:\n  - x: 1\n", "no name"},
		{"negative schedule", "events:\n  - name: danger\n    every: -2\n", "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "cfg.yaml", tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEventFiresAt(t *testing.T) {
	once := EventConfig{Name: "danger", AtFrame: 10}
	repeat := EventConfig{Name: "food", AtFrame: 5, Every: 3}

	tests := []struct {
		ev    EventConfig
		frame int
		want  bool
	}{
		{once, 9, false},
		{once, 10, true},
		{once, 11, false},
		{repeat, 4, false},
		{repeat, 5, true},
		{repeat, 7, false},
		{repeat, 8, true},
		{repeat, 11, true},
	}
	for _, tt := range tests {
		if got := tt.ev.FiresAt(tt.frame); got != tt.want {
			t.Errorf("%s.FiresAt(%d) = %v, want %v", tt.ev.Name, tt.frame, got, tt.want)
		}
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Grid.CellSize = 40
	cfg.Sim.Seed = 7

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Grid.CellSize != 40 || back.Sim.Seed != 7 || len(back.Events) != len(cfg.Events) {
		t.Errorf("round trip lost values: %+v", back)
	}
}

func TestInitAndCfg(t *testing.T) {
	defer func() { global = nil }()

	if err := Init(""); err != nil {
		t.Fatal(err)
	}
	if Cfg().Grid.Cols != 20 {
		t.Errorf("Cfg().Grid.Cols = %d", Cfg().Grid.Cols)
	}
}
