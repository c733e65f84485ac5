package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/config"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v", om, err)
	}
	// All methods are nil-safe.
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteEvents([]EventRecord{{Name: "danger"}}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := int32(1); i <= 2; i++ {
		s := WindowStats{WindowEndTick: i * 125, Agents: 10, Matches: 4}
		for _, ch := range components.Channels {
			s.Channels[ch] = ChannelStats{WindowEndTick: s.WindowEndTick, Channel: ch.String(), Mean: -1}
		}
		if err := om.WriteTelemetry(s); err != nil {
			t.Fatal(err)
		}
		if err := om.WritePerf(PerfStats{PhasePct: map[string]float64{}}, s.WindowEndTick); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteEvents([]EventRecord{
		{Frame: 60, Source: SourceSchedule, Name: "danger", Intensity: -40, Matched: 3},
		{Frame: 61, Source: SourceEmission, Name: "bleat", Intensity: 4, Radius: 120},
	}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkPanic, Tick: 250, Description: "p10 -35"}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteExposure([]SpeciesExposure{{Species: "sheep", Agents: 10}}); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	tel := readLines(t, filepath.Join(dir, "telemetry.csv"))
	if len(tel) != 3 || !strings.HasPrefix(tel[0], "window_end,") {
		t.Errorf("telemetry.csv = %q", tel)
	}
	if strings.Contains(tel[0], "window_start") {
		t.Error("telemetry header leaks window_start")
	}

	ch := readLines(t, filepath.Join(dir, "channels.csv"))
	if len(ch) != 1+2*components.NumChannels {
		t.Errorf("channels.csv has %d lines", len(ch))
	}
	if !strings.Contains(ch[1], "Vitality") {
		t.Errorf("first channel row = %q", ch[1])
	}

	if perf := readLines(t, filepath.Join(dir, "perf.csv")); len(perf) != 3 {
		t.Errorf("perf.csv = %q", perf)
	}

	ev := readLines(t, filepath.Join(dir, "events.csv"))
	if len(ev) != 3 || !strings.Contains(ev[1], "schedule") || !strings.Contains(ev[2], "bleat") {
		t.Errorf("events.csv = %q", ev)
	}

	if bm := readLines(t, filepath.Join(dir, "bookmarks.csv")); len(bm) != 2 || !strings.Contains(bm[1], "panic") {
		t.Errorf("bookmarks.csv = %q", bm)
	}
	if ex := readLines(t, filepath.Join(dir, "exposure.csv")); len(ex) != 2 {
		t.Errorf("exposure.csv = %q", ex)
	}
}

func TestOutputManagerWriteConfig(t *testing.T) {
	om, err := NewOutputManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(filepath.Join(om.Dir(), "config.yaml")); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
}
