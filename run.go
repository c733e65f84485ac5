package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/hfps/config"
	"github.com/pthm-cable/hfps/game"
	"github.com/pthm-cable/hfps/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a headless simulation",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		seed, _ := cmd.Flags().GetInt64("seed")
		maxFrames, _ := cmd.Flags().GetInt("max-frames")
		statsWindow, _ := cmd.Flags().GetFloat64("stats-window")
		outputDir, _ := cmd.Flags().GetString("output-dir")
		dbPath, _ := cmd.Flags().GetString("db")
		logStats, _ := cmd.Flags().GetBool("log-stats")
		stepsPerUpdate, _ := cmd.Flags().GetInt("steps-per-update")

		// Initialize config before anything else
		if err := config.Init(configPath); err != nil {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg := config.Cfg()

		// Flag, then config, then clock
		rngSeed := seed
		if rngSeed == 0 {
			rngSeed = cfg.Sim.Seed
		}
		if rngSeed == 0 {
			rngSeed = time.Now().UnixNano()
		}
		if !cmd.Flags().Changed("max-frames") {
			maxFrames = cfg.Sim.MaxFrames
		}

		var windows int
		g, err := game.NewGameWithOptions(game.Options{
			Seed:           rngSeed,
			LogStats:       logStats,
			StatsWindowSec: statsWindow,
			OutputDir:      outputDir,
			DBPath:         dbPath,
			StepsPerUpdate: stepsPerUpdate,
			StatsCallback:  func(telemetry.WindowStats) { windows++ },
		})
		if err != nil {
			return fmt.Errorf("starting simulation: %w", err)
		}
		defer g.Unload()

		slog.Info("starting headless simulation",
			"seed", rngSeed,
			"agents", g.Agents().Count(),
			"max_frames", maxFrames,
			"steps_per_update", stepsPerUpdate,
			"output_dir", outputDir,
		)

		start := time.Now()
		for {
			g.UpdateHeadless()

			if maxFrames > 0 && int(g.Tick()) >= maxFrames {
				slog.Info("max frames reached", "tick", g.Tick())
				break
			}
		}

		elapsed := time.Since(start)
		agentFrames := int64(g.Agents().Count()) * int64(g.Tick())
		slog.Info("run complete",
			"frames", humanize.Comma(int64(g.Tick())),
			"agent_frames", humanize.Comma(agentFrames),
			"windows", windows,
			"dropped_emissions", g.DroppedEmissions(),
			"elapsed", elapsed.Round(time.Millisecond).String(),
			"agent_frames_per_sec", humanize.Comma(int64(float64(agentFrames)/max(elapsed.Seconds(), 1e-9))),
		)
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "", "Path to config.yaml (empty = use defaults)")
	runCmd.Flags().Int64("seed", 0, "RNG seed (0 = config sim.seed, then time-based)")
	runCmd.Flags().Int("max-frames", 0, "Stop after N frames (0 = unlimited, default from config)")
	runCmd.Flags().Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")
	runCmd.Flags().String("output-dir", "", "Output directory for CSV logs and config snapshot")
	runCmd.Flags().String("db", "", "SQLite file to record run windows and events into")
	runCmd.Flags().Bool("log-stats", false, "Output stats via slog")
	runCmd.Flags().Int("steps-per-update", 1, "Frames per update call")
}
