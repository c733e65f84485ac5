package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hfps",
	Short: "Homeostatic pressure simulation",
	Long: `hfps drives a population of agents whose behavior flags emerge from four
pressure channels (Vitality, Security, Dominance, Engagement). World events
push pressure into nearby listeners; pressure decays, agents habituate, and
repeated exposure drifts their long-term sensitivity.

Run a headless simulation:
  hfps run --config sim.yaml --output-dir out/

Check species descriptors:
  hfps validate species/*.yaml`,
	SilenceUsage: true,
}

func init() {
	// JSON to stdout for structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
