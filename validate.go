package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/hfps/components"
	"github.com/pthm-cable/hfps/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [species.yaml...]",
	Short: "Parse and validate species descriptors (built-in species when none given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		var failed int
		report := func(source string, p components.BehaviorProfile, err error) {
			if err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", source, err)
				return
			}
			fmt.Printf("ok   %s: %s (%d thresholds, %d listeners, %d emissions, listen radius %.0f)\n",
				source, p.Name, len(p.Thresholds), len(p.Listeners), len(p.Emissions), p.MaxListenerRadius())
		}

		if len(args) == 0 {
			for _, name := range config.EmbeddedSpeciesNames() {
				p, err := config.EmbeddedSpecies(name)
				report("builtin:"+name, p, err)
			}
		}
		for _, path := range args {
			p, err := config.LoadSpecies(path)
			report(path, p, err)
		}

		if configPath != "" {
			cfg, err := config.Load(configPath)
			if err == nil {
				_, _, err = config.LoadPopulation(cfg.Population)
			}
			if err != nil {
				failed++
				fmt.Printf("FAIL %s: %v\n", configPath, err)
			} else {
				fmt.Printf("ok   %s\n", configPath)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d invalid", failed)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().String("config", "", "Also load this config and its population")
}
