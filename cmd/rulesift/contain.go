package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rulesift/rulesift/internal/config"
	"github.com/rulesift/rulesift/internal/fuzz"
	"github.com/rulesift/rulesift/internal/rules"
	"github.com/rulesift/rulesift/internal/tables"
)

func newContainCmd() *cobra.Command {
	var configPath string
	var general string
	var specific string
	var flags string
	var trafficPath string
	var seed uint64

	cmd := &cobra.Command{
		Use:   "contain",
		Short: "Estimate whether one pattern accepts everything another does",
		RunE: func(cmd *cobra.Command, args []string) error {
			if general == "" || specific == "" {
				return errors.New("--general and --specific are required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			generalRule, err := rules.Compile(rules.Definition{ID: "general", Pattern: general, Flags: flags, Action: "log"}, 0)
			if err != nil {
				return fmt.Errorf("general pattern: %w", err)
			}
			specificRule, err := rules.Compile(rules.Definition{ID: "specific", Pattern: specific, Flags: flags, Action: "log"}, 1)
			if err != nil {
				return fmt.Errorf("specific pattern: %w", err)
			}

			var examples []string
			both := 0
			if trafficPath != "" {
				records, err := tables.LoadTraffic(trafficPath)
				if err != nil {
					return err
				}
				for _, rec := range records {
					text := rec.SearchText()
					if !specificRule.Accepts(text) {
						continue
					}
					examples = append(examples, text)
					if generalRule.Accepts(text) {
						both++
					}
				}
			}

			est := cfg.Fuzz.Estimate(fuzz.PairSource(seed, generalRule.ID, specificRule.ID), generalRule, examples)

			out := cmd.OutOrStdout()
			if trafficPath != "" {
				containment := 0.0
				if len(examples) > 0 {
					containment = float64(both) / float64(len(examples))
				}
				fmt.Fprintf(out, "traffic: specific=%d both=%d containment=%.3f\n", len(examples), both, containment)
			}
			source := "traffic examples"
			if est.Random {
				source = "random strings"
			}
			_, err = fmt.Fprintf(out, "fuzz: %d/%d %s accepted (%.3f)\n", est.Hits, est.Trials, source, est.Ratio)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (fuzz settings)")
	cmd.Flags().StringVar(&general, "general", "", "Pattern expected to contain the other")
	cmd.Flags().StringVar(&specific, "specific", "", "Pattern expected to be contained")
	cmd.Flags().StringVar(&flags, "flags", "", "Regex flags for both patterns (e.g. i)")
	cmd.Flags().StringVar(&trafficPath, "traffic", "", "Traffic table supplying real examples")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Sampling seed")

	return cmd
}
