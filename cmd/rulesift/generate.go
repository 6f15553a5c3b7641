package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rulesift/rulesift/internal/seed"
	"github.com/rulesift/rulesift/internal/tables"
)

func newGenerateCmd() *cobra.Command {
	var outDir string
	var records int
	var seedValue int64
	var attackRatio float64

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a sample rule table and synthetic traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if records < 1 {
				return fmt.Errorf("--records must be > 0")
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			gen := seed.New(seedValue)
			gen.AttackRatio = attackRatio

			rulesPath := filepath.Join(outDir, "rules.csv")
			if err := writeFile(rulesPath, func(f *os.File) error {
				return tables.WriteRulesCSV(f, seed.Rules())
			}); err != nil {
				return err
			}
			trafficPath := filepath.Join(outDir, "traffic.csv")
			if err := writeFile(trafficPath, func(f *os.File) error {
				return tables.WriteTrafficCSV(f, gen.Traffic(records))
			}); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", rulesPath, trafficPath)
			return err
		},
	}

	cmd.Flags().StringVar(&outDir, "out", ".", "Output directory")
	cmd.Flags().IntVar(&records, "records", 1000, "Number of traffic records")
	cmd.Flags().Int64Var(&seedValue, "seed", 1, "Generator seed")
	cmd.Flags().Float64Var(&attackRatio, "attack-ratio", 0.3, "Share of records carrying attack payloads")

	return cmd
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
