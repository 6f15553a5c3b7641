package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rulesift/rulesift/internal/config"
	"github.com/rulesift/rulesift/internal/report"
)

func newReportCmd() *cobra.Command {
	var configPath string
	var inputPath string
	var runID string
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Re-render a saved analysis result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (inputPath == "") == (runID == "") {
				return errors.New("exactly one of --in or --run is required")
			}
			outputFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}

			var result report.AnalysisResult
			if inputPath != "" {
				result, err = report.ReadResult(inputPath)
				if err != nil {
					return err
				}
			} else {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				repo, err := requireStore(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer func() { _ = repo.Close() }()
				run, err := repo.GetRun(cmd.Context(), runID)
				if err != nil {
					return err
				}
				result = run.Result
			}

			data, err := report.Render(result, outputFormat)
			if err != nil {
				return err
			}
			return report.WriteOutput(outPath, data)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (for --run)")
	cmd.Flags().StringVar(&inputPath, "in", "", "Path to a JSON or YAML analysis result")
	cmd.Flags().StringVar(&runID, "run", "", "Stored run id")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|md|json|yaml|csv")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")

	return cmd
}
