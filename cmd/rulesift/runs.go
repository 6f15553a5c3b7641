package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rulesift/rulesift/internal/config"
)

func newRunsCmd() *cobra.Command {
	var configPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored analysis runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			repo, err := requireStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tRULES\tRECORDS\tRELATIONSHIPS\tRULES SOURCE")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
					run.ID, run.CreatedAt.Format(time.RFC3339), run.TotalRules, run.TotalRecords, run.TotalRelationships, run.RulesSource)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list")

	return cmd
}
