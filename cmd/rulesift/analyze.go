package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rulesift/rulesift/internal/analysis"
	"github.com/rulesift/rulesift/internal/config"
	"github.com/rulesift/rulesift/internal/logging"
	"github.com/rulesift/rulesift/internal/observability"
	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/report"
	"github.com/rulesift/rulesift/internal/store"
	"github.com/rulesift/rulesift/internal/tables"
)

type analyzeFlags struct {
	configPath string
	rulesPath  string
	traffic    string
	detectors  string
	format     string
	outPath    string
	workers    int
	noPrune    bool
	seed       uint64
	save       bool
	noCache    bool
}

func newAnalyzeCmd() *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a rule table against a traffic table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Inputs.Rules == "" || cfg.Inputs.Traffic == "" {
				return fmt.Errorf("both --rules and --traffic are required")
			}
			return runAnalyze(cmd, cfg, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&f.rulesPath, "rules", "", "Rule table (csv|json|jsonl|yaml)")
	cmd.Flags().StringVar(&f.traffic, "traffic", "", "Traffic table (csv|json|jsonl|yaml)")
	cmd.Flags().StringVar(&f.detectors, "detectors", "", "Comma-separated detectors: SHD,RXD,COR,SUB (default all)")
	cmd.Flags().StringVar(&f.format, "format", "text", "Output format: text|md|json|yaml|csv")
	cmd.Flags().StringVar(&f.outPath, "out", "", "Output file path (default stdout)")
	cmd.Flags().IntVar(&f.workers, "workers", 1, "Parallel sweep workers")
	cmd.Flags().BoolVar(&f.noPrune, "no-prune", false, "Evaluate pairs involving already-shadowed rules")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "Seed for containment sampling")
	cmd.Flags().BoolVar(&f.save, "save", false, "Persist the result to the configured store")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Skip the result cache")

	return cmd
}

// apply copies explicitly set flags over the loaded config.
func (f analyzeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("rules") {
		cfg.Inputs.Rules = f.rulesPath
	}
	if flags.Changed("traffic") {
		cfg.Inputs.Traffic = f.traffic
	}
	if flags.Changed("detectors") {
		cfg.Analysis.Detectors = strings.Split(f.detectors, ",")
	}
	if flags.Changed("format") {
		cfg.Report.Format = f.format
	}
	if flags.Changed("out") {
		cfg.Report.Out = f.outPath
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers = f.workers
	}
	if flags.Changed("no-prune") {
		cfg.Analysis.Prune = !f.noPrune
	}
	if flags.Changed("seed") {
		cfg.Analysis.Seed = f.seed
	}
	if f.noCache {
		cfg.Cache.Enabled = false
	}
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, f analyzeFlags) error {
	ctx := cmd.Context()
	if cfg.Analysis.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Analysis.Timeout)
		defer cancel()
	}

	logger := newLogger(cfg)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	format, err := report.ParseFormat(cfg.Report.Format)
	if err != nil {
		return err
	}

	rulesPath := cfg.ResolvePath(cfg.Inputs.Rules)
	trafficPath := cfg.ResolvePath(cfg.Inputs.Traffic)
	defs, err := tables.LoadRules(rulesPath)
	if err != nil {
		return err
	}
	records, err := tables.LoadTraffic(trafficPath)
	if err != nil {
		return err
	}
	logger.Debug("inputs loaded", logging.Path(rulesPath), slog.Int("rules", len(defs)), slog.Int("records", len(records)))

	opts, err := analyzerOptions(cfg, logger, metrics)
	if err != nil {
		return err
	}
	fingerprint, err := analysis.Fingerprint(defs, records, opts)
	if err != nil {
		return err
	}

	cache, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()

	result, hit, err := cache.Get(ctx, fingerprint)
	if err != nil {
		logger.Warn("result cache read failed", logging.Error(err))
		hit = false
	}
	if hit {
		logger.Info("using cached result", slog.String("fingerprint", fingerprint))
	} else {
		result, err = analysis.New(opts).Run(ctx, defs, records)
		if err != nil {
			return err
		}
		if err := cache.Put(ctx, fingerprint, result); err != nil {
			logger.Warn("result cache write failed", logging.Error(err))
		}
	}

	runID, err := persist(ctx, cfg, f.save, rulesPath, trafficPath, fingerprint, result, logger)
	if err != nil {
		return err
	}

	if cfg.Logging.RelationshipLog != "" {
		if err := writeRelationshipLog(cfg.ResolvePath(cfg.Logging.RelationshipLog), runID, result); err != nil {
			return err
		}
	}

	data, err := report.Render(result, format)
	if err != nil {
		return err
	}
	if err := report.WriteOutput(outputPath(cfg), data); err != nil {
		return err
	}

	if cfg.Metrics.Textfile != "" {
		if err := observability.WriteTextfile(cfg.ResolvePath(cfg.Metrics.Textfile), registry); err != nil {
			logger.Warn("metrics textfile write failed", logging.Error(err))
		}
	}
	return nil
}

func outputPath(cfg *config.Config) string {
	if cfg.Report.Out == "" {
		return ""
	}
	return cfg.ResolvePath(cfg.Report.Out)
}

// persist saves the result when asked to and returns the new run id.
func persist(ctx context.Context, cfg *config.Config, save bool, rulesPath, trafficPath, fingerprint string, result report.AnalysisResult, logger *slog.Logger) (string, error) {
	if !save {
		return "", nil
	}
	repo, err := requireStore(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer func() { _ = repo.Close() }()

	run, err := store.NewRun(rulesPath, trafficPath, fingerprint, result)
	if err != nil {
		return "", err
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	logger.Info("analysis run saved", logging.RunID(run.ID))
	return run.ID, nil
}

func writeRelationshipLog(path, runID string, result report.AnalysisResult) error {
	log, closer, err := logging.OpenRelationshipLog(path)
	if err != nil {
		return err
	}
	defer func() { _ = closer() }()

	for _, kind := range relations.Kinds {
		for _, rel := range result.Relationships[kind] {
			if err := log.Write(runID, rel); err != nil {
				return err
			}
		}
	}
	return nil
}
