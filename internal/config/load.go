package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rulesift/rulesift/internal/fuzz"
	"github.com/rulesift/rulesift/internal/relations"
)

// Load reads the YAML file at path, if any, over the built-in defaults.
// RULESIFT_ environment variables override both (RULESIFT_ANALYSIS_WORKERS,
// RULESIFT_STORAGE_DSN, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rulesift")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RULESIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if used := v.ConfigFileUsed(); used != "" {
		absPath, err := filepath.Abs(used)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		cfg.baseDir = filepath.Dir(absPath)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	thresholds := relations.DefaultThresholds()
	tester := fuzz.DefaultTester()

	v.SetDefault("inputs.rules", "")
	v.SetDefault("inputs.traffic", "")

	v.SetDefault("analysis.detectors", []string{})
	v.SetDefault("analysis.seed", 0)
	v.SetDefault("analysis.workers", 1)
	v.SetDefault("analysis.prune", true)
	v.SetDefault("analysis.use_logged_hits", false)
	v.SetDefault("analysis.timeout", "0s")
	v.SetDefault("analysis.advisor", false)

	v.SetDefault("thresholds.shadow_confidence", thresholds.ShadowConfidence)
	v.SetDefault("thresholds.redundancy_cooccurrence", thresholds.RedundancyCooccurrence)
	v.SetDefault("thresholds.redundancy_jaccard", thresholds.RedundancyJaccard)
	v.SetDefault("thresholds.correlation_min_intersection", thresholds.CorrelationMinIntersection)
	v.SetDefault("thresholds.correlation_min_lift", thresholds.CorrelationMinLift)
	v.SetDefault("thresholds.subsumption_containment", thresholds.SubsumptionContainment)

	v.SetDefault("fuzz.trials", tester.Trials)
	v.SetDefault("fuzz.random_trials", tester.RandomTrials)
	v.SetDefault("fuzz.min_length", tester.MinLength)
	v.SetDefault("fuzz.max_length", tester.MaxLength)

	v.SetDefault("report.format", "text")
	v.SetDefault("report.out", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.relationship_log", "")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("storage.driver", DriverNone)
	v.SetDefault("storage.path", "rulesift.db")
	v.SetDefault("storage.dsn", "")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", 24*time.Hour)
}

func (c *Config) resolvePath(p string) string {
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	base := c.baseDir
	if base == "" {
		base = "."
	}
	return filepath.Join(base, p)
}
