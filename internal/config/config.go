package config

import (
	"time"

	"github.com/rulesift/rulesift/internal/fuzz"
	"github.com/rulesift/rulesift/internal/relations"
)

type Config struct {
	Inputs     InputsConfig         `mapstructure:"inputs"`
	Analysis   AnalysisConfig       `mapstructure:"analysis"`
	Thresholds relations.Thresholds `mapstructure:"thresholds"`
	Fuzz       fuzz.Tester          `mapstructure:"fuzz"`
	Report     ReportConfig         `mapstructure:"report"`
	Logging    LoggingConfig        `mapstructure:"logging"`
	Metrics    MetricsConfig        `mapstructure:"metrics"`
	Storage    StorageConfig        `mapstructure:"storage"`
	Cache      CacheConfig          `mapstructure:"cache"`

	baseDir string
}

type InputsConfig struct {
	Rules   string `mapstructure:"rules"`
	Traffic string `mapstructure:"traffic"`
}

type AnalysisConfig struct {
	Detectors     []string      `mapstructure:"detectors"`
	Seed          uint64        `mapstructure:"seed"`
	Workers       int           `mapstructure:"workers"`
	Prune         bool          `mapstructure:"prune"`
	UseLoggedHits bool          `mapstructure:"use_logged_hits"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Advisor       bool          `mapstructure:"advisor"`
}

type ReportConfig struct {
	Format string `mapstructure:"format"`
	Out    string `mapstructure:"out"`
}

type LoggingConfig struct {
	Level           string `mapstructure:"level"`
	Format          string `mapstructure:"format"`
	RelationshipLog string `mapstructure:"relationship_log"`
}

type MetricsConfig struct {
	// Textfile is a node-exporter textfile path written after each run.
	Textfile string `mapstructure:"textfile"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func (c *Config) BaseDir() string {
	return c.baseDir
}

// ResolvePath resolves p against the directory of the loaded config file.
func (c *Config) ResolvePath(p string) string {
	return c.resolvePath(p)
}
