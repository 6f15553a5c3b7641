package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rulesift/rulesift/internal/relations"
	"github.com/rulesift/rulesift/internal/report"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.Inputs.Rules != "" {
		if err := requireFile(c.resolvePath(c.Inputs.Rules)); err != nil {
			v.Add("inputs.rules invalid: %v", err)
		}
	}
	if c.Inputs.Traffic != "" {
		if err := requireFile(c.resolvePath(c.Inputs.Traffic)); err != nil {
			v.Add("inputs.traffic invalid: %v", err)
		}
	}

	if _, err := relations.ParseKinds(c.Analysis.Detectors); err != nil {
		v.Add("analysis.detectors invalid: %v", err)
	}
	if c.Analysis.Workers < 1 {
		v.Add("analysis.workers must be >= 1")
	}
	if c.Analysis.Timeout < 0 {
		v.Add("analysis.timeout must be >= 0")
	}

	if err := c.Thresholds.Validate(); err != nil {
		for _, problem := range strings.Split(err.Error(), "; ") {
			v.Add("thresholds.%s", problem)
		}
	}

	if c.Fuzz.Trials < 1 {
		v.Add("fuzz.trials must be > 0")
	}
	if c.Fuzz.RandomTrials < 0 {
		v.Add("fuzz.random_trials must be >= 0")
	}
	if c.Fuzz.MinLength < 1 {
		v.Add("fuzz.min_length must be > 0")
	}
	if c.Fuzz.MaxLength < c.Fuzz.MinLength {
		v.Add("fuzz.max_length must be >= fuzz.min_length")
	}

	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		v.Add("report.format invalid: %v", err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		v.Add("logging.level must be debug|info|warn|error")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		v.Add("logging.format must be json|text")
	}
	if c.Logging.RelationshipLog != "" {
		if err := ensureWritable(c.resolvePath(c.Logging.RelationshipLog)); err != nil {
			v.Add("logging.relationship_log invalid: %v", err)
		}
	}
	if c.Metrics.Textfile != "" {
		if err := ensureWritable(c.resolvePath(c.Metrics.Textfile)); err != nil {
			v.Add("metrics.textfile invalid: %v", err)
		}
	}

	switch c.Storage.Driver {
	case "", DriverNone:
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			v.Add("storage.path is required for sqlite")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Storage.DSN) == "" {
			v.Add("storage.dsn is required for postgres")
		}
	default:
		v.Add("storage.driver must be none|sqlite|postgres")
	}

	if c.Cache.Enabled {
		if err := validateAddr(c.Cache.Addr); err != nil {
			v.Add("cache.addr invalid: %v", err)
		}
		if c.Cache.TTL <= 0 {
			v.Add("cache.ttl must be > 0")
		}
		if c.Cache.DB < 0 {
			v.Add("cache.db must be >= 0")
		}
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return err
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// ensureWritable checks that the closest existing ancestor directory of path
// accepts new files. Missing directories are created at write time.
func ensureWritable(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	for errors.Is(err, fs.ErrNotExist) {
		parent := filepath.Dir(dir)
		if parent == dir {
			return err
		}
		dir = parent
		info, err = os.Stat(dir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	file, err := os.CreateTemp(dir, "rulesift-validate-*")
	if err != nil {
		return err
	}
	name := file.Name()
	if err := file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
