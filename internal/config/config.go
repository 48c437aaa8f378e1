// Package config loads run configuration from a YAML or JSON file, a .env
// file and BELIEFSHIFT_* environment variables, in that order of precedence
// (environment wins).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"beliefshift/internal/calibrate"
	"beliefshift/internal/dataset"
	"beliefshift/internal/format"
	"beliefshift/internal/logging"
	"beliefshift/internal/pipeline"
	"beliefshift/internal/trial"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "beliefshift.yaml"

// Environment overrides.
const (
	EnvObjective   = "BELIEFSHIFT_OBJECTIVE"
	EnvMode        = "BELIEFSHIFT_MODE"
	EnvLogLevel    = "BELIEFSHIFT_LOG_LEVEL"
	EnvDB          = "BELIEFSHIFT_DB"
	EnvParallel    = "BELIEFSHIFT_PARALLEL"
	EnvMetricsFile = "BELIEFSHIFT_METRICS_FILE"
)

// Summary selects what the summarize command describes.
type Summary struct {
	GroupBy []string `json:"group_by" yaml:"group_by"`
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// Log configures internal/logging.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Config is the full run configuration.
type Config struct {
	Columns     trial.Columns    `json:"columns" yaml:"columns"`
	Calibration calibrate.Config `json:"calibration" yaml:"calibration"`
	Apply       pipeline.Options `json:"apply" yaml:"apply"`
	Summary     Summary          `json:"summary" yaml:"summary"`
	// Output is the table format for reports: ascii, markdown or csv.
	Output string `json:"output" yaml:"output"`
	Log    Log    `json:"log" yaml:"log"`
	// DB is the SQLite run store path; empty disables persistence.
	DB string `json:"db" yaml:"db"`
	// MetricsFile receives Prometheus text-format run metrics when set.
	MetricsFile string `json:"metrics_file" yaml:"metrics_file"`
	// Where filters input rows before decoding, e.g. `ContextType == "polar"`.
	Where string `json:"where,omitempty" yaml:"where,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Columns:     trial.DefaultColumns(),
		Calibration: calibrate.DefaultConfig(),
		Apply:       pipeline.DefaultOptions(),
		Summary:     Summary{GroupBy: trial.DefaultColumns().Labels},
		Output:      format.ASCII.String(),
		Log:         Log{Level: "info", Format: "text"},
	}
}

// Parse decodes data onto Default. ext is the file extension used as a
// format hint; when empty, content starting with '{' is JSON.
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	ext = strings.ToLower(ext)
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}
	cfg.Columns = cfg.Columns.WithDefaults()
	return cfg, nil
}

// Load reads path (DefaultFile when empty, where a missing default file is
// not an error), loads .env, then applies environment overrides.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if cfg, err = Parse(data, filepath.Ext(path)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from BELIEFSHIFT_* variables looked up by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvObjective); v != "" {
		o, err := calibrate.ParseObjective(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvObjective, err)
		}
		c.Calibration.Objective = o
	}
	if v := getenv(EnvMode); v != "" {
		m, err := calibrate.ParseMode(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMode, err)
		}
		c.Calibration.Mode = m
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := getenv(EnvDB); v != "" {
		c.DB = v
	}
	if v := getenv(EnvParallel); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvParallel, err)
		}
		c.Calibration.Parallel = n
	}
	if v := getenv(EnvMetricsFile); v != "" {
		c.MetricsFile = v
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Calibration.Validate(); err != nil {
		return err
	}
	if _, err := format.ParseMode(c.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if _, err := dataset.CompileFilter(c.Where); err != nil {
		return fmt.Errorf("where: %w", err)
	}
	return nil
}

// OutputMode is the parsed Output; Validate guarantees it parses.
func (c Config) OutputMode() format.Mode {
	m, _ := format.ParseMode(c.Output)
	return m
}
