// Package config holds dlc's on-disk YAML configuration, grounded on
// the teacher's internal/config/config.go + mangle.go: a defaulted
// struct, loaded from YAML with environment-variable overrides applied
// on top, durations stored as strings and parsed on demand.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the compiler pipeline and CLI read.
type Config struct {
	// Store selects the evaluator's backing Store: "mem" (default) or
	// "sqlite".
	Store StoreConfig `yaml:"store"`

	// Eval bounds a single Execute call's resource usage.
	Eval EvalConfig `yaml:"eval"`

	// Logging controls dllog's per-category debug files.
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig selects and configures the evaluator's Store backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"`   // "mem" or "sqlite"
	SQLitePath string `yaml:"sqlite_path"` // used when Backend == "sqlite"
}

// EvalConfig mirrors the teacher's MangleConfig fact/time limits,
// renamed to this module's vocabulary and extended with the
// MaxIterations knob spec.md §4.6 leaves as an implementation choice.
type EvalConfig struct {
	// FactLimit caps the total number of facts a store may hold; zero
	// means unbounded. Not enforced inside internal/store itself (which
	// has no notion of a budget) — cmd/dlc checks it after Execute
	// returns and reports an error if exceeded.
	FactLimit int `yaml:"fact_limit"`

	// DerivedFactLimit is a limit on facts inserted during one Execute
	// call, mirroring the teacher's DerivedFactLimit (default 500000). It
	// is loaded and saved with the rest of the config but not enforced:
	// neither cmd/dlc nor internal/eval reads it.
	DerivedFactLimit int `yaml:"derived_fact_limit"`

	// MaxIterations bounds a single recursive stratum's fixed-point
	// loop; zero means unbounded. Feeds eval.Options.MaxIterations.
	MaxIterations int `yaml:"max_iterations"`

	// QueryTimeout is a duration string (e.g. "30s"); see GetQueryTimeout.
	QueryTimeout string `yaml:"query_timeout"`
}

// LoggingConfig controls dllog.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Dir   string `yaml:"dir"`
}

// DefaultDerivedFactLimit mirrors the teacher's MangleConfig constant.
const DefaultDerivedFactLimit = 500000

// DefaultConfig returns dlc's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "mem",
		},
		Eval: EvalConfig{
			FactLimit:        0,
			DerivedFactLimit: DefaultDerivedFactLimit,
			MaxIterations:    0,
			QueryTimeout:     "30s",
		},
		Logging: LoggingConfig{
			Debug: false,
			Dir:   ".dlc/logs",
		},
	}
}

// Load reads YAML configuration from path, falling back to defaults
// (with environment overrides still applied) if the file does not
// exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes c as YAML to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides lets DLC_DEBUG and DLC_STORE_BACKEND override the
// file/default config, matching the teacher's env-override pattern for
// its own API-key/provider settings.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DLC_DEBUG"); v == "1" || v == "true" {
		c.Logging.Debug = true
	}
	if v := os.Getenv("DLC_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
}

// GetQueryTimeout parses QueryTimeout, falling back to 30s on a bad or
// empty value (matching the teacher's GetQueryTimeout/GetLLMTimeout
// fallback pattern).
func (c *Config) GetQueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Eval.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate reports a config that cmd/dlc cannot act on.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "mem", "sqlite":
	default:
		return fmt.Errorf("config: unknown store backend %q (want \"mem\" or \"sqlite\")", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && c.Store.SQLitePath == "" {
		return fmt.Errorf("config: store.sqlite_path is required when store.backend is \"sqlite\"")
	}
	return nil
}
