// Package config loads the libcompat configuration: where the probe
// helpers live, how long a probe may run, and which libraries a batch
// check covers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/triageworks/libcompat/internal/arch"
	cerrors "github.com/triageworks/libcompat/internal/errors"
)

// Config is the complete libcompat configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Probes  ProbesConfig `yaml:"probes" json:"probes"`
	Check   CheckConfig  `yaml:"check" json:"check"`

	// Libraries lists what a batch run checks.
	Libraries []LibraryConfig `yaml:"libraries" json:"libraries"`
}

// ProbesConfig points at the probe helper binaries. Empty values mean
// "next to the libcompat executable, then PATH".
type ProbesConfig struct {
	Dynamic string `yaml:"dynamic" json:"dynamic"`
	Static  string `yaml:"static" json:"static"`
}

// CheckConfig tunes the check engine.
type CheckConfig struct {
	// TimeoutSeconds bounds each probe invocation.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`

	// SkipSlow skips the static version-table probe everywhere.
	SkipSlow bool `yaml:"skip_slow" json:"skip_slow"`

	// Workers caps concurrent library checks in a batch run.
	// Checks are process-creation-bound, not CPU-bound.
	Workers int `yaml:"workers" json:"workers"`
}

// LibraryConfig describes one library in a batch run.
type LibraryConfig struct {
	// Name is the SONAME or path to check.
	Name string `yaml:"name" json:"name"`

	// Expectations is the symbols file to check against; empty means
	// the library is only load-checked.
	Expectations string `yaml:"expectations" json:"expectations"`

	// Format is "plain" (default) or "deb-symbols".
	Format string `yaml:"format" json:"format"`

	// HiddenDeps are pre-loaded globally before the library.
	HiddenDeps []string `yaml:"hidden_deps" json:"hidden_deps"`

	// Arch overrides the architecture for this entry.
	Arch string `yaml:"arch" json:"arch"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Version: 1,
		Check: CheckConfig{
			TimeoutSeconds: 10,
			Workers:        4,
		},
	}
}

// DefaultPath returns ~/.config/libcompat/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "libcompat", "config.yaml")
	}
	return filepath.Join(home, ".config", "libcompat", "config.yaml")
}

// Load reads the configuration at path. A missing file yields the
// defaults; a malformed file is an error. Environment overrides are
// applied last.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, cerrors.Wrap(cerrors.ErrCodeConfigInvalid, err)
	}
	return cfg, nil
}

// applyEnv applies LIBCOMPAT_* overrides, highest priority.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LIBCOMPAT_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Check.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("LIBCOMPAT_PROBE_DIR"); v != "" {
		cfg.Probes.Dynamic = filepath.Join(v, "inspect-library")
		cfg.Probes.Static = filepath.Join(v, "inspect-versions")
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Check.TimeoutSeconds <= 0 {
		return fmt.Errorf("check.timeout_seconds must be positive")
	}
	if c.Check.Workers < 0 {
		return fmt.Errorf("check.workers must not be negative")
	}
	for i, lib := range c.Libraries {
		if lib.Name == "" {
			return fmt.Errorf("libraries[%d]: name must not be empty", i)
		}
		if lib.Format != "" && lib.Format != "plain" && lib.Format != "deb-symbols" {
			return fmt.Errorf("libraries[%d]: unknown format %q", i, lib.Format)
		}
		if lib.Arch != "" {
			if _, err := arch.Parse(lib.Arch); err != nil {
				return fmt.Errorf("libraries[%d]: %w", i, err)
			}
		}
	}
	return nil
}

// Timeout returns the probe timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Check.TimeoutSeconds) * time.Second
}
