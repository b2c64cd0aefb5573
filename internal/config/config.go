package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"conduct/pkg/logging"
)

// Duration wraps time.Duration so YAML values like "30s" parse naturally.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the server configuration.
type Config struct {
	// Targets is the list of module names to run. Duplicates are treated
	// as a set; an empty list defaults to the umbrella "all" module.
	Targets []string `yaml:"targets"`

	// HTTPAddr is the listen address of the core HTTP API.
	HTTPAddr string `yaml:"http_addr"`

	// InstrumentationAddr is the listen address of the instrumentation
	// server (metrics endpoint).
	InstrumentationAddr string `yaml:"instrumentation_addr"`

	// GracePeriod bounds how long a signal-triggered shutdown waits for
	// services to stop before giving up.
	GracePeriod Duration `yaml:"grace_period"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFile, when set, redirects logging to a file that is reopened on
	// SIGHUP. Empty means stdout.
	LogFile string `yaml:"log_file"`

	// PIDFile, when set, is written with the process ID at startup.
	PIDFile string `yaml:"pid_file"`

	// Path records where this configuration was loaded from, for the
	// config watcher. Empty when running on pure defaults.
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file or flag overrides
// anything.
func Default() Config {
	return Config{
		Targets:             []string{"all"},
		HTTPAddr:            ":8080",
		InstrumentationAddr: ":9090",
		GracePeriod:         Duration(30 * time.Second),
		LogLevel:            "info",
	}
}

// Load reads the configuration file at path on top of the defaults. A
// missing file is not an error: the defaults are returned and the caller
// proceeds, matching how a fresh installation behaves.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config file at %s, using defaults", path)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config from %s: %w", path, err)
	}
	cfg.Path = path

	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return cfg, nil
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		c.Targets = []string{"all"}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace_period must be positive, got %s", c.GracePeriod.Std())
	}
	if c.HTTPAddr == "" {
		return errors.New("http_addr must not be empty")
	}
	if c.InstrumentationAddr == "" {
		return errors.New("instrumentation_addr must not be empty")
	}
	return nil
}
