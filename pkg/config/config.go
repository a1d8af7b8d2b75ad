// Package config loads the daemon's YAML configuration file with
// gopkg.in/yaml.v3, decoding it over Default().
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob cmd/hypervisord exposes. Durations are accepted
// as strings ("30s", "1h") so the YAML file stays human-editable; Load
// parses them into the *Duration fields below.
type Config struct {
	DataDir     string `yaml:"data_dir"`
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	Workers     int `yaml:"workers"`
	MaxAttempts int `yaml:"max_attempts"`

	BackoffCap    string `yaml:"backoff_cap"`
	JobTimeout    string `yaml:"job_timeout"`
	ReconcileTick string `yaml:"reconcile_tick"`

	BackoffCapDuration    time.Duration `yaml:"-"`
	JobTimeoutDuration    time.Duration `yaml:"-"`
	ReconcileTickDuration time.Duration `yaml:"-"`
}

// Default returns the configuration cmd/hypervisord runs with when no file
// is given.
func Default() Config {
	return Config{
		DataDir:               "./data",
		ListenAddr:            ":8080",
		MetricsAddr:           ":9090",
		LogLevel:              "info",
		LogJSON:               false,
		Workers:               4,
		MaxAttempts:           50,
		BackoffCap:            "30s",
		JobTimeout:            "1h",
		ReconcileTick:         "30s",
		BackoffCapDuration:    30 * time.Second,
		JobTimeoutDuration:    time.Hour,
		ReconcileTickDuration: 30 * time.Second,
	}
}

// Load reads and parses the YAML file at path over the defaults. An empty
// path returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.resolveDurations(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolveDurations() error {
	var err error
	if c.BackoffCapDuration, err = time.ParseDuration(c.BackoffCap); err != nil {
		return fmt.Errorf("backoff_cap: %w", err)
	}
	if c.JobTimeoutDuration, err = time.ParseDuration(c.JobTimeout); err != nil {
		return fmt.Errorf("job_timeout: %w", err)
	}
	if c.ReconcileTickDuration, err = time.ParseDuration(c.ReconcileTick); err != nil {
		return fmt.Errorf("reconcile_tick: %w", err)
	}
	return nil
}
