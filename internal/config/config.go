package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration
type Config struct {
	BridgeURL    string `toml:"bridge_url"`
	BridgeSecret string `toml:"bridge_secret"`

	// Sampling and polling, in milliseconds
	TrafficIntervalMS int `toml:"traffic_interval_ms"`
	ConnIntervalMS    int `toml:"conn_interval_ms"`

	// Chart window size
	RingCapacity int `toml:"ring_capacity"`

	// Retained closed history entries
	ClosedRetention int `toml:"closed_retention"`

	// Delay testing
	DelayWorkers   int `toml:"delay_workers"`
	DelayTimeoutMS int `toml:"delay_timeout_ms"`

	// Prometheus exporter listen address; empty disables it
	MetricsAddr string `toml:"metrics_addr"`

	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		BridgeURL:         "http://127.0.0.1:9090",
		TrafficIntervalMS: 1500,
		ConnIntervalMS:    2500,
		RingCapacity:      40,
		ClosedRetention:   1000,
		DelayWorkers:      10,
		DelayTimeoutMS:    8000,
		MetricsAddr:       "",
		LogLevel:          "info",
	}
}

// Load reads the TOML config at path into cfg. A missing path leaves the
// defaults untouched.
func Load(path string, cfg *Config) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("error decoding config file: %w", err)
	}
	return nil
}

// DefaultPath returns the conventional config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "kestrel", "kestrel.toml"), nil
}
