package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds process-wide settings. It is read once at startup and
// never mutated afterwards.
type Config struct {
	// Operation log
	LoggingEnabled bool   `yaml:"logging_enabled"`
	LogPath        string `yaml:"log_path"`
	MaxLogSizeMB   int    `yaml:"max_log_size_mb"`
	RetentionDays  int    `yaml:"retention_days"`

	// Automation executor
	ScriptTimeoutSec int `yaml:"script_timeout_sec"`
	MaxRetries       int `yaml:"max_retries"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`
	MaxOutputBytes   int `yaml:"max_output_bytes"`
}

// Default returns a config with all defaults applied.
func Default() *Config {
	return &Config{
		LoggingEnabled:   true,
		LogPath:          defaultLogPath(),
		MaxLogSizeMB:     10,
		RetentionDays:    30,
		ScriptTimeoutSec: 30,
		MaxRetries:       3,
		RetryBaseDelayMS: 500,
		MaxOutputBytes:   1 << 20,
	}
}

// Load builds the config from defaults, an optional YAML file, and
// MACBRIDGE_* environment overrides, in that order. A missing config
// file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(expandHome(path))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)
	cfg.LogPath = expandHome(cfg.LogPath)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MACBRIDGE_LOGGING"); v != "" {
		cfg.LoggingEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MACBRIDGE_LOG_PATH"); v != "" {
		cfg.LogPath = v
	}
	if v, ok := envInt("MACBRIDGE_LOG_MAX_MB"); ok {
		cfg.MaxLogSizeMB = v
	}
	if v, ok := envInt("MACBRIDGE_RETENTION_DAYS"); ok {
		cfg.RetentionDays = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func defaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "operations.jsonl"
	}
	return filepath.Join(home, ".config", "macbridge", "operations.jsonl")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
