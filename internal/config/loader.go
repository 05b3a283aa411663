package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// Config captures the runtime configuration for the on-call service.
type Config struct {
	HTTPPort     int           `yaml:"http_port"`
	DatabasePath string        `yaml:"database_path"`
	LogLevel     string        `yaml:"log_level"`
	PopulateCron string        `yaml:"populate_cron"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		HTTPPort:     8080,
		DatabasePath: "oncall.db",
		LogLevel:     "info",
		PopulateCron: "0 * * * *",
		BusyTimeout:  5 * time.Second,
	}
}

// Load builds the configuration in three layers: defaults, then an
// optional YAML file, then ONCALL_* environment variables. The file path
// comes from ONCALL_CONFIG_FILE; a missing file is only an error when the
// path was given explicitly.
func Load() (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(os.Getenv("ONCALL_CONFIG_FILE"))
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvironment(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a YAML configuration file and applies environment
// overrides on top of it.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := loadFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := applyEnvironment(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnvironment(cfg *Config) error {
	invalid := make([]string, 0, 2)

	if value := strings.TrimSpace(os.Getenv("ONCALL_HTTP_PORT")); value != "" {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 {
			invalid = append(invalid, "ONCALL_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if value := strings.TrimSpace(os.Getenv("ONCALL_DATABASE_PATH")); value != "" {
		cfg.DatabasePath = value
	}

	if value := strings.TrimSpace(os.Getenv("ONCALL_LOG_LEVEL")); value != "" {
		cfg.LogLevel = value
	}

	if value := strings.TrimSpace(os.Getenv("ONCALL_POPULATE_CRON")); value != "" {
		cfg.PopulateCron = value
	}

	if value := strings.TrimSpace(os.Getenv("ONCALL_BUSY_TIMEOUT")); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil || timeout < 0 {
			invalid = append(invalid, "ONCALL_BUSY_TIMEOUT")
		} else {
			cfg.BusyTimeout = timeout
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

func (cfg Config) validate() error {
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", cfg.HTTPPort)
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return errors.New("database_path must not be empty")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	return nil
}
