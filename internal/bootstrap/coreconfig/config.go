package coreconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"wallet-core/go-backend/internal/platform/scheduler"

	"gopkg.in/yaml.v3"
)

const (
	envMaxConcurrent = "WALLET_SCHEDULER_MAX_CONCURRENT"
	envStartupDelay  = "WALLET_SCHEDULER_STARTUP_DELAY"
	envStartRate     = "WALLET_SCHEDULER_START_RATE"
	envLogLevel      = "WALLET_LOG_LEVEL"
	envLogFormat     = "WALLET_LOG_FORMAT"
)

type Config struct {
	Scheduler scheduler.Config
	Log       LogConfig
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() Config {
	return Config{
		Scheduler: scheduler.DefaultConfig(),
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

type FileConfig struct {
	Scheduler FileSchedulerConfig `yaml:"scheduler"`
	Log       FileLogConfig       `yaml:"log"`
}

type FileSchedulerConfig struct {
	MaxConcurrent int            `yaml:"maxConcurrent"`
	StartupDelay  *time.Duration `yaml:"startupDelay"`
	StartRate     float64        `yaml:"startRate"`
	StartBurst    int            `yaml:"startBurst"`
}

type FileLogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadFromPath reads configPath, or the first readable default location when
// configPath is empty, merges it over DefaultConfig and applies environment
// overrides. A missing default file is not an error; an explicit path that
// cannot be read or parsed is.
func LoadFromPath(configPath string) (Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
		}
		if err := mergeYAML(&cfg, data); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	} else {
		for _, path := range []string{"configs/walletcore.yaml", "walletcore.yaml"} {
			data, err := os.ReadFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			if err := mergeYAML(&cfg, data); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			break
		}
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Scheduler.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func mergeYAML(cfg *Config, data []byte) error {
	var parsed FileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return err
	}
	Merge(cfg, parsed)
	return nil
}

// Merge copies every field set in src over dst.
func Merge(dst *Config, src FileConfig) {
	if src.Scheduler.MaxConcurrent != 0 {
		dst.Scheduler.MaxConcurrent = src.Scheduler.MaxConcurrent
	}
	if src.Scheduler.StartupDelay != nil {
		dst.Scheduler.StartupDelay = *src.Scheduler.StartupDelay
	}
	if src.Scheduler.StartRate != 0 {
		dst.Scheduler.StartRate = src.Scheduler.StartRate
	}
	if src.Scheduler.StartBurst != 0 {
		dst.Scheduler.StartBurst = src.Scheduler.StartBurst
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Log.Format != "" {
		dst.Log.Format = src.Log.Format
	}
}

func ApplyEnvOverrides(cfg *Config) error {
	if raw := strings.TrimSpace(os.Getenv(envMaxConcurrent)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxConcurrent, err)
		}
		cfg.Scheduler.MaxConcurrent = v
	}
	if raw := strings.TrimSpace(os.Getenv(envStartupDelay)); raw != "" {
		v, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", envStartupDelay, err)
		}
		cfg.Scheduler.StartupDelay = v
	}
	if raw := strings.TrimSpace(os.Getenv(envStartRate)); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", envStartRate, err)
		}
		cfg.Scheduler.StartRate = v
	}
	if level := strings.TrimSpace(os.Getenv(envLogLevel)); level != "" {
		cfg.Log.Level = level
	}
	if format := strings.TrimSpace(os.Getenv(envLogFormat)); format != "" {
		cfg.Log.Format = format
	}
	return nil
}
