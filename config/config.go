package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/homesim/core/factory"
	"github.com/kilianp07/homesim/infra/monitoring"
)

// EnvPrefix marks environment overrides. Nested keys use a double
// underscore: HOMESIM_API__ADDRESS=:9000.
const EnvPrefix = "HOMESIM_"

type Config struct {
	Simulation  SimulationConfig        `json:"simulation"`
	Environment EnvironmentConfig       `json:"environment"`
	Devices     DevicesConfig           `json:"devices"`
	Scheduler   SchedulerConfig         `json:"scheduler"`
	Dispatch    DispatchConfig          `json:"dispatch"`
	Logging     LoggingConfig           `json:"logging"`
	API         APIConfig               `json:"api"`
	Metrics     MetricsConfig           `json:"metrics"`
	Sinks       []factory.ModuleConfig  `json:"sinks"`
	Sentry      monitoring.SentryConfig `json:"sentry"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := Config{Dispatch: DefaultDispatch()}
	cfg.SetDefaults()
	return &cfg
}

// Load reads path (yaml or json), applies HOMESIM_ environment overrides and
// a .env file next to the working directory if present, then fills defaults
// and validates. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	cfg := Config{Dispatch: DefaultDispatch()}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	c.Environment.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section and reports the first failure.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"simulation", c.Simulation.Validate},
		{"environment", c.Environment.Validate},
		{"devices", c.Devices.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"dispatch", c.Dispatch.Validate},
		{"logging", c.Logging.Validate},
		{"api", c.API.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.name, err)
		}
	}
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("sinks[%d]: type is required", i)
		}
	}
	return nil
}
