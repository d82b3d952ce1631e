package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kilianp07/homesim/infra/logger"
)

// LoggingConfig defines the process log level and optional rotating file.
type LoggingConfig struct {
	logger.Options `json:",squash"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File != "" && c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks the level and rotation bounds.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown level %s", c.Level)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation settings must be positive")
	}
	return nil
}
