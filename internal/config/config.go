// Package config defines the vmindex configuration, its defaults, and the
// viper wiring that resolves values from flags, environment variables, and
// the user's config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete vmindex configuration
type Config struct {
	Data    DataConfig    `mapstructure:"data"`
	Logging LoggingConfig `mapstructure:"logging"`
	Output  OutputConfig  `mapstructure:"output"`
}

// DataConfig controls where the machine index lives
type DataConfig struct {
	// Dir is the data directory holding the index file and lock files.
	// All processes sharing a registry must point at the same directory.
	Dir string `mapstructure:"dir"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Enabled turns file logging on. When false, logs are discarded.
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level to log: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// Dir is where the log file is written. Empty means stderr.
	Dir string `mapstructure:"dir"`
}

// OutputConfig controls CLI rendering
type OutputConfig struct {
	// Color controls styled output: "auto" (only when stdout is a
	// terminal), "always", or "never"
	Color string `mapstructure:"color"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Dir: defaultDataDir(),
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "INFO",
			Dir:     "",
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}

// defaultDataDir resolves the default registry location: $VMINDEX_HOME/data
// if set, otherwise ~/.vmindex/data.
func defaultDataDir() string {
	if home := os.Getenv("VMINDEX_HOME"); home != "" {
		return filepath.Join(home, "data")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".vmindex", "data")
	}
	return filepath.Join(home, ".vmindex", "data")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("data.dir", defaults.Data.Dir)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("output.color", defaults.Output.Color)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vmindex")
	}
	// Fall back to ~/.config/vmindex
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vmindex"
	}
	return filepath.Join(home, ".config", "vmindex")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidColorModes returns the list of valid output.color values
func ValidColorModes() []string {
	return []string{"auto", "always", "never"}
}

// ValidationError describes a single invalid configuration value.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors aggregates every invalid value found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.Data.Dir == "" {
		errs = append(errs, ValidationError{
			Field:   "data.dir",
			Value:   c.Data.Dir,
			Message: "data directory must not be empty",
		})
	}

	level := strings.ToUpper(c.Logging.Level)
	switch level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of DEBUG, INFO, WARN, ERROR",
		})
	}

	valid := false
	for _, mode := range ValidColorModes() {
		if c.Output.Color == mode {
			valid = true
			break
		}
	}
	if !valid {
		errs = append(errs, ValidationError{
			Field:   "output.color",
			Value:   c.Output.Color,
			Message: "must be one of auto, always, never",
		})
	}

	return errs
}
