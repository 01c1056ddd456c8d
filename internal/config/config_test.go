package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Data.Dir == "" {
		t.Error("default data dir should not be empty")
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("default log level = %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Output.Color != "auto" {
		t.Errorf("default color mode = %q, want auto", cfg.Output.Color)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("defaults should validate: %v", errs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.Data.Dir = "" },
			wantErr: "data.dir",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "VERBOSE" },
			wantErr: "logging.level",
		},
		{
			name:    "bad color mode",
			mutate:  func(c *Config) { c.Output.Color = "sometimes" },
			wantErr: "output.color",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(ValidationErrors(errs).Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", ValidationErrors(errs).Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_LevelCaseInsensitive(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"

	if errs := cfg.Validate(); len(errs) > 0 {
		t.Errorf("lowercase level should validate: %v", errs)
	}
}

func TestLoad_FromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	viper.Set("data.dir", "/tmp/vmindex-test")
	viper.Set("logging.level", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Data.Dir != "/tmp/vmindex-test" {
		t.Errorf("Data.Dir = %q", cfg.Data.Dir)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
	if cfg.Output.Color != "auto" {
		t.Errorf("Output.Color = %q, want default auto", cfg.Output.Color)
	}
}

func TestLoad_InvalidFails(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	viper.Set("output.color", "sometimes")

	if _, err := Load(); err == nil {
		t.Error("Load should fail for invalid configuration")
	}
}
