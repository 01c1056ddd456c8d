// Package cmd implements the vmindex command-line interface. The CLI is a
// thin collaborator over the machine index: every command opens the shared
// registry, drives the checkout protocol, and releases what it took.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kestrelworks/vmindex/internal/config"
	"github.com/kestrelworks/vmindex/internal/index"
	"github.com/kestrelworks/vmindex/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "vmindex",
	Short: "Shared registry of virtual machine instances",
	Long: `Vmindex tracks metadata about virtual machine instances in a shared,
file-backed registry. Independent processes coordinate through OS-level
file locks, so records are never lost to concurrent writes and no two
holders can check out the same machine at once.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/vmindex/config.yaml)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "data directory holding the index and lock files")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/vmindex")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("VMINDEX")
	// Replace dots with underscores for nested keys in env vars
	// e.g., VMINDEX_DATA_DIR for data.dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// openIndex loads configuration, prepares the data directory, and opens
// the machine index. The returned cleanup closes the logger and releases
// any checkouts still held.
func openIndex() (*index.Index, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return nil, nil, err
		}
	}

	idx, err := index.Open(cfg.Data.Dir, index.WithLogger(log))
	if err != nil {
		_ = log.Close()
		return nil, nil, err
	}

	cleanup := func() {
		idx.Close()
		_ = log.Close()
	}
	return idx, cleanup, nil
}
