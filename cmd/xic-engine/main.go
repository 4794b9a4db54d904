// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the xic-engine CLI.
// Subcommands: extract, ionlists, results, version.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/xic-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const defaultUserAgent = "xic-engine/0.1"

// logger is built from --log-format and --verbose before any subcommand runs.
var logger = zap.NewNop()

// rootCmd is the base command for the xic-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "xic-engine",
	Short: "Extracted ion chromatograms from LC-MS mzML files",
	Long: `xic-engine measures a panel of target ions across LC-MS runs. For every
mzML file it reports, per ion, the most intense peak within the mass
tolerance together with its retention time and observed m/z.

Files are processed in parallel; results come back in input order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("log-format")
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(format, verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./xic-engine.yaml or ~/.config/xic-engine/config.yaml)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format: console or json")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("xic-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "xic-engine"))
		}
	}

	viper.SetEnvPrefix("XIC_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so that environment variables
// reach Unmarshal even without a config file.
func setDefaults() {
	viper.SetDefault("extraction.mass_accuracy", 0.002)
	viper.SetDefault("extraction.tolerance_unit", string(types.ToleranceDalton))
	viper.SetDefault("extraction.workers", 0)
	viper.SetDefault("extraction.file_timeout", "0s")
	viper.SetDefault("extraction.fail_fast", false)
	viper.SetDefault("extraction.keep_traces", false)
	viper.SetDefault("ion_list.default_name", types.DefaultIonListName)
	viper.SetDefault("ion_list.library", "")
	viper.SetDefault("ion_list.cache_size", 64)
	viper.SetDefault("ion_list.timeout", "30s")
	viper.SetDefault("ion_list.user_agent", defaultUserAgent)
	viper.SetDefault("ion_list.max_retries", 5)
	viper.SetDefault("store.path", "")
	viper.SetDefault("store.max_results", 100)
	viper.SetDefault("output", string(types.OutputJSON))
}

// loadConfig binds the given flags of cmd to config keys and decodes the
// merged configuration. Flags are bound at run time so that commands
// sharing a flag name do not steal each other's bindings.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (types.Config, error) {
	for key, name := range bindings {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			return types.Config{}, fmt.Errorf("binding %s: no flag --%s", key, name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return types.Config{}, fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}

	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(format string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	default:
		return nil, fmt.Errorf("unknown log format %q: use console or json", format)
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
