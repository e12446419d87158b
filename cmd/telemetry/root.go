package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/telemetry/internal/config"
	"github.com/aretw0/telemetry/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "Telemetry materializes derived artifacts of captured datasets",
	Long: `Telemetry keeps a graph of artifact kinds and generates the derived ones
(pseudo phases, periodograms, transfer functions) for the selected datasets,
prerequisites first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands). They override the config file.
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "telemetry.yaml", "Configuration file (YAML or TOML)")
	flags.String("kinds", "", "Kinds table (YAML or TOML)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
	flags.Int("workers", 0, "Datasets processed at once (default: number of CPUs)")
	flags.String("store", "", "Artifact store driver: file, redis or memory")
	flags.String("store-path", "", "Base directory of the file store")
	flags.String("redis-addr", "", "Redis address of the redis store")
	flags.String("index", "", "Index driver: memory or postgres")
	flags.String("dsn", "", "PostgreSQL DSN of the postgres index")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("kinds", &cfg.Kinds)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("store", &cfg.Store.Driver)
	str("store-path", &cfg.Store.Path)
	str("redis-addr", &cfg.Store.RedisAddr)
	str("index", &cfg.Index.Driver)
	str("dsn", &cfg.Index.DSN)
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}
