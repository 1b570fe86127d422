package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/argview/internal/cli"
	"github.com/aretw0/argview/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "argview",
	Short: "argview mirrors the argument tree of a running ARG process",
	Long: `argview connects to a running ARG process over a websocket, mirrors the tree
it builds and lets you pause and continue it from a terminal, an HTTP API or an MCP client.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "Snapshot store (memory, file, redis)")
	rootCmd.PersistentFlags().String("store-path", "", "Directory of the file store")
	rootCmd.PersistentFlags().String("redis-addr", "", "Address of the redis store")
	rootCmd.PersistentFlags().String("journal", "", "SQLite file that records inbound messages")
}

// loadConfig reads the configuration file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}

	setString(cmd, "log-level", &cfg.LogLevel)
	setString(cmd, "store", &cfg.Store.Kind)
	setString(cmd, "store-path", &cfg.Store.Path)
	setString(cmd, "redis-addr", &cfg.Store.RedisAddr)
	setString(cmd, "journal", &cfg.Journal)
	setString(cmd, "url", &cfg.URL)
	setString(cmd, "protocol", &cfg.Protocol)
	setString(cmd, "listen", &cfg.Listen)
	setString(cmd, "run-id", &cfg.RunID)
	if f := cmd.Flags().Lookup("metrics"); f != nil && f.Changed {
		cfg.Metrics, _ = cmd.Flags().GetBool("metrics")
	}
	if f := cmd.Flags().Lookup("lock"); f != nil && f.Changed {
		cfg.Lock.Enabled, _ = cmd.Flags().GetBool("lock")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	logger, err := cli.CreateLogger(cfg.LogLevel)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func setString(cmd *cobra.Command, name string, dst *string) {
	if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
		*dst = f.Value.String()
	}
}
