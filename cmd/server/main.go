package main

import (
	"os"

	"github.com/Pizzaface/PizzaPi-sub003/internal/config"
	"github.com/Pizzaface/PizzaPi-sub003/internal/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile   string
		addr         string
		debug        bool
		logLevel     string
		storeKind    string
		databasePath string
		redisURL     string
	)

	cmd := &cobra.Command{
		Use:           "pizzapi-relay",
		Short:         "Session relay and directory for remote coding agents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var o config.Overrides
			flags := cmd.Flags()
			if flags.Changed("config") {
				o.ConfigFile = &configFile
			}
			if flags.Changed("addr") {
				o.Addr = &addr
			}
			if flags.Changed("debug") {
				o.Debug = &debug
			}
			if flags.Changed("log-level") {
				o.LogLevel = &logLevel
			}
			if flags.Changed("store") {
				o.Store = &storeKind
			}
			if flags.Changed("database") {
				o.DatabasePath = &databasePath
			}
			if flags.Changed("redis-url") {
				o.RedisURL = &redisURL
			}

			cfg, err := config.Load(o)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (TOML or YAML)")
	flags.StringVar(&addr, "addr", ":3001", "HTTP listen address")
	flags.BoolVar(&debug, "debug", false, "enable debug logging and gin debug mode")
	flags.StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&storeKind, "store", config.StoreMemory, "directory backend (memory, sqlite, redis)")
	flags.StringVar(&databasePath, "database", "./pizzapi.db", "SQLite database path")
	flags.StringVar(&redisURL, "redis-url", "redis://localhost:6379/0", "Redis URL")

	return cmd
}
