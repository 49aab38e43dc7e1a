package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"beacon/internal/platform/config"
	"beacon/internal/platform/logger"
)

// cli carries state shared by subcommands.
type cli struct {
	configFile string
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:           "beacon",
		Short:         "Registry and discovery service for independently run nodes",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "",
		"config file (yaml, toml or json); BEACON_* environment variables override it")

	root.AddCommand(c.serveCmd(), c.sweepCmd(), c.migrateCmd(), c.auditCmd(), c.hashKeyCmd(), c.issueTokenCmd())
	return root
}

func (c *cli) load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	return cfg, log, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
