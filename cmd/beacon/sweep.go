package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/app"
)

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one presence and nudge sweep, then exit",
		Long: `Run one presence sweep and one nudge sweep against the configured stores.
Intended for cron-driven deployments that do not keep "serve" running.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := c.load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = a.Close(closeCtx)
			}()
			return a.SweepOnce(ctx)
		},
	}
}
