package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"beacon/internal/app"
)

type auditLine struct {
	ID             string    `json:"id"`
	Caller         string    `json:"caller"`
	Tier           string    `json:"tier"`
	Query          string    `json:"query,omitempty"`
	Tags           []string  `json:"tags"`
	MatchedHandles []string  `json:"matched_handles"`
	Degraded       bool      `json:"degraded"`
	RequestID      string    `json:"request_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (c *cli) auditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the most recent search audit entries as JSON lines",
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

			entries, err := a.RecentSearches(ctx, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range entries {
				handles := make([]string, len(e.MatchedHandles))
				for i, h := range e.MatchedHandles {
					handles[i] = h.Display()
				}
				if err := enc.Encode(auditLine{
					ID:             e.ID.String(),
					Caller:         e.Caller,
					Tier:           e.Tier.String(),
					Query:          e.QueryText,
					Tags:           e.Tags,
					MatchedHandles: handles,
					Degraded:       e.Degraded,
					RequestID:      e.RequestID,
					CreatedAt:      e.CreatedAt,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to print")
	return cmd
}
