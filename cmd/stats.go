package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/studysync/internal/notify"
	"github.com/JakeFAU/studysync/internal/progress"
	"github.com/JakeFAU/studysync/internal/server"
)

type statsOutput struct {
	progress.Statistics
	notify.Encouragement
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the learner's progress statistics as JSON.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.Sync.FlushTimeout)
			defer cancel()

			app, err := server.Build(ctx, rt.cfg, rt.logger, server.Options{})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.WithoutCancel(ctx)) }()
			if err := app.Bootstrap(ctx); err != nil {
				return err
			}

			stats := app.Syncer().Statistics(ctx)
			out := statsOutput{Statistics: stats, Encouragement: notify.Encourage(stats.OverallPercentage)}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(out); err != nil {
				return fmt.Errorf("encode stats: %w", err)
			}
			return nil
		},
	}
}
