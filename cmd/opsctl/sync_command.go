package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/moglich/opsdash/internal/reconcile"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var since string
	var resetWatermark bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create missing recordings for finished bots",
		RunE: func(cmd *cobra.Command, args []string) error {
			var scope reconcile.Scope
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("--since must be RFC 3339: %w", err)
				}
				scope.Since = t
			}
			return ctx.withServices(cmd.Context(), func(rt *services) error {
				if resetWatermark {
					if err := rt.watermark.Reset(cmd.Context()); err != nil {
						return fmt.Errorf("reset watermark: %w", err)
					}
				}
				report, err := rt.service.Backfill(cmd.Context(), scope)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Synced %d of %d bots\n", report.Synced, report.Total)
					for _, e := range report.Errors {
						fmt.Fprintf(out, "  %s\n", e)
					}
				}
				if len(report.Errors) > 0 {
					return fmt.Errorf("%d bots failed to sync", len(report.Errors))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Only bots updated at or after this RFC 3339 time")
	cmd.Flags().BoolVar(&resetWatermark, "reset-watermark", false, "Make the next on-read auto-sync rescan from the beginning")
	return cmd
}
