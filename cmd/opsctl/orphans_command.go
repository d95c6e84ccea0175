package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type orphanBot struct {
	RecallBotID string `json:"recall_bot_id"`
	BotName     string `json:"bot_name"`
	Status      string `json:"status"`
}

func newOrphansCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List provider bots that are not stored locally",
		Long: "Compares the provider's most recent page of bots with recall_bots. Bots listed here " +
			"were created outside the dashboard or lost their row, so no sync will ever pick them up.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd.Context(), func(rt *services) error {
				remote, err := rt.provider.ListBots(cmd.Context())
				if err != nil {
					return fmt.Errorf("list provider bots: %w", err)
				}
				orphans := []orphanBot{}
				for i := range remote {
					stored, err := rt.bots.GetByRecallID(cmd.Context(), remote[i].ID)
					if err != nil {
						return fmt.Errorf("look up bot %s: %w", remote[i].ID, err)
					}
					if stored == nil {
						orphans = append(orphans, orphanBot{
							RecallBotID: remote[i].ID,
							BotName:     remote[i].BotName,
							Status:      remote[i].LatestStatus(),
						})
					}
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, orphans)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Checked %d provider bots, %d not stored\n", len(remote), len(orphans))
				for _, o := range orphans {
					fmt.Fprintf(out, "  %s (%s): %s\n", o.RecallBotID, o.BotName, o.Status)
				}
				return nil
			})
		},
	}
}
