package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type statusChange struct {
	RecallBotID string `json:"recall_bot_id"`
	Host        string `json:"host"`
	From        string `json:"from"`
	To          string `json:"to"`
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the status of active bots from the provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(cmd.Context(), func(rt *services) error {
				active, err := rt.bots.ListActive(cmd.Context(), host)
				if err != nil {
					return fmt.Errorf("list active bots: %w", err)
				}
				refreshed := rt.service.RefreshStatuses(cmd.Context(), active)
				changes := []statusChange{}
				for i := range refreshed {
					if refreshed[i].Status != active[i].Status {
						changes = append(changes, statusChange{
							RecallBotID: refreshed[i].RecallBotID,
							Host:        refreshed[i].Host,
							From:        active[i].Status,
							To:          refreshed[i].Status,
						})
					}
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, changes)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Checked %d active bots, %d changed\n", len(active), len(changes))
				for _, ch := range changes {
					fmt.Fprintf(out, "  %s (%s): %s -> %s\n", ch.RecallBotID, ch.Host, ch.From, ch.To)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Only bots of this host")
	return cmd
}
