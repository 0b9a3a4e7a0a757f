package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-dm/internal/orchestrators/game"
)

var listLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved campaigns",
	Long:  `List saved campaigns, most recently saved first. Resume one with: dm play --resume <id>`,
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

func init() {
	sessionsCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of campaigns to show (0 for all)")
}

func runSessions(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := a.service.ListCampaigns(cmd.Context(), &game.ListCampaignsInput{Limit: listLimit})
	if err != nil {
		return err
	}
	if len(out.Campaigns) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved campaigns yet. Start one with: dm play")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTURNS\tSAVED\tSTATUS")
	for _, c := range out.Campaigns {
		status := "active"
		if c.Ended {
			status = "ended"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", c.ID, c.Name, c.TurnCount, c.SavedAt.Local().Format(time.DateTime), status)
	}
	return w.Flush()
}
