package main

import (
	"fmt"

	toolkit "github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
)

var rollCmd = &cobra.Command{
	Use:   "roll [notation]",
	Short: "Roll dice using dice notation",
	Long: `Roll dice and see individual results. Examples:

  dm roll 1d20
  dm roll 2d6+3
  dm roll 1d8+1d6-1`,
	Args: cobra.ExactArgs(1),
	RunE: runRoll,
}

func runRoll(cmd *cobra.Command, args []string) error {
	result, err := dice.RollNotation(args[0], toolkit.DefaultRoller)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "🎲 %s\n", result.Description)
	fmt.Fprintf(out, "Total: %d\n", result.Total)
	return nil
}
