package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
	"github.com/KirkDiggler/rpg-dm/internal/entities"
	"github.com/KirkDiggler/rpg-dm/internal/orchestrators/game"
)

const playerID = "player-1"

var (
	characterName  string
	characterClass string
	resumeID       string
)

var playCmd = &cobra.Command{
	Use:   "play [campaign-name]",
	Short: "Start or resume a campaign",
	Long: `Start a new campaign with a freshly rolled character, or resume a saved one
with --resume. Type "help" inside the game for the list of commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&characterName, "name", "Adventurer", "Character name")
	playCmd.Flags().StringVar(&characterClass, "class", "fighter", "Character class")
	playCmd.Flags().StringVar(&resumeID, "resume", "", "Session ID of a saved campaign to resume")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, cleanup, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	sessionID := resumeID
	if sessionID != "" {
		loaded, err := a.service.LoadCampaign(ctx, &game.LoadCampaignInput{SessionID: sessionID})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "📜 Resuming %q (turn %d)\n\n", loaded.Name, loaded.TurnCount)
		for _, ev := range loaded.Recent {
			fmt.Fprintln(out, ev.Summary())
		}
		if loaded.Encounter != nil {
			printEncounter(out, loaded.Encounter)
		}
	} else {
		name := "Untitled Adventure"
		if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
			name = strings.TrimSpace(args[0])
		}
		character, err := rollCharacter(a, characterName, characterClass)
		if err != nil {
			return err
		}
		started, err := a.service.StartCampaign(ctx, &game.StartCampaignInput{
			Name:      name,
			PlayerID:  playerID,
			Character: character,
		})
		if err != nil {
			return err
		}
		sessionID = started.SessionID
		fmt.Fprintf(out, "🎲 %s begins! Session ID: %s\n\n", name, sessionID)
		printCharacter(out, character)
		fmt.Fprintf(out, "\n%s\n", started.Opening)
	}

	r := &repl{
		service:   a.service,
		sessionID: sessionID,
		playerID:  playerID,
		in:        cmd.InOrStdin(),
		out:       out,
	}
	return r.run(ctx)
}

func rollCharacter(a *app, name, class string) (*entities.Character, error) {
	rolls, err := dice.RollAbilityScores(a.roller)
	if err != nil {
		return nil, err
	}
	return entities.NewCharacter(name, strings.ToLower(class), entities.ScoresFromRolls(rolls)), nil
}
