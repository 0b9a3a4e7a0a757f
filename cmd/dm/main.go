// Package main is the entry point for the dm command line game
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-dm/internal/config"
)

var (
	logLevel    string
	provider    string
	store       string
	sessionsDir string

	// cfg is loaded before any subcommand runs
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dm",
	Short: "A text adventure run by an AI dungeon master",
	Long: `dm runs tabletop style adventures in the terminal. A dungeon master narrates
your actions, rolls dice when the story calls for it and runs turn based fights.
Campaigns are saved as you play and can be resumed later.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides DM_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "Narrator: offline, openai, groq, anthropic (overrides DM_PROVIDER)")
	rootCmd.PersistentFlags().StringVar(&store, "store", "", "Session store: file, redis, sqlite (overrides DM_SESSION_STORE)")
	rootCmd.PersistentFlags().StringVar(&sessionsDir, "sessions-dir", "", "Directory for the file store (overrides DM_SESSIONS_DIR)")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(rollCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("provider") {
		loaded.Provider = provider
	}
	if flags.Changed("store") {
		loaded.SessionStore = store
	}
	if flags.Changed("sessions-dir") {
		loaded.SessionsDir = sessionsDir
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: loaded.Level()})))
	cfg = loaded
	return nil
}
