// Package generator produces Dungeon Master narration. OpenAI and Groq speak
// the OpenAI chat completions API, Anthropic its messages API; the offline
// generator needs no network and serves as the fallback whenever a provider
// fails.
package generator

import (
	"context"

	"github.com/KirkDiggler/rpg-dm/internal/dice"
)

//go:generate mockgen -destination=mock/mock_generator.go -package=generatormock github.com/KirkDiggler/rpg-dm/internal/clients/generator Generator

// Generator turns a player action into narration
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// Request is everything a generator sees for one reply
type Request struct {
	SystemPrompt string
	// Context holds rendered event summaries, oldest first
	Context      []string
	Action       string
	Dice         *dice.RollResult
}

// Provider names a generator backend
type Provider string

const (
	ProviderOffline   Provider = "offline"
	ProviderOpenAI    Provider = "openai"
	ProviderGroq      Provider = "groq"
	ProviderAnthropic Provider = "anthropic"
)

// Providers lists the accepted provider keys
func Providers() []string {
	return []string{
		string(ProviderOffline),
		string(ProviderOpenAI),
		string(ProviderGroq),
		string(ProviderAnthropic),
	}
}
