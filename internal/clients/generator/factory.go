package generator

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

// Config selects a provider and narrator
type Config struct {
	Provider      Provider
	OpenAIKey     string
	GroqKey       string
	AnthropicKey  string
	Model         string
	BaseURL       string
	Personality   Personality
	ContentRating ContentRating
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Validate ensures the config names known options
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateEnum("provider", string(c.Provider), Providers(), vb)
	if c.Personality != "" {
		errors.ValidateEnum("personality", string(c.Personality), Personalities(), vb)
	}
	if c.ContentRating != "" {
		errors.ValidateEnum("content_rating", string(c.ContentRating), ContentRatings(), vb)
	}
	if c.Timeout < 0 {
		vb.InvalidField("timeout", "must not be negative")
	}
	return vb.Build()
}

// New builds the configured generator. Cloud providers are wrapped so the
// offline generator answers when they fail; a cloud provider without an API
// key degrades to offline mode.
func New(cfg *Config) (Generator, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid generator config")
	}

	offline := NewOffline(&OfflineConfig{Personality: cfg.Personality})
	if cfg.Provider == ProviderOffline {
		return offline, nil
	}

	key := cfg.OpenAIKey
	switch cfg.Provider {
	case ProviderGroq:
		key = cfg.GroqKey
	case ProviderAnthropic:
		key = cfg.AnthropicKey
	}
	if key == "" {
		slog.Warn("No API key configured, running offline", "provider", cfg.Provider)
		return offline, nil
	}

	var primary Generator
	var err error
	if cfg.Provider == ProviderAnthropic {
		primary, err = NewAnthropic(&AnthropicConfig{
			APIKey:     key,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: cfg.HTTPClient,
		})
	} else {
		primary, err = NewOpenAI(&OpenAIConfig{
			Provider:   cfg.Provider,
			APIKey:     key,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			HTTPClient: cfg.HTTPClient,
		})
	}
	if err != nil {
		return nil, err
	}
	return WithFallback(primary, offline, cfg.Timeout), nil
}
