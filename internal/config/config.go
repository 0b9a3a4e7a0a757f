// Package config reads runtime settings from the environment. A .env file in
// the working directory is applied first when present.
package config

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/KirkDiggler/rpg-dm/internal/clients/generator"
	"github.com/KirkDiggler/rpg-dm/internal/clients/spells"
	"github.com/KirkDiggler/rpg-dm/internal/errors"
	"github.com/KirkDiggler/rpg-dm/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-dm/internal/repositories/sessions"
)

// Log levels accepted by DM_LOG_LEVEL
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Config holds every setting the dm binary reads
type Config struct {
	Provider        string        `env:"DM_PROVIDER" envDefault:"offline"`
	OpenAIKey       string        `env:"OPENAI_API_KEY"`
	GroqKey         string        `env:"GROQ_API_KEY"`
	AnthropicKey    string        `env:"ANTHROPIC_API_KEY"`
	Model           string        `env:"DM_MODEL"`
	Personality     string        `env:"DM_PERSONALITY" envDefault:"serious"`
	ContentRating   string        `env:"DM_CONTENT_RATING" envDefault:"teen"`
	GenerateTimeout time.Duration `env:"DM_GENERATE_TIMEOUT" envDefault:"20s"`

	SessionStore string `env:"DM_SESSION_STORE" envDefault:"file"`
	SessionsDir  string `env:"DM_SESSIONS_DIR" envDefault:"sessions"`
	RedisAddr    string `env:"DM_REDIS_ADDR" envDefault:"localhost:6379"`
	SQLitePath   string `env:"DM_SQLITE_PATH" envDefault:"sessions/dm.db"`

	AutosaveInterval int `env:"DM_AUTOSAVE_INTERVAL" envDefault:"3"`
	ContextEvents    int `env:"DM_CONTEXT_EVENTS" envDefault:"10"`

	SpellAPIURL string `env:"DM_SPELL_API_URL" envDefault:"https://www.dnd5eapi.co/api/2014/"`
	SpellLookup bool   `env:"DM_SPELL_LOOKUP" envDefault:"false"`

	LogLevel string `env:"DM_LOG_LEVEL" envDefault:"info"`
}

// Load applies .env (if any) and parses the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to read .env")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to parse environment")
	}
	return cfg, nil
}

// Parse reads settings from the given variables instead of the process
// environment
func Parse(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to parse environment")
	}
	return cfg, nil
}

// Validate checks enumerations and ranges
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	errors.ValidateEnum("DM_PROVIDER", c.Provider, generator.Providers(), vb)
	errors.ValidateEnum("DM_PERSONALITY", c.Personality, generator.Personalities(), vb)
	errors.ValidateEnum("DM_CONTENT_RATING", c.ContentRating, generator.ContentRatings(), vb)
	errors.ValidateEnum("DM_SESSION_STORE", c.SessionStore,
		[]string{sessions.BackendFile, sessions.BackendRedis, sessions.BackendSQLite}, vb)
	errors.ValidateEnum("DM_LOG_LEVEL", strings.ToLower(c.LogLevel),
		[]string{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}, vb)

	if c.GenerateTimeout <= 0 {
		vb.Fieldf("DM_GENERATE_TIMEOUT", "must be positive, got %s", c.GenerateTimeout)
	}
	if c.AutosaveInterval < 1 {
		vb.Fieldf("DM_AUTOSAVE_INTERVAL", "must be at least 1, got %d", c.AutosaveInterval)
	}
	if c.ContextEvents < 1 {
		vb.Fieldf("DM_CONTEXT_EVENTS", "must be at least 1, got %d", c.ContextEvents)
	}

	switch c.SessionStore {
	case sessions.BackendFile:
		errors.ValidateRequired("DM_SESSIONS_DIR", c.SessionsDir, vb)
	case sessions.BackendRedis:
		errors.ValidateRequired("DM_REDIS_ADDR", c.RedisAddr, vb)
	case sessions.BackendSQLite:
		errors.ValidateRequired("DM_SQLITE_PATH", c.SQLitePath, vb)
	}

	return vb.Build()
}

// Level maps LogLevel onto slog, info when unrecognized
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Generator returns the generator settings
func (c *Config) Generator(httpClient *http.Client) *generator.Config {
	return &generator.Config{
		Provider:      generator.Provider(c.Provider),
		OpenAIKey:     c.OpenAIKey,
		GroqKey:       c.GroqKey,
		AnthropicKey:  c.AnthropicKey,
		Model:         c.Model,
		Personality:   generator.Personality(c.Personality),
		ContentRating: generator.ContentRating(c.ContentRating),
		Timeout:       c.GenerateTimeout,
		HTTPClient:    httpClient,
	}
}

// Store returns the session store settings
func (c *Config) Store(clk clock.Clock) *sessions.Config {
	return &sessions.Config{
		Backend:    c.SessionStore,
		Dir:        c.SessionsDir,
		SQLitePath: c.SQLitePath,
		RedisAddr:  c.RedisAddr,
		Clock:      clk,
	}
}

// SpellAPI returns the remote catalog settings, nil when lookups are off
func (c *Config) SpellAPI() *spells.APIConfig {
	if !c.SpellLookup {
		return nil
	}
	return &spells.APIConfig{BaseURL: c.SpellAPIURL}
}
