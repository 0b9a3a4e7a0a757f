package generator

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

const (
	// GroqBaseURL is Groq's OpenAI compatible endpoint
	GroqBaseURL = "https://api.groq.com/openai/v1/"

	defaultOpenAIModel = "gpt-3.5-turbo"
	defaultGroqModel   = "llama-3.1-8b-instant"
)

// OpenAIConfig configures a chat completions generator. Groq is served by the
// same client pointed at GroqBaseURL.
type OpenAIConfig struct {
	Provider    Provider
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
	HTTPClient  *http.Client
}

// Validate ensures the config is usable
func (c *OpenAIConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateEnum("provider", string(c.Provider), []string{string(ProviderOpenAI), string(ProviderGroq)}, vb)
	errors.ValidateRequired("api_key", c.APIKey, vb)
	if c.MaxTokens < 0 {
		vb.InvalidField("max_tokens", "must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		vb.InvalidField("temperature", "must be between 0 and 2")
	}
	return vb.Build()
}

func (c *OpenAIConfig) applyDefaults() {
	switch c.Provider {
	case ProviderGroq:
		if c.Model == "" {
			c.Model = defaultGroqModel
		}
		if c.BaseURL == "" {
			c.BaseURL = GroqBaseURL
		}
		if c.MaxTokens == 0 {
			c.MaxTokens = 400
		}
		if c.Temperature == 0 {
			c.Temperature = 0.8
		}
	default:
		if c.Model == "" {
			c.Model = defaultOpenAIModel
		}
		if c.MaxTokens == 0 {
			c.MaxTokens = 300
		}
		if c.Temperature == 0 {
			c.Temperature = 0.7
		}
	}
}

type openAIGenerator struct {
	client      openai.Client
	provider    Provider
	model       string
	maxTokens   int64
	temperature float64
}

var _ Generator = (*openAIGenerator)(nil)

// NewOpenAI creates a generator backed by an OpenAI compatible API
func NewOpenAI(cfg *OpenAIConfig) (Generator, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	c := *cfg
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid generator config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		// the fallback generator covers failures; retries would only eat the timeout
		option.WithMaxRetries(0),
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}

	return &openAIGenerator{
		client:      openai.NewClient(opts...),
		provider:    c.Provider,
		model:       c.Model,
		maxTokens:   c.MaxTokens,
		temperature: c.Temperature,
	}, nil
}

func (g *openAIGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	if req == nil {
		return "", errors.InvalidArgument("request is required")
	}

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(BuildUserPrompt(req)),
		},
		MaxTokens:   openai.Int(g.maxTokens),
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.WrapWithCodef(err, errors.CodeDeadlineExceeded, "%s request abandoned", g.provider)
		}
		return "", errors.WrapWithCodef(err, errors.CodeUnavailable, "%s request failed", g.provider)
	}
	if len(resp.Choices) == 0 {
		return "", errors.Unavailablef("%s returned no choices", g.provider)
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	slog.Debug("Generated reply",
		"provider", g.provider,
		"model", g.model,
		"length", len(reply))
	return reply, nil
}
