package generator

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/KirkDiggler/rpg-dm/internal/errors"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicConfig configures a generator backed by the Anthropic messages API
type AnthropicConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int64
	Temperature float64
	HTTPClient  *http.Client
}

// Validate ensures the config is usable
func (c *AnthropicConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("api_key", c.APIKey, vb)
	if c.MaxTokens < 0 {
		vb.InvalidField("max_tokens", "must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		vb.InvalidField("temperature", "must be between 0 and 1")
	}
	return vb.Build()
}

func (c *AnthropicConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = defaultAnthropicModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 400
	}
	if c.Temperature == 0 {
		c.Temperature = 0.8
	}
}

type anthropicGenerator struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

var _ Generator = (*anthropicGenerator)(nil)

// NewAnthropic creates a generator backed by the Anthropic messages API
func NewAnthropic(cfg *AnthropicConfig) (Generator, error) {
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
		option.WithMaxRetries(0),
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	}

	return &anthropicGenerator{
		client:      anthropic.NewClient(opts...),
		model:       c.Model,
		maxTokens:   c.MaxTokens,
		temperature: c.Temperature,
	}, nil
}

func (g *anthropicGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	if req == nil {
		return "", errors.InvalidArgument("request is required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildUserPrompt(req))),
		},
		Temperature: anthropic.Float(g.temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.WrapWithCodef(err, errors.CodeDeadlineExceeded, "%s request abandoned", ProviderAnthropic)
		}
		return "", errors.WrapWithCodef(err, errors.CodeUnavailable, "%s request failed", ProviderAnthropic)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", errors.Unavailablef("%s returned no text", ProviderAnthropic)
	}

	reply := strings.TrimSpace(strings.Join(parts, "\n"))
	slog.Debug("Generated reply",
		"provider", ProviderAnthropic,
		"model", g.model,
		"length", len(reply))
	return reply, nil
}
