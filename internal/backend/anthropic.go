package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicCompleter creates a hosted Claude transport. baseURL is only
// needed for proxies and tests.
func NewAnthropicCompleter(apiKey, baseURL, model string, maxTokens int) (*AnthropicCompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic transport: API key is not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaudeSonnet4_20250514
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicCompleter{
		client:    anthropic.NewClient(opts...),
		model:     m,
		maxTokens: int64(maxTokens),
	}, nil
}

func (s *AnthropicCompleter) Name() string {
	return "anthropic"
}

func (s *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return sb.String(), nil
}
