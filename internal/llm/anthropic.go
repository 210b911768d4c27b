package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/todoai/internal/models"
)

// AnthropicProvider wraps the Anthropic Messages API.
type AnthropicProvider struct {
	api *anthropic.Client
}

// NewAnthropicProvider creates the "claude" backend. baseURL may be empty.
func NewAnthropicProvider(apiKey, baseURL string, timeout time.Duration) *AnthropicProvider {
	opts := []option.RequestOption{
		// Retry policy belongs to callers, and this system has none.
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{api: &client}
}

func (p *AnthropicProvider) Name() models.Provider { return models.ProviderClaude }

// Complete sends the history with the optional system prompt as a system block.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  anthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	msg, err := p.api.Messages.New(ctx, params)
	if err != nil {
		return "", providerError(p.Name(), fmt.Errorf("anthropic API call: %w", err))
	}

	// First text block wins; other block types are skipped.
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

func anthropicMessages(msgs []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
