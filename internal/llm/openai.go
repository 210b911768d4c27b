package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joescharf/todoai/internal/models"
)

// DefaultOpenAIBaseURL is the public OpenAI API root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider calls the Chat Completions endpoint over plain HTTP.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewOpenAIProvider creates the "gpt" backend. baseURL may be empty.
func NewOpenAIProvider(apiKey, baseURL string, timeout time.Duration) *OpenAIProvider {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (p *OpenAIProvider) Name() models.Provider { return models.ProviderGPT }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

func buildChatRequest(req Request) chatRequest {
	body := chatRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  make([]chatMessage, 0, len(req.Messages)+1),
	}
	// The system instruction travels as a leading system message.
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return body
}

// Complete posts the history and returns choices[0].message.content, or "" when absent.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(buildChatRequest(req))
	if err != nil {
		return "", providerError(p.Name(), fmt.Errorf("encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", providerError(p.Name(), fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return "", providerError(p.Name(), fmt.Errorf("openai API call: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providerError(p.Name(), fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return "", providerError(p.Name(), fmt.Errorf("openai API status %d: %s", resp.StatusCode, msg))
	}
	if !gjson.ValidBytes(body) {
		return "", providerError(p.Name(), fmt.Errorf("openai API returned invalid JSON"))
	}

	return gjson.GetBytes(body, "choices.0.message.content").String(), nil
}
