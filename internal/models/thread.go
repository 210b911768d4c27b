package models

import "time"

// Provider identifies an AI backend.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderGPT    Provider = "gpt"

	// DefaultProvider is used whenever a stored or requested provider is absent or unknown.
	DefaultProvider = ProviderClaude
)

// ResolveProvider maps p to a known provider, falling back to DefaultProvider.
func ResolveProvider(p Provider) Provider {
	switch p {
	case ProviderClaude, ProviderGPT:
		return p
	}
	return DefaultProvider
}

// NormalizeProvider keeps an absent provider absent and resolves anything else.
func NormalizeProvider(p Provider) Provider {
	if p == "" {
		return ""
	}
	return ResolveProvider(p)
}

// Role is the author of a thread message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Thread is an append-only conversation about one task, pinned to one provider.
type Thread struct {
	ID        string    `json:"id"`
	TodoID    string    `json:"todoId"`
	Provider  Provider  `json:"provider"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Turn returns the (user, assistant) message pair for one exchange.
func Turn(user, assistant string) []Message {
	return []Message{
		{Role: RoleUser, Content: user},
		{Role: RoleAssistant, Content: assistant},
	}
}
