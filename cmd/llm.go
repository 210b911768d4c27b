package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/todoai/internal/llm"
)

// apiKey reads key from config, falling back to the provider's usual env var.
func apiKey(key, env string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return os.Getenv(env)
}

// newRegistry registers every provider that has an API key configured.
// The registry is empty when none do.
func newRegistry() *llm.Registry {
	reg := llm.NewRegistry()
	timeout := viper.GetDuration("ai.timeout")

	if key := apiKey("anthropic.api_key", "ANTHROPIC_API_KEY"); key != "" {
		reg.Register(
			llm.NewAnthropicProvider(key, viper.GetString("anthropic.base_url"), timeout),
			viper.GetString("anthropic.model"),
		)
	}
	if key := apiKey("openai.api_key", "OPENAI_API_KEY"); key != "" {
		reg.Register(
			llm.NewOpenAIProvider(key, viper.GetString("openai.base_url"), timeout),
			viper.GetString("openai.model"),
		)
	}

	slog.Debug("AI providers", "registry", reg.String())
	return reg
}
