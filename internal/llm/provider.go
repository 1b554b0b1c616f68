package llm

import (
	"context"
	"time"
)

// Completer is the language model caller. Implementations decode
// deterministically (temperature 0) so repeated runs give the same verdicts.
type Completer interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single user prompt and returns the reply text
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "zhipu", "openai", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (OpenAI-compatible gateways, Ollama)
	BaseURL string

	// Timeout for a single API request in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "zhipu",
		Model:     "glm-4-flash",
		Timeout:   60,
		MaxTokens: 2048,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c Config) maxTokens() int {
	if c.MaxTokens <= 0 {
		return 2048
	}
	return c.MaxTokens
}
