package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/citecheck/internal/model"
)

// NewProvider creates a Completer based on configuration
func NewProvider(config Config) (Completer, error) {
	switch strings.ToLower(config.Provider) {
	case "zhipu", "glm":
		return NewZhipuProvider(config)

	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: zhipu, openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the process configuration to llm.Config
func ConfigFromModel(cfg *model.Config) Config {
	return Config{
		Provider:   cfg.LLM.Provider,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Timeout:    cfg.LLM.Timeout,
		MaxTokens:  cfg.LLM.MaxTokens,
		HTTPProxy:  cfg.HTTP.HTTPProxy,
		HTTPSProxy: cfg.HTTP.HTTPSProxy,
		NoProxy:    cfg.HTTP.NoProxy,
	}
}

// APIKeyEnv returns the environment variable holding the key for a provider
func APIKeyEnv(provider string) string {
	switch strings.ToLower(provider) {
	case "zhipu", "glm":
		return "ZHIPUAI_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic", "claude":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
