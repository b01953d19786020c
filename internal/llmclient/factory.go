// Package llmclient provides the text-generation backends for the diagnosis
// layer. The OpenAI and Anthropic clients speak their HTTP APIs directly with
// exponential-backoff retries; the Gemini client rides the official SDK.
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/flowlens/flowlens-cli/api/schemas"
	"github.com/flowlens/flowlens-cli/internal/config"
)

// NewClient is a factory function that creates an LLMClient based on the
// configured provider.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s %s %s]",
			cfg.Provider, config.ProviderOpenAI, config.ProviderGemini, config.ProviderAnthropic)
	}
}
