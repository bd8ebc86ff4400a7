package llm

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/infrastructure/clients/anthropic"
	"github.com/carequery/decision-support/internal/infrastructure/clients/openai"
	"github.com/carequery/decision-support/pkg/config"
)

// NewCompletionProvider selects the completion backend from configuration.
// This is the only place in the codebase that knows which providers exist;
// everything downstream sees the CompletionProvider interface.
func NewCompletionProvider(cfg *config.Config) (providers.CompletionProvider, error) {
	switch cfg.LLM.Provider {
	case "openai":
		client, err := openai.NewClient(&cfg.LLM, &cfg.Embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai provider: %w", err)
		}
		log.Info().Str("provider", "openai").Str("model", client.Model()).Msg("completion provider configured")
		return client, nil

	case "anthropic":
		client, err := anthropic.NewClient(&cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic provider: %w", err)
		}
		log.Info().Str("provider", "anthropic").Str("model", client.Model()).Msg("completion provider configured")
		return client, nil

	case "mock":
		log.Warn().Msg("using mock completion provider, recommendations are canned")
		return NewMockProvider(), nil

	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

// NewEmbeddingProvider returns the embedding backend. Embeddings always go
// through OpenAI regardless of the completion provider, except in mock mode.
func NewEmbeddingProvider(cfg *config.Config) (providers.EmbeddingProvider, error) {
	if cfg.LLM.Provider == "mock" {
		return NewMockProvider(), nil
	}

	client, err := openai.NewClient(&cfg.LLM, &cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	return client, nil
}
