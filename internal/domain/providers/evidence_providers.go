package providers

import (
	"context"

	"github.com/carequery/decision-support/internal/domain/entities"
)

// KnowledgeIndexProvider is the read interface to the vector knowledge
// index. Scores returned are cosine similarities in [0,1].
type KnowledgeIndexProvider interface {
	// Search runs a nearest-neighbor query within one namespace
	Search(ctx context.Context, namespace, query string, k int) ([]entities.EvidenceItem, error)
}

// WebSearchProvider is the live search gateway over trusted-domain sources.
// It may be globally disabled; the retrieval coordinator treats its absence
// as degradation, never as failure.
type WebSearchProvider interface {
	// Search returns up to maxResults items with scores normalized to [0,1]
	Search(ctx context.Context, query string, maxResults int) ([]entities.EvidenceItem, error)

	// Enabled reports whether the gateway is configured and switched on
	Enabled() bool
}

// EmbeddingProvider turns text into a fixed-length vector. The embedding
// model is an external black box.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completion is the result of one LLM completion call
type Completion struct {
	Text       string
	TokensUsed int
}

// CompletionProvider is the capability interface over the configured LLM.
// Exactly one implementation is selected at startup; the synthesis engine
// never branches on provider identity.
type CompletionProvider interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (*Completion, error)

	// Name returns the provider identity for the recommendation metadata
	Name() string

	// Model returns the configured model identifier
	Model() string
}
