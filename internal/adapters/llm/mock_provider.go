package llm

import (
	"context"
	"hash/fnv"

	"github.com/carequery/decision-support/internal/domain/providers"
)

const mockEmbeddingDimension = 1536

// MockProvider implements CompletionProvider and EmbeddingProvider with
// deterministic canned output. Used in local development and evaluation
// runs where calling a real LLM is unwanted.
type MockProvider struct{}

// NewMockProvider creates a new mock provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns the provider identity
func (m *MockProvider) Name() string { return "mock" }

// Model returns the configured model identifier
func (m *MockProvider) Model() string { return "mock-clinical-v1" }

// Complete returns a canned recommendation in the structured output format
// the synthesis parser expects. Deterministic for a given prompt.
func (m *MockProvider) Complete(_ context.Context, prompt string, _ int) (*providers.Completion, error) {
	text := `RECOMMENDATION:
Based on the retrieved evidence, continue current therapy and reassess ` +
		`in two weeks. Verify renal function before any dose adjustment.

ACTIONS:
- Review current medication list for interactions
- Order baseline renal function panel
- Schedule follow-up within two weeks

CITATIONS:
[1] WHO-2024

EVIDENCE SUFFICIENCY: sufficient`

	return &providers.Completion{
		Text:       text,
		TokensUsed: len(prompt)/4 + len(text)/4,
	}, nil
}

// Embed returns a deterministic pseudo-embedding derived from the text.
// Same input always maps to the same vector.
func (m *MockProvider) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vector := make([]float32, mockEmbeddingDimension)
	for i := range vector {
		seed = seed*6364136223846793005 + 1442695040888963407
		vector[i] = float32(seed%2000)/1000.0 - 1.0
	}
	return vector, nil
}
