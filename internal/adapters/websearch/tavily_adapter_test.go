package websearch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/infrastructure/clients/tavily"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

type stubSearcher struct {
	results []tavily.Result
	err     error
	calls   int
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]tavily.Result, error) {
	s.calls++
	return s.results, s.err
}

func TestTavilyAdapterSearchNormalizesScores(t *testing.T) {
	stub := &stubSearcher{
		results: []tavily.Result{
			{Title: "Guideline", URL: "https://who.int/a", Content: "first hit", Score: 0.7},
			{Title: "Study", URL: "https://pubmed.ncbi.nlm.nih.gov/b", Content: "second hit", Score: 3.5},
			{Title: "No body", URL: "https://cdc.gov/c", Score: 0.9},
		},
	}
	adapter := NewTavilyAdapter(stub, true)

	items, err := adapter.Search(context.Background(), "statin interactions", 3)
	require.NoError(t, err)
	require.Len(t, items, 2, "empty-content hits are dropped")

	assert.Equal(t, entities.SourceLiveSearch, items[0].Source)
	assert.Equal(t, "https://who.int/a", items[0].Citation)
	assert.InDelta(t, 0.7, items[0].Score, 0.001)

	// Out-of-range provider score falls back to rank-derived.
	assert.InDelta(t, 0.9, items[1].Score, 0.001)
}

func TestTavilyAdapterDisabled(t *testing.T) {
	adapter := NewTavilyAdapter(nil, true)
	assert.False(t, adapter.Enabled())

	_, err := adapter.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestTavilyAdapterCircuitBreakerOpens(t *testing.T) {
	stub := &stubSearcher{err: errors.New("gateway timeout")}
	adapter := NewTavilyAdapter(stub, true)

	for i := 0; i < 3; i++ {
		_, err := adapter.Search(context.Background(), "q", 3)
		require.Error(t, err)
	}

	// Breaker is open now; the underlying client must not be called again.
	_, err := adapter.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Equal(t, 3, stub.calls)
}
