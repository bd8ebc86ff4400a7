package websearch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/infrastructure/clients/tavily"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// searcher is the slice of the Tavily client the adapter uses
type searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]tavily.Result, error)
}

// TavilyAdapter implements WebSearchProvider over the Tavily REST client.
// Calls go through a circuit breaker: once the gateway starts failing, the
// pipeline stops waiting on it and reports degradation instead.
type TavilyAdapter struct {
	client  searcher
	enabled bool
	breaker *gobreaker.CircuitBreaker
}

// NewTavilyAdapter creates a new web search adapter. Passing a nil client
// yields a permanently disabled provider.
func NewTavilyAdapter(client searcher, enabled bool) providers.WebSearchProvider {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tavily",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("web search circuit breaker state changed")
		},
	})

	return &TavilyAdapter{
		client:  client,
		enabled: enabled && client != nil,
		breaker: breaker,
	}
}

// Enabled reports whether the gateway is configured and switched on
func (a *TavilyAdapter) Enabled() bool {
	return a.enabled
}

// Search queries the gateway and normalizes raw hits into evidence items.
// Provider relevance scores are used when they are already in [0,1];
// anything else falls back to a rank-derived score so ordering survives.
func (a *TavilyAdapter) Search(ctx context.Context, query string, maxResults int) ([]entities.EvidenceItem, error) {
	if !a.enabled {
		return nil, apperrors.NewExternalError("web search gateway is disabled", nil)
	}

	raw, err := a.breaker.Execute(func() (interface{}, error) {
		return a.client.Search(ctx, query, maxResults)
	})
	if err != nil {
		return nil, apperrors.NewExternalError("web search failed", err)
	}

	results := raw.([]tavily.Result)
	now := time.Now()
	items := make([]entities.EvidenceItem, 0, len(results))
	for i, r := range results {
		if r.Content == "" {
			continue
		}
		items = append(items, entities.EvidenceItem{
			Source:      entities.SourceLiveSearch,
			Content:     r.Content,
			Score:       normalizeScore(r.Score, i),
			Citation:    citationFor(r),
			RetrievedAt: now,
		})
	}
	return items, nil
}

func citationFor(r tavily.Result) string {
	if r.URL != "" {
		return r.URL
	}
	return r.Title
}

// normalizeScore maps a provider relevance score into [0,1]. Scores the
// provider reports outside the unit interval are untrustworthy; rank order
// is the only signal left, so derive a score from position instead.
func normalizeScore(score float64, rank int) float64 {
	if score >= 0 && score <= 1 {
		return score
	}
	s := 1.0 - float64(rank)*0.1
	if s < 0.1 {
		s = 0.1
	}
	return s
}
