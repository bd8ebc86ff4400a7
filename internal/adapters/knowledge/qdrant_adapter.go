package knowledge

import (
	"context"
	"fmt"
	"time"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	qdrantclientwrap "github.com/carequery/decision-support/internal/infrastructure/clients/qdrant"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// Payload fields stored alongside each embedded document chunk.
const (
	payloadFieldText   = "text"
	payloadFieldTitle  = "title"
	payloadFieldSource = "source"
)

// pointsSearcher is the slice of the Qdrant points service the adapter
// actually uses. Satisfied by the generated gRPC client.
type pointsSearcher interface {
	Search(ctx context.Context, in *qdrantclient.SearchPoints, opts ...grpc.CallOption) (*qdrantclient.SearchResponse, error)
}

// QdrantAdapter implements KnowledgeIndexProvider over a Qdrant instance.
// Each namespace maps to one collection; queries are embedded on the fly
// with the configured embedding provider.
type QdrantAdapter struct {
	points   pointsSearcher
	embedder providers.EmbeddingProvider
}

// NewQdrantAdapter creates a new knowledge index adapter
func NewQdrantAdapter(client *qdrantclientwrap.Client, embedder providers.EmbeddingProvider) providers.KnowledgeIndexProvider {
	return &QdrantAdapter{
		points:   client.Points(),
		embedder: embedder,
	}
}

// Search embeds the query and runs a nearest-neighbor search within the
// namespace's collection. Scores are clamped to [0,1] before they leave
// the adapter; the ranking stage assumes that range.
func (a *QdrantAdapter) Search(ctx context.Context, namespace, query string, k int) ([]entities.EvidenceItem, error) {
	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to embed query", err)
	}

	resp, err := a.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: namespace,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Include{
				Include: &qdrantclient.PayloadIncludeSelector{
					Fields: []string{payloadFieldText, payloadFieldTitle, payloadFieldSource},
				},
			},
		},
	})
	if err != nil {
		return nil, apperrors.NewExternalError(fmt.Sprintf("knowledge index search failed for %s", namespace), err)
	}

	now := time.Now()
	items := make([]entities.EvidenceItem, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		text := payloadString(point.GetPayload(), payloadFieldText)
		if text == "" {
			log.Warn().Str("namespace", namespace).Msg("skipping indexed point with empty text payload")
			continue
		}

		citation := payloadString(point.GetPayload(), payloadFieldSource)
		if citation == "" {
			citation = payloadString(point.GetPayload(), payloadFieldTitle)
		}
		if citation == "" {
			citation = namespace
		}

		items = append(items, entities.EvidenceItem{
			Source:      entities.SourceVectorIndex,
			Namespace:   namespace,
			Content:     text,
			Score:       clampScore(float64(point.GetScore())),
			Citation:    citation,
			RetrievedAt: now,
		})
	}

	return items, nil
}

func payloadString(payload map[string]*qdrantclient.Value, field string) string {
	if v, ok := payload[field]; ok {
		return v.GetStringValue()
	}
	return ""
}

// clampScore bounds a cosine similarity into [0,1]
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
