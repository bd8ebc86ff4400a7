package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
	"github.com/carequery/decision-support/pkg/config"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// RetrievalCoordinator fans out to the knowledge index and the live search
// gateway concurrently, then merges everything into one ranked evidence set.
//
// The knowledge index is the primary source: if every namespace fails, the
// invocation fails with EVIDENCE_UNAVAILABLE. The live gateway is secondary:
// its failure or absence only degrades the result.
type RetrievalCoordinator struct {
	knowledge providers.KnowledgeIndexProvider
	webSearch providers.WebSearchProvider
	recorder  providers.TraceRecorder
	cfg       *config.RetrievalConfig
}

// NewRetrievalCoordinator creates a new retrieval coordinator
func NewRetrievalCoordinator(
	knowledge providers.KnowledgeIndexProvider,
	webSearch providers.WebSearchProvider,
	recorder providers.TraceRecorder,
	cfg *config.RetrievalConfig,
) *RetrievalCoordinator {
	return &RetrievalCoordinator{
		knowledge: knowledge,
		webSearch: webSearch,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// Retrieve gathers evidence for the enriched query. The per-source timeout
// is the configured base scaled down by the query's urgency tier.
func (c *RetrievalCoordinator) Retrieve(ctx context.Context, enrichedQuery string, urgency entities.Urgency) (*entities.RankedEvidenceSet, error) {
	ctx, span := c.recorder.StartSpan(ctx, "retrieve")
	span.SetAttribute("query.urgency", string(urgency))

	set, err := c.retrieve(ctx, enrichedQuery, urgency)
	if err != nil {
		span.End(providers.SpanStatusError, err.Error())
		return nil, err
	}

	span.SetAttribute("evidence.count", len(set.Items))
	span.SetAttribute("evidence.degraded", set.Degraded)
	span.SetAttribute("evidence.truncated", set.TruncatedCount)
	span.End(providers.SpanStatusOK, fmt.Sprintf("%d items, %d estimated tokens", len(set.Items), set.EstimatedTokens))
	return set, nil
}

func (c *RetrievalCoordinator) retrieve(ctx context.Context, query string, urgency entities.Urgency) (*entities.RankedEvidenceSet, error) {
	logger := observability.LoggerFromContext(ctx)

	timeout := time.Duration(float64(c.cfg.BaseTimeout) * urgency.TimeoutFactor())

	namespaces := entities.KnowledgeNamespaces()

	var mu sync.Mutex
	var wg sync.WaitGroup
	// Results land in per-namespace slots so the merge input order is fixed
	// regardless of which goroutine finishes first.
	vectorResults := make([][]entities.EvidenceItem, len(namespaces))
	failedNamespaces := 0
	var searchItems []entities.EvidenceItem
	var searchErr error

	for i, ns := range namespaces {
		wg.Add(1)
		go func(slot int, namespace string) {
			defer wg.Done()
			nsCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			nsCtx, span := c.recorder.StartSpan(nsCtx, "vector_search")
			span.SetAttribute("namespace", namespace)

			items, err := c.knowledge.Search(nsCtx, namespace, query, c.cfg.PerNamespaceK)
			if err != nil {
				span.End(sourceFailureStatus(nsCtx, err), err.Error())
				logger.Warn().Err(err).Str("namespace", namespace).Msg("knowledge namespace search failed")
				mu.Lock()
				failedNamespaces++
				mu.Unlock()
				return
			}
			span.SetAttribute("items", len(items))
			span.End(providers.SpanStatusOK, fmt.Sprintf("%d items", len(items)))
			vectorResults[slot] = items
		}(i, ns)
	}

	if c.webSearch != nil && c.webSearch.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			searchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			searchCtx, span := c.recorder.StartSpan(searchCtx, "web_search")

			items, err := c.webSearch.Search(searchCtx, query, c.cfg.WebMaxResults)
			if err != nil {
				span.End(sourceFailureStatus(searchCtx, err), err.Error())
				logger.Warn().Err(err).Msg("live search failed")
				searchErr = err
				return
			}
			span.SetAttribute("items", len(items))
			span.End(providers.SpanStatusOK, fmt.Sprintf("%d items", len(items)))
			searchItems = items
		}()
	}

	wg.Wait()

	if failedNamespaces == len(namespaces) {
		return nil, apperrors.NewEvidenceUnavailableError("all knowledge index namespaces failed", nil)
	}

	vectorItems := make([]entities.EvidenceItem, 0, len(namespaces)*c.cfg.PerNamespaceK)
	for _, items := range vectorResults {
		vectorItems = append(vectorItems, items...)
	}

	set := c.merge(vectorItems, searchItems)

	if failedNamespaces > 0 {
		set.MarkDegraded(entities.DegradationKnowledgePartial)
	}
	if c.webSearch == nil || !c.webSearch.Enabled() || searchErr != nil {
		set.MarkDegraded(entities.DegradationWebSearchUnavailable)
	}

	return set, nil
}

// sourceFailureStatus maps a failed source call onto a span status. Deadline
// expiry closes the span as timeout, anything else as error.
func sourceFailureStatus(ctx context.Context, err error) providers.SpanStatus {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return providers.SpanStatusTimeout
	}
	return providers.SpanStatusError
}

// merge deduplicates, ranks and budget-truncates the combined evidence.
// Deterministic: the same inputs always produce the same set.
func (c *RetrievalCoordinator) merge(vectorItems, searchItems []entities.EvidenceItem) *entities.RankedEvidenceSet {
	combined := make([]entities.EvidenceItem, 0, len(vectorItems)+len(searchItems))
	combined = append(combined, vectorItems...)
	combined = append(combined, searchItems...)

	combined = dedupeEvidence(combined)

	// Descending by score; ties go to the vector index so curated
	// knowledge outranks an equally-scored web hit.
	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].Score != combined[j].Score {
			return combined[i].Score > combined[j].Score
		}
		return combined[i].Source == entities.SourceVectorIndex && combined[j].Source != entities.SourceVectorIndex
	})

	set := &entities.RankedEvidenceSet{
		TokenBudget: c.cfg.TokenBudget,
	}

	// Enforce the token budget by dropping from the bottom. Order of the
	// survivors is untouched.
	kept := make([]entities.EvidenceItem, 0, len(combined))
	total := 0
	for _, item := range combined {
		t := item.EstimatedTokens()
		if total+t > c.cfg.TokenBudget && len(kept) > 0 {
			break
		}
		kept = append(kept, item)
		total += t
	}
	set.Items = kept
	set.EstimatedTokens = total
	set.TruncatedCount = len(combined) - len(kept)

	for _, item := range kept {
		if item.Source == entities.SourceVectorIndex {
			set.VectorItemCount++
		} else {
			set.SearchItemCount++
		}
	}

	return set
}

// dedupeEvidence drops near-duplicate content, keeping the occurrence with
// the higher score. Near-duplicate means identical after lowercasing and
// whitespace collapsing.
func dedupeEvidence(items []entities.EvidenceItem) []entities.EvidenceItem {
	best := make(map[uint64]int, len(items))
	out := make([]entities.EvidenceItem, 0, len(items))

	for _, item := range items {
		key := contentHash(item.Content)
		if idx, ok := best[key]; ok {
			if item.Score > out[idx].Score {
				out[idx] = item
			}
			continue
		}
		best[key] = len(out)
		out = append(out, item)
	}
	return out
}

func contentHash(content string) uint64 {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	h := fnv.New64a()
	h.Write([]byte(normalized))
	return h.Sum64()
}
