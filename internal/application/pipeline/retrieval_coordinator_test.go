package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
)

func newCoordinator(knowledge *stubKnowledge, web *stubWebSearch) (*RetrievalCoordinator, *observability.MemoryRecorder) {
	recorder := observability.NewMemoryRecorder()
	return NewRetrievalCoordinator(knowledge, web, recorder, retrievalConfig()), recorder
}

func TestRetrieveDeduplicatesNearDuplicates(t *testing.T) {
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {
			vectorItem(0.80, "ACE inhibitors are first line.", "g-1"),
		},
	}}
	// Same content modulo case and whitespace, lower score.
	web := &stubWebSearch{enabled: true, items: []entities.EvidenceItem{
		searchItem(0.60, "ace  inhibitors are first LINE.", "w-1"),
		searchItem(0.50, "Distinct web content.", "w-2"),
	}}

	coordinator, _ := newCoordinator(knowledge, web)

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)
	require.Len(t, set.Items, 2)

	// The higher-scored occurrence survives.
	assert.Equal(t, 0.80, set.Items[0].Score)
	assert.Equal(t, entities.SourceVectorIndex, set.Items[0].Source)
}

func TestRetrieveDedupeKeepsHigherScoredDuplicate(t *testing.T) {
	items := []entities.EvidenceItem{
		searchItem(0.40, "shared text", "low"),
		vectorItem(0.90, "shared text", "high"),
	}
	deduped := dedupeEvidence(items)
	require.Len(t, deduped, 1)
	assert.Equal(t, 0.90, deduped[0].Score)
	assert.Equal(t, "high", deduped[0].Citation)

	// Running dedup again changes nothing.
	assert.Equal(t, deduped, dedupeEvidence(deduped))
}

func TestRetrieveTieBreakFavorsVectorIndex(t *testing.T) {
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {vectorItem(0.70, "vector evidence", "v")},
	}}
	web := &stubWebSearch{enabled: true, items: []entities.EvidenceItem{
		searchItem(0.70, "web evidence", "w"),
	}}

	coordinator, _ := newCoordinator(knowledge, web)

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)
	require.Len(t, set.Items, 2)
	assert.Equal(t, entities.SourceVectorIndex, set.Items[0].Source)
	assert.Equal(t, entities.SourceLiveSearch, set.Items[1].Source)
}

func TestRetrieveTokenBudgetDropsLowestFirst(t *testing.T) {
	// Each item is 100 tokens (400 chars). Budget of 250 keeps the top two.
	content := strings.Repeat("x", 400)
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {
			vectorItem(0.90, content+"a", "top"),
			vectorItem(0.80, content+"b", "mid"),
			vectorItem(0.70, content+"c", "bottom"),
		},
	}}

	coordinator, _ := newCoordinator(knowledge, &stubWebSearch{})
	coordinator.cfg.TokenBudget = 250

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)

	require.Len(t, set.Items, 2)
	assert.Equal(t, "top", set.Items[0].Citation)
	assert.Equal(t, "mid", set.Items[1].Citation)
	assert.Equal(t, 1, set.TruncatedCount)
	assert.LessOrEqual(t, set.EstimatedTokens, 250)
}

func TestRetrieveBudgetAlwaysKeepsTopItem(t *testing.T) {
	// A single item bigger than the whole budget is still kept; an empty
	// evidence set would be worse than an oversized one.
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {
			vectorItem(0.90, strings.Repeat("y", 4000), "huge"),
		},
	}}

	coordinator, _ := newCoordinator(knowledge, &stubWebSearch{})
	coordinator.cfg.TokenBudget = 100

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)
	require.Len(t, set.Items, 1)
	assert.Equal(t, "huge", set.Items[0].Citation)
}

func TestRetrieveWebSearchDisabledDegrades(t *testing.T) {
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {vectorItem(0.8, "evidence", "v")},
	}}

	coordinator, _ := newCoordinator(knowledge, &stubWebSearch{enabled: false})

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Contains(t, set.DegradedReasons, entities.DegradationWebSearchUnavailable)
	assert.NotContains(t, set.DegradedReasons, entities.DegradationKnowledgePartial)
}

func TestRetrieveWebSearchFailureDegrades(t *testing.T) {
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {vectorItem(0.8, "evidence", "v")},
	}}
	web := &stubWebSearch{enabled: true, err: errors.New("gateway down")}

	coordinator, _ := newCoordinator(knowledge, web)

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyHigh)
	require.NoError(t, err, "secondary source failure is never fatal")
	assert.True(t, set.Degraded)
	assert.Contains(t, set.DegradedReasons, entities.DegradationWebSearchUnavailable)
	require.Len(t, set.Items, 1)
}

func TestRetrievePartialNamespaceFailureDegrades(t *testing.T) {
	knowledge := &stubKnowledge{
		byNamespace: map[string][]entities.EvidenceItem{
			entities.NamespaceMedicalGuidelines: {vectorItem(0.8, "evidence", "v")},
		},
		errs: map[string]error{
			entities.NamespaceSafetyGuidelines: errors.New("collection missing"),
		},
	}
	web := &stubWebSearch{enabled: true, items: []entities.EvidenceItem{searchItem(0.5, "web", "w")}}

	coordinator, _ := newCoordinator(knowledge, web)

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)
	assert.True(t, set.Degraded)
	assert.Contains(t, set.DegradedReasons, entities.DegradationKnowledgePartial)
	assert.NotContains(t, set.DegradedReasons, entities.DegradationWebSearchUnavailable)
}

func TestRetrieveRecordsSpanPerSource(t *testing.T) {
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {vectorItem(0.8, "evidence", "v")},
	}}
	web := &stubWebSearch{enabled: true, items: []entities.EvidenceItem{searchItem(0.5, "web", "w")}}

	coordinator, recorder := newCoordinator(knowledge, web)

	_, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)

	retrieveSpan := recorder.Find("retrieve")
	require.NotNil(t, retrieveSpan)

	vectorSpans := 0
	for _, s := range recorder.Spans() {
		if s.Name != "vector_search" {
			continue
		}
		vectorSpans++
		assert.Equal(t, retrieveSpan.ID, s.ParentID)
		assert.Equal(t, providers.SpanStatusOK, s.Status)
	}
	assert.Equal(t, len(entities.KnowledgeNamespaces()), vectorSpans)

	webSpan := recorder.Find("web_search")
	require.NotNil(t, webSpan)
	assert.Equal(t, retrieveSpan.ID, webSpan.ParentID)
	assert.Equal(t, providers.SpanStatusOK, webSpan.Status)
}

func TestRetrieveWebSearchFailureClosesErrorSpan(t *testing.T) {
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {vectorItem(0.8, "evidence", "v")},
	}}
	web := &stubWebSearch{enabled: true, err: errors.New("gateway down")}

	coordinator, recorder := newCoordinator(knowledge, web)

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)
	assert.True(t, set.Degraded)

	webSpan := recorder.Find("web_search")
	require.NotNil(t, webSpan, "degraded source calls still appear in the trace")
	assert.Equal(t, providers.SpanStatusError, webSpan.Status)
	assert.Equal(t, "gateway down", webSpan.Summary)
}

func TestRetrieveNamespaceFailureClosesErrorSpan(t *testing.T) {
	knowledge := &stubKnowledge{
		byNamespace: map[string][]entities.EvidenceItem{
			entities.NamespaceMedicalGuidelines: {vectorItem(0.8, "evidence", "v")},
		},
		errs: map[string]error{
			entities.NamespaceSafetyGuidelines: errors.New("collection missing"),
		},
	}

	coordinator, recorder := newCoordinator(knowledge, &stubWebSearch{})

	_, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)

	var failed *observability.RecordedSpan
	for _, s := range recorder.Spans() {
		if s.Name == "vector_search" && s.Status == providers.SpanStatusError {
			failed = s
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, entities.NamespaceSafetyGuidelines, failed.Attributes["namespace"])
	assert.Equal(t, "collection missing", failed.Summary)
}

type hangingWebSearch struct{}

func (s *hangingWebSearch) Search(ctx context.Context, _ string, _ int) ([]entities.EvidenceItem, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *hangingWebSearch) Enabled() bool { return true }

func TestRetrieveWebSearchTimeoutClosesTimeoutSpan(t *testing.T) {
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {vectorItem(0.8, "evidence", "v")},
	}}

	recorder := observability.NewMemoryRecorder()
	cfg := retrievalConfig()
	cfg.BaseTimeout = 20 * time.Millisecond
	coordinator := NewRetrievalCoordinator(knowledge, &hangingWebSearch{}, recorder, cfg)

	set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)
	assert.Contains(t, set.DegradedReasons, entities.DegradationWebSearchUnavailable)

	webSpan := recorder.Find("web_search")
	require.NotNil(t, webSpan)
	assert.Equal(t, providers.SpanStatusTimeout, webSpan.Status)
}

func TestRetrieveDegradedReasonsDoNotRepeat(t *testing.T) {
	set := &entities.RankedEvidenceSet{}
	set.MarkDegraded(entities.DegradationWebSearchUnavailable)
	set.MarkDegraded(entities.DegradationWebSearchUnavailable)
	assert.Len(t, set.DegradedReasons, 1)
}

func TestRetrieveEqualScoreDuplicateWinnerIsStable(t *testing.T) {
	// Near-duplicates with equal scores collapse to the first occurrence in
	// merge input order, which follows namespace declaration order rather
	// than goroutine arrival order.
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines:  {vectorItem(0.75, "shared guidance text", "guideline-src")},
		entities.NamespaceTreatmentProtocols: {vectorItem(0.75, "Shared  guidance TEXT", "protocol-src")},
	}}

	coordinator, _ := newCoordinator(knowledge, &stubWebSearch{})

	for i := 0; i < 20; i++ {
		set, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
		require.NoError(t, err)
		require.Len(t, set.Items, 1)
		assert.Equal(t, "guideline-src", set.Items[0].Citation)
	}
}

func TestRetrieveDeterministicAcrossRuns(t *testing.T) {
	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines:  {vectorItem(0.78, "guideline B", "g-b")},
		entities.NamespaceTreatmentProtocols: {vectorItem(0.91, "protocol A", "p-a")},
		entities.NamespaceSafetyGuidelines:   {vectorItem(0.55, "safety C", "s-c")},
	}}
	web := &stubWebSearch{enabled: true, items: []entities.EvidenceItem{
		searchItem(0.70, "web D", "w-d"),
		searchItem(0.60, "web E", "w-e"),
	}}

	coordinator, _ := newCoordinator(knowledge, web)

	first, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
	require.NoError(t, err)

	// Concurrent fan-out must not leak arrival order into the ranking.
	for i := 0; i < 10; i++ {
		again, err := coordinator.Retrieve(context.Background(), "q", entities.UrgencyLow)
		require.NoError(t, err)
		require.Equal(t, len(first.Items), len(again.Items))
		for j := range first.Items {
			assert.Equal(t, first.Items[j].Citation, again.Items[j].Citation)
		}
	}
}
