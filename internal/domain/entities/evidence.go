package entities

import (
	"time"
)

// SourceKind identifies where an evidence item came from
type SourceKind string

const (
	SourceVectorIndex SourceKind = "vector_index"
	SourceLiveSearch  SourceKind = "live_search"
)

// Knowledge index namespaces. Each groups pre-embedded documents by class.
const (
	NamespaceMedicalGuidelines  = "medical_guidelines"
	NamespaceTreatmentProtocols = "treatment_protocols"
	NamespaceSafetyGuidelines   = "safety_guidelines"
)

// KnowledgeNamespaces returns all configured knowledge index namespaces
func KnowledgeNamespaces() []string {
	return []string{
		NamespaceMedicalGuidelines,
		NamespaceTreatmentProtocols,
		NamespaceSafetyGuidelines,
	}
}

// EvidenceItem is the normalized unit of retrieved evidence from any source.
// Score must be in [0,1] before the item enters the ranking stage, whatever
// its origin.
type EvidenceItem struct {
	Source      SourceKind `json:"source"`
	Namespace   string     `json:"namespace,omitempty"`
	Content     string     `json:"content"`
	Score       float64    `json:"score"`
	Citation    string     `json:"citation"`
	RetrievedAt time.Time  `json:"retrieved_at"`
}

// EstimatedTokens approximates the token length of the item's content.
// Four characters per token is close enough for budget enforcement.
func (e *EvidenceItem) EstimatedTokens() int {
	n := len(e.Content) / 4
	if n == 0 && len(e.Content) > 0 {
		n = 1
	}
	return n
}

// Degradation flags attached to a retrieval result
const (
	DegradationWebSearchUnavailable = "web_search_unavailable"
	DegradationKnowledgePartial     = "knowledge_partial"
)

// RankedEvidenceSet is the merged, deduplicated, score-ordered evidence for
// one invocation. Items are sorted descending by score; ties favor the
// vector index. Owned by a single invocation.
type RankedEvidenceSet struct {
	Items           []EvidenceItem `json:"items"`
	Degraded        bool           `json:"degraded"`
	DegradedReasons []string       `json:"degraded_reasons,omitempty"`
	TruncatedCount  int            `json:"truncated_count"`
	TokenBudget     int            `json:"token_budget"`
	EstimatedTokens int            `json:"estimated_tokens"`
	VectorItemCount int            `json:"vector_item_count"`
	SearchItemCount int            `json:"search_item_count"`
}

// MarkDegraded records a non-fatal source failure on the set
func (s *RankedEvidenceSet) MarkDegraded(reason string) {
	s.Degraded = true
	for _, r := range s.DegradedReasons {
		if r == reason {
			return
		}
	}
	s.DegradedReasons = append(s.DegradedReasons, reason)
}
