package evaluation

import (
	"time"

	"github.com/carequery/decision-support/internal/domain/entities"
)

// GoldenQuery represents a labeled clinical query with expected outcomes.
type GoldenQuery struct {
	ID                string           `json:"id"`
	PatientID         int64            `json:"patient_id"`
	Query             string           `json:"query"`
	Urgency           entities.Urgency `json:"urgency"`
	IncludeHistory    bool             `json:"include_history"`
	ExpectedCitations []string         `json:"expected_citations"`
	Difficulty        string           `json:"difficulty"` // easy, medium, hard
}

// EvalResult holds the evaluation outcome for a single query.
type EvalResult struct {
	QueryID             string
	Query               string
	Urgency             entities.Urgency
	Confidence          entities.Confidence
	CitationCoverage    float64
	CitationRecall      float64
	EvidenceUtilization float64
	EvidenceCount       int
	Degraded            bool
	ParseAmbiguous      bool
	Violations          []string
	Latency             time.Duration
}

// EvalSummary holds aggregate metrics across all golden queries.
type EvalSummary struct {
	TotalQueries           int
	Failed                 int
	AvgCitationCoverage    float64
	AvgCitationRecall      float64
	AvgEvidenceUtilization float64
	AvgLatency             time.Duration
	DegradedCount          int
	AmbiguousCount         int
	ViolationCount         int
	ByUrgency              map[entities.Urgency]*UrgencySummary
}

// UrgencySummary holds metrics grouped by urgency tier.
type UrgencySummary struct {
	Count               int
	AvgCitationCoverage float64
	AvgLatency          time.Duration
}
