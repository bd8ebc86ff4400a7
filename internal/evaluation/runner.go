package evaluation

import (
	"context"
	"time"

	"github.com/carequery/decision-support/internal/domain/entities"
)

// RecommendationProvider is the slice of the pipeline the runner needs.
type RecommendationProvider interface {
	Execute(ctx context.Context, query *entities.ClinicalQuery) (*entities.Recommendation, error)
}

// Runner runs evaluation across a set of golden queries.
type Runner struct {
	pipeline   RecommendationProvider
	guardrails *Guardrails
}

func NewRunner(pipeline RecommendationProvider, guardrails *Guardrails) *Runner {
	return &Runner{pipeline: pipeline, guardrails: guardrails}
}

func (r *Runner) Run(ctx context.Context, queries []GoldenQuery) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalQueries: len(queries),
		ByUrgency:    make(map[entities.Urgency]*UrgencySummary),
	}

	for _, gq := range queries {
		start := time.Now()
		rec, err := r.pipeline.Execute(ctx, &entities.ClinicalQuery{
			PatientID:      gq.PatientID,
			Query:          gq.Query,
			IncludeHistory: gq.IncludeHistory,
			Urgency:        gq.Urgency,
		})
		duration := time.Since(start)

		if err != nil {
			summary.Failed++
			continue
		}

		result := EvalResult{
			QueryID:             gq.ID,
			Query:               gq.Query,
			Urgency:             gq.Urgency,
			Confidence:          rec.Confidence,
			CitationCoverage:    CitationCoverage(rec.Citations),
			CitationRecall:      CitationRecall(gq.ExpectedCitations, rec.Citations),
			EvidenceUtilization: EvidenceUtilization(rec.Evidence, rec.Citations),
			Degraded:            rec.Degraded,
			ParseAmbiguous:      rec.ParseAmbiguous,
			Latency:             duration,
		}
		if rec.Evidence != nil {
			result.EvidenceCount = len(rec.Evidence.Items)
		}
		if r.guardrails != nil {
			result.Violations = r.guardrails.Check(rec)
		}

		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.AvgCitationCoverage += res.CitationCoverage
	s.AvgCitationRecall += res.CitationRecall
	s.AvgEvidenceUtilization += res.EvidenceUtilization
	s.AvgLatency += res.Latency
	if res.Degraded {
		s.DegradedCount++
	}
	if res.ParseAmbiguous {
		s.AmbiguousCount++
	}
	s.ViolationCount += len(res.Violations)

	if _, ok := s.ByUrgency[res.Urgency]; !ok {
		s.ByUrgency[res.Urgency] = &UrgencySummary{}
	}
	us := s.ByUrgency[res.Urgency]
	us.Count++
	us.AvgCitationCoverage += res.CitationCoverage
	us.AvgLatency += res.Latency
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	completed := s.TotalQueries - s.Failed
	if completed > 0 {
		n := float64(completed)
		s.AvgCitationCoverage /= n
		s.AvgCitationRecall /= n
		s.AvgEvidenceUtilization /= n
		s.AvgLatency /= time.Duration(completed)
	}

	for _, us := range s.ByUrgency {
		if us.Count > 0 {
			us.AvgCitationCoverage /= float64(us.Count)
			us.AvgLatency /= time.Duration(us.Count)
		}
	}
}
