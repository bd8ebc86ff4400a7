package evaluation

import (
	"testing"

	"github.com/carequery/decision-support/internal/domain/entities"
)

func TestGuardrailsCleanRecommendation(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MaxActions: 5, RequireCitationAtHigh: true})

	rec := &entities.Recommendation{
		Text:       "Start ACE inhibitor.",
		Actions:    []string{"check creatinine"},
		Citations:  []entities.Citation{{Reference: "WHO-2024", Verified: true}},
		Confidence: entities.ConfidenceHigh,
	}
	if violations := g.Check(rec); len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
}

func TestGuardrailsFlagsProblems(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{MaxActions: 1, RequireCitationAtHigh: true})

	rec := &entities.Recommendation{
		Text:       "",
		Actions:    []string{"a", "b"},
		Citations:  []entities.Citation{{Reference: "Fabricated 2023", Verified: false}},
		Confidence: entities.ConfidenceHigh,
	}
	violations := g.Check(rec)
	if len(violations) != 3 {
		t.Errorf("expected 3 violations, got %d: %v", len(violations), violations)
	}
}

func TestGuardrailsHighConfidenceNeedsCitations(t *testing.T) {
	g := NewGuardrails(GuardrailConfig{RequireCitationAtHigh: true})

	rec := &entities.Recommendation{Text: "text", Confidence: entities.ConfidenceHigh}
	if violations := g.Check(rec); len(violations) != 1 {
		t.Errorf("expected 1 violation, got %v", violations)
	}

	// Low confidence with no citations is acceptable.
	rec.Confidence = entities.ConfidenceLow
	if violations := g.Check(rec); len(violations) != 0 {
		t.Errorf("expected no violations, got %v", violations)
	}
}
