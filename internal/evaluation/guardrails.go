package evaluation

import (
	"fmt"

	"github.com/carequery/decision-support/internal/domain/entities"
)

type GuardrailConfig struct {
	MaxActions            int
	RequireCitationAtHigh bool
}

// Guardrails checks a recommendation against output-quality rules. A
// violation never blocks the recommendation; it is reported for review.
type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxActions <= 0 {
		config.MaxActions = 10
	}
	return &Guardrails{config: config}
}

// Check returns the list of violated rules, empty when the recommendation
// passes.
func (g *Guardrails) Check(rec *entities.Recommendation) []string {
	var violations []string

	if rec.Text == "" {
		violations = append(violations, "empty recommendation text")
	}
	if len(rec.Actions) > g.config.MaxActions {
		violations = append(violations, fmt.Sprintf("too many actions (%d > %d)", len(rec.Actions), g.config.MaxActions))
	}
	if g.config.RequireCitationAtHigh && rec.Confidence == entities.ConfidenceHigh && len(rec.Citations) == 0 {
		violations = append(violations, "high confidence with no citations")
	}
	for _, c := range rec.Citations {
		if !c.Verified {
			violations = append(violations, fmt.Sprintf("unverified citation: %s", c.Reference))
		}
	}

	return violations
}
