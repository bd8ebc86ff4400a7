package entities

import (
	"time"
)

// Confidence indicates how strongly the model committed to its answer,
// derived from whether it explicitly stated evidence sufficiency.
type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceHigh     Confidence = "high"
)

// Citation is one source referenced by the synthesized text. Citations that
// do not match any item in the evidence set are kept and marked unverified.
type Citation struct {
	Reference string `json:"reference"`
	Source    string `json:"source,omitempty"`
	Verified  bool   `json:"verified"`
}

// Recommendation is the final output of one invocation. Created once,
// immutable, returned to the caller and recorded on the trace.
type Recommendation struct {
	Text            string             `json:"text"`
	Actions         []string           `json:"actions"`
	Citations       []Citation         `json:"citations"`
	Confidence      Confidence         `json:"confidence"`
	Evidence        *RankedEvidenceSet `json:"evidence"`
	Degraded        bool               `json:"degraded"`
	DegradedReasons []string           `json:"degraded_reasons,omitempty"`
	ParseAmbiguous  bool               `json:"parse_ambiguous"`
	Provider        string             `json:"provider"`
	Model           string             `json:"model"`
	TokensUsed      int                `json:"tokens_used"`
	GenerationTime  time.Duration      `json:"generation_time"`
	GeneratedAt     time.Time          `json:"generated_at"`
}
