package entities

import (
	"strings"
	"time"

	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// Urgency represents the urgency tier of a clinical query
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// IsValid checks if the urgency value is one of the defined tiers
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// TimeoutFactor returns the fraction of the base per-source timeout granted
// at this urgency tier. Critical queries get the shortest budget so slow
// research never blocks an urgent answer.
func (u Urgency) TimeoutFactor() float64 {
	switch u {
	case UrgencyCritical:
		return 0.3
	case UrgencyHigh:
		return 0.5
	case UrgencyMedium:
		return 0.7
	default:
		return 1.0
	}
}

// ClinicalQuery identifies one pipeline invocation. Immutable once accepted.
type ClinicalQuery struct {
	PatientID      int64   `json:"patient_id"`
	Query          string  `json:"query"`
	IncludeHistory bool    `json:"include_history"`
	Urgency        Urgency `json:"urgency"`
}

// Validate checks the query is acceptable before the pipeline starts
func (q *ClinicalQuery) Validate() error {
	if q.PatientID <= 0 {
		return apperrors.NewValidationError("patient id is required")
	}
	if strings.TrimSpace(q.Query) == "" {
		return apperrors.NewValidationError("query text is required")
	}
	if !q.Urgency.IsValid() {
		return apperrors.NewValidationError("urgency must be one of low, medium, high, critical")
	}
	return nil
}

// InvocationState tracks the linear pipeline state machine
type InvocationState string

const (
	StateReceived     InvocationState = "RECEIVED"
	StateContextBuilt InvocationState = "CONTEXT_BUILT"
	StateRetrieving   InvocationState = "RETRIEVING"
	StateRetrieved    InvocationState = "RETRIEVED"
	StateSynthesizing InvocationState = "SYNTHESIZING"
	StateDone         InvocationState = "DONE"
	StateFailed       InvocationState = "FAILED"
)

// InvocationRecord is the append-only audit row written after each
// invocation completes, successfully or not.
type InvocationRecord struct {
	ID         string          `json:"id" db:"id"`
	PatientID  int64           `json:"patient_id" db:"patient_id"`
	Query      string          `json:"query" db:"query"`
	Urgency    Urgency         `json:"urgency" db:"urgency"`
	FinalState InvocationState `json:"final_state" db:"final_state"`
	ErrorType  string          `json:"error_type,omitempty" db:"error_type"`
	Degraded   bool            `json:"degraded" db:"degraded"`
	LatencyMs  int64           `json:"latency_ms" db:"latency_ms"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
