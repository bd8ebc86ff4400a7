package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/carequery/decision-support/internal/domain/entities"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// DecisionService defines the pipeline operations used by the handler.
type DecisionService interface {
	Execute(ctx context.Context, query *entities.ClinicalQuery) (*entities.Recommendation, error)
}

// DecisionHandler handles clinical decision support requests.
type DecisionHandler struct {
	service     DecisionService
	baseTimeout time.Duration
}

// NewDecisionHandler creates a new decision handler. baseTimeout is the
// request deadline at low urgency; higher tiers shrink it.
func NewDecisionHandler(service DecisionService, baseTimeout time.Duration) *DecisionHandler {
	return &DecisionHandler{
		service:     service,
		baseTimeout: baseTimeout,
	}
}

type decisionRequest struct {
	PatientID      int64  `json:"patient_id"`
	Query          string `json:"query"`
	IncludeHistory bool   `json:"include_history"`
	Urgency        string `json:"urgency"`
}

// Decide handles POST /api/decisions
func (h *DecisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var payload decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if payload.Urgency == "" {
		payload.Urgency = string(entities.UrgencyLow)
	}

	query := &entities.ClinicalQuery{
		PatientID:      payload.PatientID,
		Query:          payload.Query,
		IncludeHistory: payload.IncludeHistory,
		Urgency:        entities.Urgency(payload.Urgency),
	}
	if err := query.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The whole invocation shares one urgency-scaled deadline.
	timeout := time.Duration(float64(h.baseTimeout) * query.Urgency.TimeoutFactor())
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	rec, err := h.service.Execute(ctx, query)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

// statusForError maps the pipeline error taxonomy to HTTP status codes
func statusForError(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeEvidenceUnavailable, apperrors.ErrorTypeSynthesisUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
