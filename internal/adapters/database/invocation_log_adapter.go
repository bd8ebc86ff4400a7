package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/repositories"
	"github.com/carequery/decision-support/internal/infrastructure/clients/postgres"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// InvocationLogAdapter persists the per-invocation audit trail.
type InvocationLogAdapter struct {
	db *sqlx.DB
}

// NewInvocationLogAdapter creates a new invocation log adapter
func NewInvocationLogAdapter(client *postgres.Client) repositories.InvocationLogRepository {
	return &InvocationLogAdapter{
		db: sqlx.NewDb(client.DB(), "postgres"),
	}
}

const insertInvocationQuery = `
	INSERT INTO invocation_log (
		id, patient_id, query, urgency, final_state,
		error_type, degraded, latency_ms, created_at
	) VALUES (
		:id, :patient_id, :query, :urgency, :final_state,
		:error_type, :degraded, :latency_ms, :created_at
	)`

// Record appends one audit row. The log is append-only; rows are never
// updated after the fact.
func (a *InvocationLogAdapter) Record(ctx context.Context, rec *entities.InvocationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	_, err := a.db.NamedExecContext(ctx, insertInvocationQuery, rec)
	if err != nil {
		return apperrors.NewInternalError("failed to record invocation", err)
	}
	return nil
}
