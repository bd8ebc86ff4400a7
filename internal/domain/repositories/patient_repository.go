package repositories

import (
	"context"

	"github.com/carequery/decision-support/internal/domain/entities"
)

// PatientRepository defines the read-only interface to the structured
// patient store. Exact-key, strongly consistent lookups.
type PatientRepository interface {
	// GetByID retrieves a patient by primary key
	GetByID(ctx context.Context, id int64) (*entities.Patient, error)

	// ListActiveMedications returns the patient's active medications
	ListActiveMedications(ctx context.Context, patientID int64) ([]entities.Medication, error)

	// ListConditions returns the patient's condition history, most recent first
	ListConditions(ctx context.Context, patientID int64) ([]entities.Condition, error)

	// ListRecentRecords returns up to limit visit records, most recent first
	ListRecentRecords(ctx context.Context, patientID int64, limit int) ([]entities.MedicalRecord, error)
}

// InvocationLogRepository records completed invocations for operators.
// Append-only; rows are never updated.
type InvocationLogRepository interface {
	Record(ctx context.Context, rec *entities.InvocationRecord) error
}
