package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/repositories"
	"github.com/carequery/decision-support/internal/infrastructure/clients/postgres"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// PatientAdapter implements PatientRepository on top of the structured
// patient store.
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a patient by ID. A missing row maps to a NotFound
// error so callers can distinguish it from infrastructure failures.
func (a *PatientAdapter) GetByID(ctx context.Context, id int64) (*entities.Patient, error) {
	query, args, err := a.db.Select(
		"id", "first_name", "last_name", "date_of_birth", "gender",
		"allergies", "medical_history_summary", "created_at", "updated_at",
	).From("patients").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	patient := &entities.Patient{}
	var allergies, historySummary sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&patient.ID,
		&patient.FirstName,
		&patient.LastName,
		&patient.DateOfBirth,
		&patient.Gender,
		&allergies,
		&historySummary,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("patient %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}

	patient.Allergies = allergies.String
	patient.MedicalHistorySummary = historySummary.String

	return patient, nil
}

// ListActiveMedications retrieves the patient's currently active
// prescriptions, most recent first.
func (a *PatientAdapter) ListActiveMedications(ctx context.Context, patientID int64) ([]entities.Medication, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "name", "dosage", "frequency", "status", "started_at",
	).From("medications").
		Where(goqu.Ex{
			"patient_id": patientID,
			"status":     string(entities.MedicationStatusActive),
		}).
		Order(goqu.I("started_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list medications", err)
	}
	defer rows.Close()

	var medications []entities.Medication
	for rows.Next() {
		var m entities.Medication
		err := rows.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency, &m.Status, &m.StartedAt)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan medication", err)
		}
		medications = append(medications, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate medications", err)
	}

	return medications, nil
}

// ListConditions retrieves the patient's diagnosed conditions, active
// ones first, then by diagnosis date descending.
func (a *PatientAdapter) ListConditions(ctx context.Context, patientID int64) ([]entities.Condition, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "name", "diagnosed_at", "is_active",
	).From("conditions").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("is_active").Desc(), goqu.I("diagnosed_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list conditions", err)
	}
	defer rows.Close()

	var conditions []entities.Condition
	for rows.Next() {
		var c entities.Condition
		err := rows.Scan(&c.ID, &c.PatientID, &c.Name, &c.DiagnosedAt, &c.IsActive)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan condition", err)
		}
		conditions = append(conditions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate conditions", err)
	}

	return conditions, nil
}

// ListRecentRecords retrieves the patient's most recent visit records,
// newest first, capped at limit.
func (a *PatientAdapter) ListRecentRecords(ctx context.Context, patientID int64, limit int) ([]entities.MedicalRecord, error) {
	if limit <= 0 {
		return []entities.MedicalRecord{}, nil
	}

	query, args, err := a.db.Select(
		"id", "patient_id", "title", "diagnosis", "summary", "date_of_visit",
	).From("medical_records").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("date_of_visit").Desc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list medical records", err)
	}
	defer rows.Close()

	var records []entities.MedicalRecord
	for rows.Next() {
		var r entities.MedicalRecord
		var diagnosis sql.NullString
		err := rows.Scan(&r.ID, &r.PatientID, &r.Title, &diagnosis, &r.Summary, &r.DateOfVisit)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan medical record", err)
		}
		r.Diagnosis = diagnosis.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate medical records", err)
	}

	return records, nil
}
