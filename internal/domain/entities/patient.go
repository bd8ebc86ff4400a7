package entities

import (
	"time"
)

// Patient represents a patient row in the structured patient store
type Patient struct {
	ID                    int64     `json:"id" db:"id"`
	FirstName             string    `json:"first_name" db:"first_name"`
	LastName              string    `json:"last_name" db:"last_name"`
	DateOfBirth           time.Time `json:"date_of_birth" db:"date_of_birth"`
	Gender                string    `json:"gender" db:"gender"`
	Allergies             string    `json:"allergies,omitempty" db:"allergies"`
	MedicalHistorySummary string    `json:"medical_history_summary,omitempty" db:"medical_history_summary"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
}

// AgeAt returns the patient's age in whole years at the given time.
func (p *Patient) AgeAt(at time.Time) int {
	age := at.Year() - p.DateOfBirth.Year()
	// Birthday not yet reached this year.
	if at.YearDay() < p.DateOfBirth.YearDay() {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age
}

// MedicationStatus represents the prescription status of a medication
type MedicationStatus string

const (
	MedicationStatusActive       MedicationStatus = "active"
	MedicationStatusDiscontinued MedicationStatus = "discontinued"
)

// Medication represents a prescribed medication
type Medication struct {
	ID        int64            `json:"id" db:"id"`
	PatientID int64            `json:"patient_id" db:"patient_id"`
	Name      string           `json:"name" db:"name"`
	Dosage    string           `json:"dosage" db:"dosage"`
	Frequency string           `json:"frequency" db:"frequency"`
	Status    MedicationStatus `json:"status" db:"status"`
	StartedAt time.Time        `json:"started_at" db:"started_at"`
}

// Condition represents a diagnosed condition in the patient's history
type Condition struct {
	ID          int64     `json:"id" db:"id"`
	PatientID   int64     `json:"patient_id" db:"patient_id"`
	Name        string    `json:"name" db:"name"`
	DiagnosedAt time.Time `json:"diagnosed_at" db:"diagnosed_at"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

// MedicalRecord represents one visit record
type MedicalRecord struct {
	ID          int64     `json:"id" db:"id"`
	PatientID   int64     `json:"patient_id" db:"patient_id"`
	Title       string    `json:"title" db:"title"`
	Diagnosis   string    `json:"diagnosis,omitempty" db:"diagnosis"`
	Summary     string    `json:"summary" db:"summary"`
	DateOfVisit time.Time `json:"date_of_visit" db:"date_of_visit"`
}

// PatientFactSheet is the structured, per-invocation snapshot of a
// patient's relevant clinical attributes. Built once from the patient
// store, owned by a single invocation, never persisted back.
type PatientFactSheet struct {
	PatientID      int64           `json:"patient_id"`
	Age            int             `json:"age"`
	Gender         string          `json:"gender,omitempty"`
	Allergies      string          `json:"allergies,omitempty"`
	Medications    []Medication    `json:"medications"`
	Conditions     []Condition     `json:"conditions"`
	RecentRecords  []MedicalRecord `json:"recent_records,omitempty"`
	HistoryOmitted bool            `json:"history_omitted"`
	BuiltAt        time.Time       `json:"built_at"`
}
