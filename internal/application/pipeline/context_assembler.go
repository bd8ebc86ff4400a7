package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/domain/repositories"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
	"github.com/carequery/decision-support/pkg/config"
)

// ContextAssembler builds the patient fact sheet and the enriched query
// for one invocation. The fact sheet is a snapshot: assembled once from
// the patient store, owned by the invocation, never written back.
type ContextAssembler struct {
	patients repositories.PatientRepository
	recorder providers.TraceRecorder
	cfg      *config.RetrievalConfig
}

// NewContextAssembler creates a new context assembler
func NewContextAssembler(patients repositories.PatientRepository, recorder providers.TraceRecorder, cfg *config.RetrievalConfig) *ContextAssembler {
	return &ContextAssembler{
		patients: patients,
		recorder: recorder,
		cfg:      cfg,
	}
}

// Build loads the patient and assembles the fact sheet plus the enriched
// query. A missing patient surfaces as a NotFound error; nothing else in
// the pipeline runs after that.
func (a *ContextAssembler) Build(ctx context.Context, query *entities.ClinicalQuery) (*entities.PatientFactSheet, string, error) {
	ctx, span := a.recorder.StartSpan(ctx, "assemble_context")
	span.SetAttribute("patient.id", query.PatientID)
	span.SetAttribute("query.include_history", query.IncludeHistory)

	sheet, enriched, err := a.build(ctx, query)
	if err != nil {
		span.End(providers.SpanStatusError, err.Error())
		return nil, "", err
	}

	span.SetAttribute("fact_sheet.medications", len(sheet.Medications))
	span.SetAttribute("fact_sheet.conditions", len(sheet.Conditions))
	span.End(providers.SpanStatusOK, fmt.Sprintf("fact sheet built, age %d", sheet.Age))
	return sheet, enriched, nil
}

func (a *ContextAssembler) build(ctx context.Context, query *entities.ClinicalQuery) (*entities.PatientFactSheet, string, error) {
	logger := observability.LoggerFromContext(ctx)

	patient, err := a.patients.GetByID(ctx, query.PatientID)
	if err != nil {
		return nil, "", err
	}

	medications, err := a.patients.ListActiveMedications(ctx, query.PatientID)
	if err != nil {
		return nil, "", err
	}

	conditions, err := a.patients.ListConditions(ctx, query.PatientID)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	sheet := &entities.PatientFactSheet{
		PatientID:      patient.ID,
		Age:            patient.AgeAt(now),
		Gender:         patient.Gender,
		Allergies:      patient.Allergies,
		Medications:    medications,
		Conditions:     conditions,
		HistoryOmitted: !query.IncludeHistory,
		BuiltAt:        now,
	}

	if query.IncludeHistory {
		records, err := a.patients.ListRecentRecords(ctx, query.PatientID, a.cfg.RecentRecordsN)
		if err != nil {
			// History is supplementary context. Losing it degrades the fact
			// sheet but does not stop the invocation.
			logger.Warn().Err(err).Int64("patient_id", query.PatientID).
				Msg("failed to load recent records, continuing without history")
			sheet.HistoryOmitted = true
		} else {
			sheet.RecentRecords = records
		}
	}

	return sheet, a.enrichQuery(query.Query, sheet), nil
}

// enrichQuery appends the patient's most relevant clinical context to the
// free-text query so retrieval sees it. Order is fixed: age, then active
// conditions, then current medications, then the most recent record title,
// each list capped.
func (a *ContextAssembler) enrichQuery(query string, sheet *entities.PatientFactSheet) string {
	var sb strings.Builder
	sb.WriteString(query)

	if sheet.Age > 0 {
		sb.WriteString(fmt.Sprintf(" | patient age %d", sheet.Age))
	}

	conditions := topConditionNames(sheet.Conditions, a.cfg.TopConditionsK)
	if len(conditions) > 0 {
		sb.WriteString(" | conditions: ")
		sb.WriteString(strings.Join(conditions, ", "))
	}

	medications := topMedicationNames(sheet.Medications, a.cfg.TopMedicationsK)
	if len(medications) > 0 {
		sb.WriteString(" | medications: ")
		sb.WriteString(strings.Join(medications, ", "))
	}

	if len(sheet.RecentRecords) > 0 && sheet.RecentRecords[0].Title != "" {
		sb.WriteString(" | recent: ")
		sb.WriteString(sheet.RecentRecords[0].Title)
	}

	return sb.String()
}

// topConditionNames returns up to k condition names, active ones first.
// The repository already orders by activity then recency.
func topConditionNames(conditions []entities.Condition, k int) []string {
	names := make([]string, 0, k)
	for _, c := range conditions {
		if len(names) == k {
			break
		}
		names = append(names, c.Name)
	}
	return names
}

func topMedicationNames(medications []entities.Medication, k int) []string {
	names := make([]string, 0, k)
	for _, m := range medications {
		if len(names) == k {
			break
		}
		names = append(names, m.Name)
	}
	return names
}
