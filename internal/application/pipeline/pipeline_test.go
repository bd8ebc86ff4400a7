package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
	"github.com/carequery/decision-support/pkg/config"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// --- stubs shared across the package tests ---

type stubPatientRepo struct {
	patient     *entities.Patient
	medications []entities.Medication
	conditions  []entities.Condition
	records     []entities.MedicalRecord
	recordsErr  error
}

func (s *stubPatientRepo) GetByID(_ context.Context, id int64) (*entities.Patient, error) {
	if s.patient == nil || s.patient.ID != id {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	return s.patient, nil
}

func (s *stubPatientRepo) ListActiveMedications(_ context.Context, _ int64) ([]entities.Medication, error) {
	return s.medications, nil
}

func (s *stubPatientRepo) ListConditions(_ context.Context, _ int64) ([]entities.Condition, error) {
	return s.conditions, nil
}

func (s *stubPatientRepo) ListRecentRecords(_ context.Context, _ int64, limit int) ([]entities.MedicalRecord, error) {
	if s.recordsErr != nil {
		return nil, s.recordsErr
	}
	if len(s.records) > limit {
		return s.records[:limit], nil
	}
	return s.records, nil
}

type stubKnowledge struct {
	byNamespace map[string][]entities.EvidenceItem
	errs        map[string]error
}

func (s *stubKnowledge) Search(_ context.Context, namespace, _ string, _ int) ([]entities.EvidenceItem, error) {
	if err, ok := s.errs[namespace]; ok {
		return nil, err
	}
	return s.byNamespace[namespace], nil
}

type stubWebSearch struct {
	items   []entities.EvidenceItem
	err     error
	enabled bool
}

func (s *stubWebSearch) Search(_ context.Context, _ string, _ int) ([]entities.EvidenceItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func (s *stubWebSearch) Enabled() bool { return s.enabled }

type stubCompletion struct {
	text     string
	failures int
	calls    int
}

func (s *stubCompletion) Complete(_ context.Context, _ string, _ int) (*providers.Completion, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("provider overloaded")
	}
	return &providers.Completion{Text: s.text, TokensUsed: 100}, nil
}

func (s *stubCompletion) Name() string  { return "stub" }
func (s *stubCompletion) Model() string { return "stub-model" }

type stubInvocationLog struct {
	rows []*entities.InvocationRecord
}

func (s *stubInvocationLog) Record(_ context.Context, rec *entities.InvocationRecord) error {
	s.rows = append(s.rows, rec)
	return nil
}

func vectorItem(score float64, content, citation string) entities.EvidenceItem {
	return entities.EvidenceItem{
		Source:    entities.SourceVectorIndex,
		Namespace: entities.NamespaceMedicalGuidelines,
		Content:   content,
		Score:     score,
		Citation:  citation,
	}
}

func searchItem(score float64, content, citation string) entities.EvidenceItem {
	return entities.EvidenceItem{
		Source:   entities.SourceLiveSearch,
		Content:  content,
		Score:    score,
		Citation: citation,
	}
}

const wellFormedCompletion = `RECOMMENDATION:
Start low dose and titrate.

ACTIONS:
- Check renal function

CITATIONS:
[1] WHO-2024

EVIDENCE SUFFICIENCY: sufficient`

func retrievalConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{
		BaseTimeout:     time.Second,
		PerNamespaceK:   5,
		WebMaxResults:   3,
		TokenBudget:     3000,
		RecentRecordsN:  10,
		TopConditionsK:  3,
		TopMedicationsK: 5,
	}
}

func newTestService(patients *stubPatientRepo, knowledge *stubKnowledge, web *stubWebSearch, completion *stubCompletion, recorder *observability.MemoryRecorder, audit *stubInvocationLog) *Service {
	if audit == nil {
		audit = &stubInvocationLog{}
	}
	cfg := retrievalConfig()
	synthCfg := &config.SynthesisConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}

	return NewService(
		NewContextAssembler(patients, recorder, cfg),
		NewRetrievalCoordinator(knowledge, web, recorder, cfg),
		NewSynthesisEngine(completion, recorder, synthCfg, 1024),
		recorder,
		audit,
	)
}

func testPatient() *entities.Patient {
	return &entities.Patient{
		ID:          42,
		FirstName:   "Ada",
		LastName:    "Obi",
		DateOfBirth: time.Now().AddDate(-60, -6, 0),
		Gender:      "female",
		Allergies:   "penicillin",
	}
}

// --- end to end ---

func TestServiceExecuteHappyPath(t *testing.T) {
	recorder := observability.NewMemoryRecorder()
	audit := &stubInvocationLog{}

	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines: {vectorItem(0.91, "guideline text", "WHO-2024")},
	}}
	web := &stubWebSearch{enabled: true, items: []entities.EvidenceItem{
		searchItem(0.70, "recent study", "https://pubmed.ncbi.nlm.nih.gov/x"),
	}}
	completion := &stubCompletion{text: wellFormedCompletion}

	svc := newTestService(&stubPatientRepo{patient: testPatient()}, knowledge, web, completion, recorder, audit)

	rec, err := svc.Execute(context.Background(), &entities.ClinicalQuery{
		PatientID: 42,
		Query:     "first line therapy for stage 2 hypertension",
		Urgency:   entities.UrgencyMedium,
	})
	require.NoError(t, err)

	assert.Equal(t, "Start low dose and titrate.", rec.Text)
	assert.Equal(t, entities.ConfidenceHigh, rec.Confidence)
	assert.False(t, rec.ParseAmbiguous)
	require.Len(t, rec.Citations, 1)
	assert.True(t, rec.Citations[0].Verified)

	// Audit row carries the terminal state.
	require.Len(t, audit.rows, 1)
	assert.Equal(t, entities.StateDone, audit.rows[0].FinalState)
	assert.Empty(t, audit.rows[0].ErrorType)

	// Full span tree: invocation root with the three stage children.
	root := recorder.Find("invocation")
	require.NotNil(t, root)
	assert.Equal(t, providers.SpanStatusOK, root.Status)
	for _, name := range []string{"assemble_context", "retrieve", "synthesize"} {
		span := recorder.Find(name)
		require.NotNil(t, span, name)
		assert.Equal(t, root.ID, span.ParentID, "%s must nest under the invocation", name)
	}
}

func TestServiceExecuteFiveSourceMergeOrder(t *testing.T) {
	recorder := observability.NewMemoryRecorder()

	knowledge := &stubKnowledge{byNamespace: map[string][]entities.EvidenceItem{
		entities.NamespaceMedicalGuidelines:  {vectorItem(0.78, "guideline B", "g-b")},
		entities.NamespaceTreatmentProtocols: {vectorItem(0.91, "protocol A", "p-a")},
		entities.NamespaceSafetyGuidelines:   {vectorItem(0.55, "safety C", "s-c")},
	}}
	web := &stubWebSearch{enabled: true, items: []entities.EvidenceItem{
		searchItem(0.70, "web D", "w-d"),
		searchItem(0.60, "web E", "w-e"),
	}}
	completion := &stubCompletion{text: wellFormedCompletion}

	svc := newTestService(&stubPatientRepo{patient: testPatient()}, knowledge, web, completion, recorder, nil)

	rec, err := svc.Execute(context.Background(), &entities.ClinicalQuery{
		PatientID: 42,
		Query:     "beta blocker contraindications",
		Urgency:   entities.UrgencyLow,
	})
	require.NoError(t, err)

	require.Len(t, rec.Evidence.Items, 5)
	scores := make([]float64, 0, 5)
	for _, item := range rec.Evidence.Items {
		scores = append(scores, item.Score)
	}
	assert.Equal(t, []float64{0.91, 0.78, 0.70, 0.60, 0.55}, scores)

	assert.Equal(t, entities.SourceVectorIndex, rec.Evidence.Items[0].Source)
	assert.Equal(t, entities.SourceVectorIndex, rec.Evidence.Items[1].Source)
	assert.Equal(t, entities.SourceLiveSearch, rec.Evidence.Items[2].Source)
	assert.Equal(t, entities.SourceLiveSearch, rec.Evidence.Items[3].Source)
	assert.Equal(t, entities.SourceVectorIndex, rec.Evidence.Items[4].Source)
	assert.Equal(t, 3, rec.Evidence.VectorItemCount)
	assert.Equal(t, 2, rec.Evidence.SearchItemCount)
	assert.False(t, rec.Degraded)
}

func TestServiceExecutePatientNotFound(t *testing.T) {
	recorder := observability.NewMemoryRecorder()
	audit := &stubInvocationLog{}

	svc := newTestService(&stubPatientRepo{}, &stubKnowledge{}, &stubWebSearch{}, &stubCompletion{}, recorder, audit)

	_, err := svc.Execute(context.Background(), &entities.ClinicalQuery{
		PatientID: 7,
		Query:     "anything",
		Urgency:   entities.UrgencyLow,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	// The pipeline stops before retrieval: no downstream spans exist.
	assert.Nil(t, recorder.Find("retrieve"))
	assert.Nil(t, recorder.Find("synthesize"))

	require.Len(t, audit.rows, 1)
	assert.Equal(t, entities.StateFailed, audit.rows[0].FinalState)
	assert.Equal(t, string(apperrors.ErrorTypeNotFound), audit.rows[0].ErrorType)
}

func TestServiceExecuteAllNamespacesDownIsFatal(t *testing.T) {
	recorder := observability.NewMemoryRecorder()

	errs := make(map[string]error)
	for _, ns := range entities.KnowledgeNamespaces() {
		errs[ns] = errors.New("index unreachable")
	}
	knowledge := &stubKnowledge{errs: errs}
	web := &stubWebSearch{enabled: true, items: []entities.EvidenceItem{
		searchItem(0.9, "web only", "w"),
	}}
	completion := &stubCompletion{text: wellFormedCompletion}

	svc := newTestService(&stubPatientRepo{patient: testPatient()}, knowledge, web, completion, recorder, nil)

	_, err := svc.Execute(context.Background(), &entities.ClinicalQuery{
		PatientID: 42,
		Query:     "q",
		Urgency:   entities.UrgencyHigh,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeEvidenceUnavailable))

	// Web results alone never reach synthesis.
	assert.Nil(t, recorder.Find("synthesize"))
	assert.Equal(t, 0, completion.calls)

	root := recorder.Find("invocation")
	require.NotNil(t, root)
	assert.Equal(t, providers.SpanStatusError, root.Status)
}

func TestServiceExecuteInvalidQuery(t *testing.T) {
	recorder := observability.NewMemoryRecorder()
	svc := newTestService(&stubPatientRepo{patient: testPatient()}, &stubKnowledge{}, &stubWebSearch{}, &stubCompletion{}, recorder, nil)

	_, err := svc.Execute(context.Background(), &entities.ClinicalQuery{
		PatientID: 42,
		Query:     "",
		Urgency:   entities.UrgencyLow,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Nil(t, recorder.Find("invocation"), "validation failures never open a trace")
}
