package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/domain/repositories"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
	apperrors "github.com/carequery/decision-support/pkg/errors"
)

// Service runs the full decision support pipeline for one clinical query.
// The pipeline is a linear state machine; every invocation walks it in
// order and stops at the first fatal error.
type Service struct {
	assembler   *ContextAssembler
	retriever   *RetrievalCoordinator
	synthesizer *SynthesisEngine
	recorder    providers.TraceRecorder
	invocations repositories.InvocationLogRepository
}

// NewService creates a new pipeline service. The invocation log repository
// may be nil; auditing is then skipped.
func NewService(
	assembler *ContextAssembler,
	retriever *RetrievalCoordinator,
	synthesizer *SynthesisEngine,
	recorder providers.TraceRecorder,
	invocations repositories.InvocationLogRepository,
) *Service {
	return &Service{
		assembler:   assembler,
		retriever:   retriever,
		synthesizer: synthesizer,
		recorder:    recorder,
		invocations: invocations,
	}
}

// Execute runs one invocation end to end and records its audit row.
func (s *Service) Execute(ctx context.Context, query *entities.ClinicalQuery) (*entities.Recommendation, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	invocationID := uuid.New().String()

	ctx, span := s.recorder.StartSpan(ctx, "invocation")
	span.SetAttribute("invocation.id", invocationID)
	span.SetAttribute("patient.id", query.PatientID)
	span.SetAttribute("query.urgency", string(query.Urgency))

	state := entities.StateReceived
	rec, err := s.execute(ctx, query, &state)

	if err != nil {
		state = entities.StateFailed
		span.SetAttribute("invocation.state", string(state))
		span.End(providers.SpanStatusError, err.Error())
	} else {
		state = entities.StateDone
		span.SetAttribute("invocation.state", string(state))
		span.End(providers.SpanStatusOK, fmt.Sprintf("confidence %s", rec.Confidence))
	}

	s.audit(ctx, invocationID, query, state, rec, err, time.Since(start))
	return rec, err
}

func (s *Service) execute(ctx context.Context, query *entities.ClinicalQuery, state *entities.InvocationState) (*entities.Recommendation, error) {
	sheet, enriched, err := s.assembler.Build(ctx, query)
	if err != nil {
		return nil, err
	}
	*state = entities.StateContextBuilt

	*state = entities.StateRetrieving
	evidence, err := s.retriever.Retrieve(ctx, enriched, query.Urgency)
	if err != nil {
		return nil, err
	}
	*state = entities.StateRetrieved

	*state = entities.StateSynthesizing
	return s.synthesizer.Synthesize(ctx, sheet, query.Query, evidence)
}

// audit writes the append-only invocation record. A failed write never
// fails the invocation itself.
func (s *Service) audit(ctx context.Context, id string, query *entities.ClinicalQuery, state entities.InvocationState, rec *entities.Recommendation, execErr error, elapsed time.Duration) {
	if s.invocations == nil {
		return
	}

	row := &entities.InvocationRecord{
		ID:         id,
		PatientID:  query.PatientID,
		Query:      query.Query,
		Urgency:    query.Urgency,
		FinalState: state,
		LatencyMs:  elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if execErr != nil {
		row.ErrorType = string(apperrors.TypeOf(execErr))
	}
	if rec != nil {
		row.Degraded = rec.Degraded
	}

	if err := s.invocations.Record(ctx, row); err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).
			Str("invocation_id", id).Msg("failed to record invocation audit row")
	}
}
