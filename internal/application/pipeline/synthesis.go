package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
	"github.com/carequery/decision-support/pkg/config"
	apperrors "github.com/carequery/decision-support/pkg/errors"
	"github.com/carequery/decision-support/pkg/retry"
)

// SynthesisEngine turns the fact sheet, question and ranked evidence into
// a recommendation through the configured completion provider. Provider
// calls retry with backoff up to the configured attempt cap; exhausting it
// fails the invocation with SYNTHESIS_UNAVAILABLE.
type SynthesisEngine struct {
	completion providers.CompletionProvider
	recorder   providers.TraceRecorder
	cfg        *config.SynthesisConfig
	maxTokens  int
}

// NewSynthesisEngine creates a new synthesis engine
func NewSynthesisEngine(completion providers.CompletionProvider, recorder providers.TraceRecorder, cfg *config.SynthesisConfig, maxTokens int) *SynthesisEngine {
	return &SynthesisEngine{
		completion: completion,
		recorder:   recorder,
		cfg:        cfg,
		maxTokens:  maxTokens,
	}
}

// Synthesize generates the recommendation. The output is parsed leniently:
// a malformed completion yields a low-confidence, ambiguity-flagged result
// rather than an error.
func (e *SynthesisEngine) Synthesize(ctx context.Context, sheet *entities.PatientFactSheet, question string, evidence *entities.RankedEvidenceSet) (*entities.Recommendation, error) {
	ctx, span := e.recorder.StartSpan(ctx, "synthesize")
	span.SetAttribute("llm.provider", e.completion.Name())
	span.SetAttribute("llm.model", e.completion.Model())

	rec, err := e.synthesize(ctx, sheet, question, evidence)
	if err != nil {
		span.End(providers.SpanStatusError, err.Error())
		return nil, err
	}

	span.SetAttribute("recommendation.confidence", string(rec.Confidence))
	span.SetAttribute("recommendation.parse_ambiguous", rec.ParseAmbiguous)
	span.SetAttribute("llm.tokens_used", rec.TokensUsed)
	span.End(providers.SpanStatusOK, fmt.Sprintf("confidence %s, %d citations", rec.Confidence, len(rec.Citations)))
	return rec, nil
}

func (e *SynthesisEngine) synthesize(ctx context.Context, sheet *entities.PatientFactSheet, question string, evidence *entities.RankedEvidenceSet) (*entities.Recommendation, error) {
	logger := observability.LoggerFromContext(ctx)
	prompt := BuildSynthesisPrompt(sheet, question, evidence)

	start := time.Now()
	var completion *providers.Completion

	err := retry.DoWithLog(
		ctx,
		retry.Bounded(e.cfg.MaxAttempts, e.cfg.InitialDelay),
		"completion provider",
		func() error {
			var err error
			completion, err = e.completion.Complete(ctx, prompt, e.maxTokens)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().Int("attempt", attempt).Err(err).Dur("next_delay", nextDelay).
				Msg("completion attempt failed, retrying")
		},
	)
	if err != nil {
		return nil, apperrors.NewSynthesisUnavailableError(
			fmt.Sprintf("completion provider failed after %d attempts", e.cfg.MaxAttempts), err)
	}

	parsed := parseCompletion(completion.Text)
	if parsed.Ambiguous {
		logger.Warn().Msg("completion output did not match the expected format")
	}

	return &entities.Recommendation{
		Text:            parsed.Text,
		Actions:         parsed.Actions,
		Citations:       verifyCitations(parsed.Citations, evidence),
		Confidence:      parsed.Confidence,
		Evidence:        evidence,
		Degraded:        evidence.Degraded,
		DegradedReasons: evidence.DegradedReasons,
		ParseAmbiguous:  parsed.Ambiguous,
		Provider:        e.completion.Name(),
		Model:           e.completion.Model(),
		TokensUsed:      completion.TokensUsed,
		GenerationTime:  time.Since(start),
		GeneratedAt:     time.Now(),
	}, nil
}
