package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/carequery/decision-support/internal/adapters/database"
	"github.com/carequery/decision-support/internal/adapters/knowledge"
	"github.com/carequery/decision-support/internal/adapters/llm"
	"github.com/carequery/decision-support/internal/adapters/websearch"
	"github.com/carequery/decision-support/internal/application/pipeline"
	"github.com/carequery/decision-support/internal/evaluation"
	"github.com/carequery/decision-support/internal/infrastructure/clients/postgres"
	"github.com/carequery/decision-support/internal/infrastructure/clients/qdrant"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
	"github.com/carequery/decision-support/pkg/config"
)

// Runs the golden query set through the full pipeline and prints aggregate
// citation and evidence metrics. Point LLM_PROVIDER=mock at it for a run
// that never calls a paid API.
func main() {
	var goldenPath string
	flag.StringVar(&goldenPath, "golden", "config/golden_queries.json", "path to the golden queries JSON file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger("decision-support-evaluate", cfg.Server.Environment)

	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load golden queries")
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Fatal().Err(err).Msg("invalid golden queries")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pgClient.Close()

	qdrantClient, err := qdrant.NewClient(&cfg.Qdrant)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Qdrant")
	}
	defer qdrantClient.Close()

	completionProvider, err := llm.NewCompletionProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure completion provider")
	}
	embeddingProvider, err := llm.NewEmbeddingProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure embedding provider")
	}

	// The in-memory recorder keeps evaluation runs out of the tracing
	// backend while still exercising the span plumbing.
	recorder := observability.NewMemoryRecorder()

	service := pipeline.NewService(
		pipeline.NewContextAssembler(database.NewPatientAdapter(pgClient), recorder, &cfg.Retrieval),
		pipeline.NewRetrievalCoordinator(
			knowledge.NewQdrantAdapter(qdrantClient, embeddingProvider),
			websearch.NewTavilyAdapter(nil, false),
			recorder,
			&cfg.Retrieval,
		),
		pipeline.NewSynthesisEngine(completionProvider, recorder, &cfg.Synthesis, cfg.LLM.MaxTokens),
		recorder,
		nil,
	)

	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MaxActions:            10,
		RequireCitationAtHigh: true,
	})

	runner := evaluation.NewRunner(service, guardrails)
	summary, err := runner.Run(context.Background(), queries)
	if err != nil {
		log.Fatal().Err(err).Msg("evaluation failed")
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to marshal summary")
	}
	fmt.Println(string(out))

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
