package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carequery/decision-support/internal/adapters/cache"
	"github.com/carequery/decision-support/internal/adapters/database"
	"github.com/carequery/decision-support/internal/adapters/knowledge"
	"github.com/carequery/decision-support/internal/adapters/llm"
	"github.com/carequery/decision-support/internal/adapters/websearch"
	"github.com/carequery/decision-support/internal/api/handlers"
	"github.com/carequery/decision-support/internal/api/routes"
	"github.com/carequery/decision-support/internal/application/pipeline"
	"github.com/carequery/decision-support/internal/domain/providers"
	"github.com/carequery/decision-support/internal/domain/repositories"
	"github.com/carequery/decision-support/internal/infrastructure/clients/postgres"
	"github.com/carequery/decision-support/internal/infrastructure/clients/qdrant"
	redisclient "github.com/carequery/decision-support/internal/infrastructure/clients/redis"
	"github.com/carequery/decision-support/internal/infrastructure/clients/tavily"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
	"github.com/carequery/decision-support/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry, continuing without it")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
		}
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	qdrantClient, err := qdrant.NewClient(&cfg.Qdrant)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Qdrant client")
	}
	defer qdrantClient.Close()

	// Cache is optional; the pipeline works without it.
	var cacheProvider providers.CacheProvider
	redisClient, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize Redis client, running without cache")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	completionProvider, err := llm.NewCompletionProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure completion provider")
	}
	embeddingProvider, err := llm.NewEmbeddingProvider(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure embedding provider")
	}

	// The live search gateway is optional; running without it only
	// degrades retrieval.
	var webSearch providers.WebSearchProvider
	if cfg.WebSearch.Enabled && cfg.WebSearch.APIKey != "" {
		tavilyClient, err := tavily.NewClient(&cfg.WebSearch)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize Tavily client, web search disabled")
			webSearch = websearch.NewTavilyAdapter(nil, false)
		} else {
			webSearch = websearch.NewTavilyAdapter(tavilyClient, true)
		}
	} else {
		log.Warn().Msg("web search gateway disabled by configuration")
		webSearch = websearch.NewTavilyAdapter(nil, false)
	}

	recorder := observability.NewOTelRecorder()

	var patientRepo repositories.PatientRepository = database.NewPatientAdapter(pgClient)
	if cacheProvider != nil {
		patientRepo = database.NewCachedPatientAdapter(patientRepo, cacheProvider, cfg.Redis.FactSheetTTL)
	}
	invocationLog := database.NewInvocationLogAdapter(pgClient)
	knowledgeIndex := knowledge.NewQdrantAdapter(qdrantClient, embeddingProvider)

	service := pipeline.NewService(
		pipeline.NewContextAssembler(patientRepo, recorder, &cfg.Retrieval),
		pipeline.NewRetrievalCoordinator(knowledgeIndex, webSearch, recorder, &cfg.Retrieval),
		pipeline.NewSynthesisEngine(completionProvider, recorder, &cfg.Synthesis, cfg.LLM.MaxTokens),
		recorder,
		invocationLog,
	)

	decisionHandler := handlers.NewDecisionHandler(service, cfg.Retrieval.BaseTimeout)
	router := routes.NewRouter(decisionHandler)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
}
