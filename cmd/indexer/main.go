package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"

	"github.com/carequery/decision-support/internal/adapters/llm"
	"github.com/carequery/decision-support/internal/domain/entities"
	"github.com/carequery/decision-support/internal/infrastructure/clients/qdrant"
	"github.com/carequery/decision-support/internal/infrastructure/observability"
	"github.com/carequery/decision-support/pkg/config"
)

const upsertBatchSize = 100

// corpusDocument is one entry in the knowledge corpus file
type corpusDocument struct {
	Namespace string `json:"namespace"`
	Text      string `json:"text"`
	Title     string `json:"title"`
	Source    string `json:"source"`
}

func main() {
	var corpusPath string
	flag.StringVar(&corpusPath, "corpus", "config/knowledge_corpus.json", "path to the knowledge corpus JSON file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger("decision-support-indexer", cfg.Server.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := indexCorpus(ctx, cfg, corpusPath); err != nil {
		log.Fatal().Err(err).Msg("indexing failed")
	}
}

func indexCorpus(ctx context.Context, cfg *config.Config, corpusPath string) error {
	documents, err := loadCorpus(corpusPath)
	if err != nil {
		return err
	}

	qdrantClient, err := qdrant.NewClient(&cfg.Qdrant)
	if err != nil {
		return err
	}
	defer qdrantClient.Close()

	embedder, err := llm.NewEmbeddingProvider(cfg)
	if err != nil {
		return err
	}

	for _, ns := range entities.KnowledgeNamespaces() {
		if err := qdrantClient.EnsureCollection(ctx, ns, cfg.Embedding.Dimension); err != nil {
			return err
		}
	}

	byNamespace := make(map[string][]corpusDocument)
	for _, doc := range documents {
		byNamespace[doc.Namespace] = append(byNamespace[doc.Namespace], doc)
	}

	points := qdrantClient.Points()
	indexed := 0

	for namespace, docs := range byNamespace {
		batch := make([]*qdrantclient.PointStruct, 0, upsertBatchSize)

		for i, doc := range docs {
			vector, err := embedder.Embed(ctx, doc.Text)
			if err != nil {
				log.Warn().Err(err).Str("namespace", namespace).Str("title", doc.Title).
					Msg("failed to embed document, skipping")
				continue
			}

			batch = append(batch, &qdrantclient.PointStruct{
				Id: &qdrantclient.PointId{
					PointIdOptions: &qdrantclient.PointId_Num{Num: uint64(i + 1)},
				},
				Vectors: &qdrantclient.Vectors{
					VectorsOptions: &qdrantclient.Vectors_Vector{
						Vector: &qdrantclient.Vector{Data: vector},
					},
				},
				Payload: map[string]*qdrantclient.Value{
					"text":   {Kind: &qdrantclient.Value_StringValue{StringValue: doc.Text}},
					"title":  {Kind: &qdrantclient.Value_StringValue{StringValue: doc.Title}},
					"source": {Kind: &qdrantclient.Value_StringValue{StringValue: doc.Source}},
				},
			})

			if len(batch) >= upsertBatchSize || i == len(docs)-1 {
				_, err := points.Upsert(ctx, &qdrantclient.UpsertPoints{
					CollectionName: namespace,
					Points:         batch,
				})
				if err != nil {
					return fmt.Errorf("failed to upsert into %s: %w", namespace, err)
				}
				indexed += len(batch)
				batch = batch[:0]
			}
		}

		log.Info().Str("namespace", namespace).Int("documents", len(docs)).Msg("namespace indexed")
	}

	log.Info().Int("points", indexed).Msg("corpus indexing complete")
	return nil
}

func loadCorpus(path string) ([]corpusDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var documents []corpusDocument
	if err := json.Unmarshal(data, &documents); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}

	valid := make(map[string]bool)
	for _, ns := range entities.KnowledgeNamespaces() {
		valid[ns] = true
	}
	for i, doc := range documents {
		if !valid[doc.Namespace] {
			return nil, fmt.Errorf("document %d: unknown namespace %q", i, doc.Namespace)
		}
		if doc.Text == "" {
			return nil, fmt.Errorf("document %d: empty text", i)
		}
	}

	return documents, nil
}
