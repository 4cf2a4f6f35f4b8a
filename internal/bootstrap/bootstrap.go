package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/knowledge-base/internal/config"
	"github.com/kirillkom/knowledge-base/internal/core/usecase"
	"github.com/kirillkom/knowledge-base/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/knowledge-base/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-base/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-base/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-base/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config

	Pipeline *usecase.AnswerPipeline
	Traces   *postgres.TraceRepository
	Queue    *nats.Queue

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	traces := postgres.NewTraceRepository(db)
	if err := traces.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init audit queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	searcher := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)

	retriever := usecase.NewHybridRetriever(searcher, usecase.RetrievalConfig{
		RRFK:              cfg.FusionRRFK,
		DefaultMatchCount: cfg.DefaultMatchCount,
		MaxMatchCount:     cfg.MaxMatchCount,
		OverfetchMultiple: cfg.OverfetchMultiple,
	}, logger)
	verifier := usecase.NewGroundingVerifier(embedder, cfg.GroundingThreshold)
	pipeline := usecase.NewAnswerPipeline(retriever, verifier, generator, traces, queue, usecase.PipelineConfig{
		UngroundedBanner: cfg.UngroundedBanner,
	}, logger)

	return &App{
		Config:   cfg,
		Pipeline: pipeline,
		Traces:   traces,
		Queue:    queue,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
