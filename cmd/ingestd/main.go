// Command ingestd is the worker daemon: it serves the internal job and
// health endpoints, runs the bounded worker pool, and sweeps interrupted
// runs on startup.
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"docingest/internal/artifacts"
	"docingest/internal/config"
	"docingest/internal/embed"
	"docingest/internal/httpapi"
	"docingest/internal/logging"
	"docingest/internal/obs"
	"docingest/internal/persistence/postgres"
	"docingest/internal/pipeline"
	"docingest/internal/tokenizer"
	"docingest/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := logging.Log
	ctx := context.Background()

	pool, err := postgres.OpenPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("open database pool")
	}
	defer pool.Close()

	writer, err := postgres.New(ctx, pool, cfg.EmbeddingDim)
	if err != nil {
		logger.WithError(err).Fatal("bootstrap schema")
	}
	runs := postgres.NewRunStore(pool)

	swept, err := runs.SweepStale(ctx, cfg.StartupSweepThreshold())
	if err != nil {
		logger.WithError(err).Warn("startup sweep failed")
	} else if swept > 0 {
		logger.WithField("count", swept).Info("swept interrupted runs")
	}

	tok, err := tokenizer.Shared()
	if err != nil {
		logger.WithError(err).Fatal("load tokenizer")
	}

	var embedder embed.Embedder
	if cfg.EmbeddingURL != "" {
		embedder = embed.NewHTTP(cfg.EmbeddingURL, cfg.EmbeddingModelID, cfg.EmbeddingDim, cfg.EmbeddingBatchSize)
	} else {
		embedder = embed.NewDeterministic(cfg.EmbeddingDim)
	}

	artifactStore, err := artifacts.New(ctx, cfg.ArtifactBasePath)
	if err != nil {
		logger.WithError(err).Fatal("open artifact store")
	}

	orchestrator := &pipeline.Orchestrator{
		Embedder:  embedder,
		Writer:    writer,
		Runs:      runs,
		Artifacts: artifactStore,
		Tokenizer: tok,
		ChunkCfg:  cfg.ChunkConfig(),
		Metrics:   obs.NewOtel("docingest"),
		Logger:    logger,
	}

	runtime := worker.New(orchestrator, runs, cfg.WorkerMaxConcurrent, cfg.StaleThreshold(), logger)
	server := httpapi.NewServer(runtime, cfg.InternalAuthToken)

	addr := fmt.Sprintf(":%d", cfg.WorkerPort)
	logger.WithField("addr", addr).Info("ingestd listening")
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	if err := httpServer.ListenAndServe(); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
