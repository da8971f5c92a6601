// Package config loads the ingestion engine's configuration from
// environment variables, optionally seeded from a .env file. Options are
// read explicitly rather than bound through struct tags or reflection.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"docingest/internal/chunk"
)

// Config holds every recognized option of the external-interfaces
// configuration table.
type Config struct {
	DatabaseURL string

	EmbeddingModelID   string
	EmbeddingDim       int
	EmbeddingBatchSize int
	EmbeddingURL       string

	ChunkTarget  int
	ChunkMin     int
	ChunkMax     int
	ChunkHardCap int

	ArtifactBasePath string

	WorkerMaxConcurrent int
	WorkerPort          int
	InternalAuthToken   string
	StaleRunningMinutes int
	StartupSweepMinutes int

	LogLevel string
}

// Load reads configuration from the environment (optionally a .env file),
// applying the documented defaults for anything unset.
func Load() Config {
	_ = godotenv.Overload()

	cfg := Config{}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.EmbeddingModelID = firstNonEmpty(strings.TrimSpace(os.Getenv("EMBEDDING_MODEL_ID")), "BAAI/bge-base-en-v1.5")
	cfg.EmbeddingDim = envInt("EMBEDDING_DIM", 768)
	cfg.EmbeddingBatchSize = envInt("EMBEDDING_BATCH_SIZE", 256)
	cfg.EmbeddingURL = strings.TrimSpace(os.Getenv("EMBEDDING_URL"))

	cfg.ChunkTarget = envInt("CHUNK_TARGET", 450)
	cfg.ChunkMin = envInt("CHUNK_MIN", 350)
	cfg.ChunkMax = envInt("CHUNK_MAX", 500)
	cfg.ChunkHardCap = envInt("CHUNK_HARD_CAP", 800)

	cfg.ArtifactBasePath = firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_BASE_PATH")), "/data/artifacts")

	cfg.WorkerMaxConcurrent = envInt("WORKER_MAX_CONCURRENT", 3)
	cfg.WorkerPort = envInt("WORKER_PORT", 8002)
	cfg.InternalAuthToken = strings.TrimSpace(os.Getenv("INTERNAL_AUTH_TOKEN"))
	cfg.StaleRunningMinutes = envInt("STALE_RUNNING_MINUTES", 15)
	cfg.StartupSweepMinutes = envInt("STARTUP_SWEEP_MINUTES", 10)

	cfg.LogLevel = firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "info")

	return cfg
}

// StaleThreshold is the heartbeat-staleness threshold used by the worker's
// claim logic.
func (c Config) StaleThreshold() time.Duration {
	return time.Duration(c.StaleRunningMinutes) * time.Minute
}

// StartupSweepThreshold is the crash-recovery sweep threshold applied once
// at worker startup.
func (c Config) StartupSweepThreshold() time.Duration {
	return time.Duration(c.StartupSweepMinutes) * time.Minute
}

// ChunkConfig derives the chunker's token-budget configuration.
func (c Config) ChunkConfig() chunk.Config {
	return chunk.Config{Target: c.ChunkTarget, Min: c.ChunkMin, Max: c.ChunkMax, HardCap: c.ChunkHardCap}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
