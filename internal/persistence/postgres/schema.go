package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// bootstrap creates every table this package needs with CREATE TABLE IF NOT
// EXISTS. Migrations beyond this remain an externally managed concern.
func bootstrap(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	_, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return fmt.Errorf("postgres: enable vector extension: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			tenant TEXT NOT NULL,
			source_type TEXT NOT NULL,
			source_uri TEXT NOT NULL,
			title TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			UNIQUE(tenant, source_uri)
		)`,
		`CREATE TABLE IF NOT EXISTS document_versions (
			version_id TEXT PRIMARY KEY,
			tenant TEXT NOT NULL,
			doc_id TEXT NOT NULL REFERENCES documents(doc_id),
			version_label TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT false,
			content_hash TEXT NOT NULL,
			artifact_uri TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_document_versions_doc ON document_versions(tenant, doc_id, active)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			chunk_id TEXT PRIMARY KEY,
			tenant TEXT NOT NULL,
			version_id TEXT NOT NULL REFERENCES document_versions(version_id),
			ordinal INT NOT NULL,
			heading_path JSONB NOT NULL DEFAULT '[]'::jsonb,
			kind TEXT NOT NULL,
			text TEXT NOT NULL,
			token_count INT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_version ON chunks(tenant, version_id, ordinal)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_embeddings (
			chunk_id TEXT PRIMARY KEY REFERENCES chunks(chunk_id),
			tenant TEXT NOT NULL,
			embedding_model TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, dimensions),
		`CREATE TABLE IF NOT EXISTS chunk_fts (
			chunk_id TEXT PRIMARY KEY REFERENCES chunks(chunk_id),
			tenant TEXT NOT NULL,
			tsv TSVECTOR NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_fts_tsv ON chunk_fts USING GIN(tsv)`,
		`CREATE TABLE IF NOT EXISTS ingestion_runs (
			run_id TEXT PRIMARY KEY,
			tenant TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ,
			config JSONB NOT NULL DEFAULT '{}'::jsonb,
			stats JSONB,
			error TEXT
		)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: bootstrap schema: %w", err)
		}
	}
	return nil
}
