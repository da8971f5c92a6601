package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"docingest/internal/chunk"
	"docingest/internal/metadata"
	"docingest/internal/persistence"
)

// Writer is the Postgres-backed implementation of persistence.Writer. Every
// path that activates a version deactivates the prior active version before
// inserting or flipping the new one, so readers outside the transaction
// never observe two active versions for one document.
type Writer struct {
	pool *pgxpool.Pool
}

// New bootstraps the schema and returns a ready Writer.
func New(ctx context.Context, pool *pgxpool.Pool, embeddingDim int) (*Writer, error) {
	if err := bootstrap(ctx, pool, embeddingDim); err != nil {
		return nil, err
	}
	return &Writer{pool: pool}, nil
}

func (w *Writer) Write(ctx context.Context, in persistence.WriteInput) (persistence.WriteResult, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return persistence.WriteResult{}, fmt.Errorf("persist: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	docID, existingHash, hasActive, err := lookupDocument(ctx, tx, in.Tenant, in.SourceURI)
	if err != nil {
		return persistence.WriteResult{}, fmt.Errorf("persist: dedup lookup: %w", err)
	}

	// Step 1: dedup check. Same content hash with an active version is a
	// committed no-op.
	if docID != "" && existingHash == in.ContentHash && hasActive {
		if err := tx.Commit(ctx); err != nil {
			return persistence.WriteResult{}, fmt.Errorf("persist: commit no-op: %w", err)
		}
		return persistence.WriteResult{DocID: docID, Skipped: true}, nil
	}

	// Step 2: document upsert.
	if docID == "" {
		docID = uuid.NewString()
		_, err = tx.Exec(ctx, `
			INSERT INTO documents(doc_id, tenant, source_type, source_uri, title, content_hash)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			docID, in.Tenant, string(in.SourceType), in.SourceURI, in.Title, in.ContentHash)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE documents SET content_hash=$1, title=$2 WHERE tenant=$3 AND doc_id=$4`,
			in.ContentHash, in.Title, in.Tenant, docID)
	}
	if err != nil {
		return persistence.WriteResult{}, fmt.Errorf("persist: document upsert: %w", err)
	}

	// Step 3: deactivate prior active version(s) before the new version row
	// is inserted.
	if in.Activate {
		if _, err := tx.Exec(ctx, `
			UPDATE document_versions SET active=false WHERE tenant=$1 AND doc_id=$2 AND active=true`,
			in.Tenant, docID); err != nil {
			return persistence.WriteResult{}, fmt.Errorf("persist: deactivate prior version: %w", err)
		}
	}

	// Step 4: insert new version.
	versionID := uuid.NewString()
	label := in.VersionLabel
	if label == "" {
		label = "v" + time.Now().UTC().Format("20060102150405")
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO document_versions(version_id, tenant, doc_id, version_label, active, content_hash, artifact_uri)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))`,
		versionID, in.Tenant, docID, label, in.Activate, in.ContentHash, in.ArtifactURI); err != nil {
		return persistence.WriteResult{}, fmt.Errorf("persist: insert version: %w", err)
	}

	// Step 5: insert chunks, embeddings, lexical rows.
	if len(in.Chunks) != len(in.Embeddings) {
		return persistence.WriteResult{}, fmt.Errorf("persist: chunk/embedding count mismatch: %d vs %d", len(in.Chunks), len(in.Embeddings))
	}
	if len(in.ChunkMetadata) != len(in.Chunks) {
		return persistence.WriteResult{}, fmt.Errorf("persist: chunk/metadata count mismatch: %d vs %d", len(in.Chunks), len(in.ChunkMetadata))
	}
	for i, c := range in.Chunks {
		if err := insertChunk(ctx, tx, in.Tenant, versionID, c, in.ChunkMetadata[i], in.Embeddings[i], in.EmbeddingModelID); err != nil {
			return persistence.WriteResult{}, fmt.Errorf("persist: insert chunk %d: %w", c.Ordinal, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return persistence.WriteResult{}, fmt.Errorf("persist: commit: %w", err)
	}
	return persistence.WriteResult{DocID: docID, VersionID: versionID, VersionLabel: label, NumChunks: len(in.Chunks)}, nil
}

func insertChunk(ctx context.Context, tx pgx.Tx, tenant, versionID string, c chunk.Chunk, meta metadata.Metadata, vec []float32, modelID string) error {
	chunkID := uuid.NewString()
	headingPath, err := json.Marshal(c.HeadingPath)
	if err != nil {
		return err
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO chunks(chunk_id, tenant, version_id, ordinal, heading_path, kind, text, token_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		chunkID, tenant, versionID, c.Ordinal, headingPath, string(c.Kind), c.Text, c.TokenCount, metaJSON); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO chunk_embeddings(chunk_id, tenant, embedding_model, embedding)
		VALUES ($1, $2, $3, $4::vector)`,
		chunkID, tenant, modelID, toVectorLiteral(vec)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO chunk_fts(chunk_id, tenant, tsv)
		VALUES ($1, $2, to_tsvector('english', $3))`,
		chunkID, tenant, c.Text); err != nil {
		return err
	}
	return nil
}

func lookupDocument(ctx context.Context, tx pgx.Tx, tenant, sourceURI string) (docID, contentHash string, hasActive bool, err error) {
	row := tx.QueryRow(ctx, `
		SELECT doc_id, content_hash FROM documents WHERE tenant=$1 AND source_uri=$2`,
		tenant, sourceURI)
	if err := row.Scan(&docID, &contentHash); err != nil {
		if err == pgx.ErrNoRows {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	var count int
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM document_versions WHERE tenant=$1 AND doc_id=$2 AND active=true`,
		tenant, docID).Scan(&count); err != nil {
		return "", "", false, err
	}
	return docID, contentHash, count > 0, nil
}

func (w *Writer) PatchArtifactURI(ctx context.Context, tenant, versionID, artifactURI string) error {
	_, err := w.pool.Exec(ctx, `
		UPDATE document_versions SET artifact_uri=$1 WHERE tenant=$2 AND version_id=$3`,
		artifactURI, tenant, versionID)
	return err
}

// Activate makes versionID the sole active version of its owning document,
// applying the same deactivate-before-activate ordering as Write.
func (w *Writer) Activate(ctx context.Context, tenant, versionID string) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("persist: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var docID string
	if err := tx.QueryRow(ctx, `
		SELECT doc_id FROM document_versions WHERE tenant=$1 AND version_id=$2`,
		tenant, versionID).Scan(&docID); err != nil {
		return fmt.Errorf("persist: lookup version: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE document_versions SET active=false WHERE tenant=$1 AND doc_id=$2 AND active=true`,
		tenant, docID); err != nil {
		return fmt.Errorf("persist: deactivate prior version: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE document_versions SET active=true WHERE tenant=$1 AND version_id=$2`,
		tenant, versionID); err != nil {
		return fmt.Errorf("persist: activate version: %w", err)
	}
	return tx.Commit(ctx)
}
