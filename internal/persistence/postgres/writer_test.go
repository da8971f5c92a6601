package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"

	"docingest/internal/chunk"
	"docingest/internal/metadata"
	"docingest/internal/persistence"
)

// requirePool skips the test when DATABASE_URL is unset or cannot be parsed
// into a pool config, matching this repo's existing pattern for
// environment-gated integration tests. An unreachable database or a missing
// pgvector extension fails the schema bootstrap and the test.
func requirePool(t *testing.T) *Writer {
	t.Helper()
	_ = godotenv.Load("../../../.env")
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := OpenPool(ctx, dsn)
	if err != nil {
		t.Skipf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	w, err := New(ctx, pool, 8)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return w
}

func oneChunk(text string) ([]chunk.Chunk, []metadata.Metadata, [][]float32) {
	c := chunk.Chunk{Ordinal: 0, Kind: chunk.Text, Text: text, TokenCount: len(text) / 4}
	m := metadata.Generate(c.Text, "")
	return []chunk.Chunk{c}, []metadata.Metadata{m}, [][]float32{{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}}
}

func TestWriter_FirstWriteCreatesDocAndActiveVersion(t *testing.T) {
	w := requirePool(t)
	ctx := context.Background()
	chunks, metas, vecs := oneChunk("hello from the first version of this document")

	res, err := w.Write(ctx, persistence.WriteInput{
		Tenant:           "tenant-writer-1",
		SourceType:       persistence.SourceHypertext,
		SourceURI:        "file:///tenant-writer-1/a.html",
		Title:            "A",
		ContentHash:      "hash-v1",
		Chunks:           chunks,
		ChunkMetadata:    metas,
		Embeddings:       vecs,
		EmbeddingModelID: "test-model",
		Activate:         true,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if res.Skipped {
		t.Fatalf("first write for a new source must not be skipped")
	}
	if res.DocID == "" || res.VersionID == "" {
		t.Fatalf("expected doc and version ids, got %+v", res)
	}
}

func TestWriter_IdenticalContentHashIsSkipped(t *testing.T) {
	w := requirePool(t)
	ctx := context.Background()
	chunks, metas, vecs := oneChunk("stable content that will not change between runs")

	in := persistence.WriteInput{
		Tenant:           "tenant-writer-2",
		SourceType:       persistence.SourceHypertext,
		SourceURI:        "file:///tenant-writer-2/a.html",
		Title:            "A",
		ContentHash:      "same-hash",
		Chunks:           chunks,
		ChunkMetadata:    metas,
		Embeddings:       vecs,
		EmbeddingModelID: "test-model",
		Activate:         true,
	}
	first, err := w.Write(ctx, in)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := w.Write(ctx, in)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if !second.Skipped {
		t.Fatalf("re-ingesting identical content hash should be a no-op")
	}
	if second.DocID != first.DocID {
		t.Fatalf("skipped write should report the existing doc id")
	}
}

func TestWriter_NewVersionDeactivatesPriorActiveVersion(t *testing.T) {
	w := requirePool(t)
	ctx := context.Background()
	chunksV1, metasV1, vecsV1 := oneChunk("version one content")
	chunksV2, metasV2, vecsV2 := oneChunk("version two content, materially different")

	base := persistence.WriteInput{
		Tenant:           "tenant-writer-3",
		SourceType:       persistence.SourceHypertext,
		SourceURI:        "file:///tenant-writer-3/a.html",
		Title:            "A",
		EmbeddingModelID: "test-model",
		Activate:         true,
	}

	v1 := base
	v1.ContentHash = "hash-v1"
	v1.Chunks, v1.ChunkMetadata, v1.Embeddings = chunksV1, metasV1, vecsV1
	res1, err := w.Write(ctx, v1)
	if err != nil {
		t.Fatalf("write v1: %v", err)
	}

	v2 := base
	v2.ContentHash = "hash-v2"
	v2.Chunks, v2.ChunkMetadata, v2.Embeddings = chunksV2, metasV2, vecsV2
	res2, err := w.Write(ctx, v2)
	if err != nil {
		t.Fatalf("write v2: %v", err)
	}
	if res2.DocID != res1.DocID {
		t.Fatalf("second version must attach to the same document")
	}

	var activeCount int
	row := w.pool.QueryRow(ctx, `SELECT count(*) FROM document_versions WHERE tenant=$1 AND doc_id=$2 AND active=true`,
		"tenant-writer-3", res1.DocID)
	if err := row.Scan(&activeCount); err != nil {
		t.Fatalf("count active versions: %v", err)
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active version after the second write, got %d", activeCount)
	}
}

func TestWriter_TenantsWithSameSourceURIAreIsolated(t *testing.T) {
	w := requirePool(t)
	ctx := context.Background()
	chunksA, metasA, vecsA := oneChunk("tenant a content")
	chunksB, metasB, vecsB := oneChunk("tenant b content, unrelated")

	resA, err := w.Write(ctx, persistence.WriteInput{
		Tenant: "tenant-writer-4a", SourceType: persistence.SourceHypertext, SourceURI: "file:///shared/path.html",
		Title: "Shared", ContentHash: "hash-a", Chunks: chunksA, ChunkMetadata: metasA, Embeddings: vecsA,
		EmbeddingModelID: "test-model", Activate: true,
	})
	if err != nil {
		t.Fatalf("write tenant a: %v", err)
	}
	resB, err := w.Write(ctx, persistence.WriteInput{
		Tenant: "tenant-writer-4b", SourceType: persistence.SourceHypertext, SourceURI: "file:///shared/path.html",
		Title: "Shared", ContentHash: "hash-b", Chunks: chunksB, ChunkMetadata: metasB, Embeddings: vecsB,
		EmbeddingModelID: "test-model", Activate: true,
	})
	if err != nil {
		t.Fatalf("write tenant b: %v", err)
	}
	if resA.DocID == resB.DocID {
		t.Fatalf("identical source_uri across different tenants must not collapse into one document")
	}
}

func TestWriter_ChunkEmbeddingCountMismatchIsRejected(t *testing.T) {
	w := requirePool(t)
	ctx := context.Background()
	chunks, metas, _ := oneChunk("mismatched input")

	_, err := w.Write(ctx, persistence.WriteInput{
		Tenant: "tenant-writer-5", SourceType: persistence.SourceHypertext, SourceURI: "file:///tenant-writer-5/a.html",
		Title: "A", ContentHash: "hash-mismatch", Chunks: chunks, ChunkMetadata: metas, Embeddings: nil,
		EmbeddingModelID: "test-model", Activate: true,
	})
	if err == nil {
		t.Fatalf("expected an error for a chunk/embedding count mismatch")
	}
}
