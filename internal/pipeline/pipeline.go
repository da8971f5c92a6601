// Package pipeline sequences extraction through persistence for one
// document path, heartbeating the run row at stage boundaries and tagging
// failures with the stage they occurred in.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"docingest/internal/artifacts"
	"docingest/internal/blocks"
	"docingest/internal/chunk"
	"docingest/internal/embed"
	"docingest/internal/extract"
	"docingest/internal/metadata"
	"docingest/internal/obs"
	"docingest/internal/persistence"
	"docingest/internal/tokenizer"
)

// Job is the unit of work accepted from the external dispatcher.
type Job struct {
	RunID       string
	DocID       string
	Tenant      string
	UploadURI   string
	Title       string
	SourceType  persistence.SourceType
	SourceURI   string
	ContentHash string
	Activate    bool
}

// StageError tags a failure with the pipeline stage it occurred in, per the
// error-handling design's stage classification.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("[%s] %s", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Orchestrator sequences extract, chunk, metadata, embed, and persist for
// one document.
type Orchestrator struct {
	Embedder  embed.Embedder
	Writer    persistence.Writer
	Runs      persistence.RunStore
	Artifacts artifacts.Store
	Tokenizer tokenizer.Counter
	ChunkCfg  chunk.Config
	Metrics   obs.Metrics
	Logger    *logrus.Logger
	Now       func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Process runs one job end to end, heartbeating the run row at stage
// boundaries and terminating it on success or failure.
func (o *Orchestrator) Process(ctx context.Context, job Job) error {
	start := o.now()
	path, err := resolveUploadURI(job.UploadURI)
	if err != nil {
		return o.fail(ctx, job.RunID, "extract", err)
	}

	bs, contentHash, err := o.runExtract(job, path)
	if err != nil {
		return o.fail(ctx, job.RunID, "extract", err)
	}
	o.heartbeat(ctx, job.RunID)
	o.observe("extract", start)

	t0 := o.now()
	result := chunk.Run(bs, o.Tokenizer, o.ChunkCfg)
	if o.Metrics != nil && result.HardCapWarnings > 0 {
		o.Metrics.IncCounter("chunk_hard_cap_warnings", map[string]string{"tenant": job.Tenant})
	}
	o.heartbeat(ctx, job.RunID)
	o.observe("chunk", t0)

	t0 = o.now()
	chunkMeta, err := o.runMetadata(result.Chunks)
	if err != nil {
		return o.fail(ctx, job.RunID, "metadata", err)
	}
	o.heartbeat(ctx, job.RunID)
	o.observe("metadata", t0)

	texts := make([]string, len(result.Chunks))
	for i, c := range result.Chunks {
		texts[i] = c.Text
	}

	t0 = o.now()
	embeddings, err := o.Embedder.Embed(ctx, texts)
	if err != nil {
		return o.fail(ctx, job.RunID, "embed", err)
	}
	o.heartbeat(ctx, job.RunID)
	o.observe("embed", t0)

	t0 = o.now()
	writeResult, err := o.Writer.Write(ctx, persistence.WriteInput{
		Tenant:           job.Tenant,
		SourceType:       job.SourceType,
		SourceURI:        job.SourceURI,
		Title:            job.Title,
		ContentHash:      contentHash,
		Chunks:           result.Chunks,
		ChunkMetadata:    chunkMeta,
		Embeddings:       embeddings,
		EmbeddingModelID: o.Embedder.Name(),
		Activate:         job.Activate,
	})
	if err != nil {
		return o.fail(ctx, job.RunID, "db_write", err)
	}
	o.observe("db_write", t0)

	if !writeResult.Skipped && o.Artifacts != nil {
		o.writeArtifact(ctx, job, writeResult, bs)
	}

	if !writeResult.Skipped {
		removeUpload(path)
	}

	totalTokens := 0
	for _, c := range result.Chunks {
		totalTokens += c.TokenCount
	}
	return o.Runs.FinishSuccess(ctx, job.RunID, persistence.RunStats{
		ChunksCreated:   writeResult.NumChunks,
		TokensTotal:     totalTokens,
		EmbeddingModel:  o.Embedder.Name(),
		DurationSeconds: o.now().Sub(start).Seconds(),
		Skipped:         writeResult.Skipped,
	})
}

// runMetadata computes the per-chunk metadata payload, parallel to
// result.Chunks, as its own stage between chunking and embedding so a
// failure here is tagged "metadata" rather than folded into db_write.
func (o *Orchestrator) runMetadata(chunks []chunk.Chunk) ([]metadata.Metadata, error) {
	out := make([]metadata.Metadata, len(chunks))
	for i, c := range chunks {
		out[i] = metadata.Generate(c.Text, c.TableFormat)
	}
	return out, nil
}

func (o *Orchestrator) runExtract(job Job, path string) ([]blocks.Block, string, error) {
	extractor, err := extract.ForPath(path)
	if err != nil {
		return nil, "", err
	}
	bs, err := extractor.Extract(path)
	if err != nil {
		return nil, "", err
	}
	hash, err := hashFile(path)
	if err != nil {
		return nil, "", err
	}
	return bs, hash, nil
}

func (o *Orchestrator) writeArtifact(ctx context.Context, job Job, wr persistence.WriteResult, bs []blocks.Block) {
	type artifactBlock struct {
		Type string         `json:"type"`
		Text string         `json:"text"`
		Meta map[string]any `json:"meta"`
	}
	out := make([]artifactBlock, len(bs))
	for i, b := range bs {
		out[i] = artifactBlock{Type: string(b.Kind), Text: b.Text, Meta: b.Meta}
	}
	data, err := json.Marshal(out)
	if err != nil {
		o.warn("artifact marshal failed", err)
		return
	}
	uri, err := o.Artifacts.Put(ctx, job.Tenant, wr.DocID, wr.VersionLabel, data)
	if err != nil {
		o.warn("artifact write failed", err)
		return
	}
	if err := o.Writer.PatchArtifactURI(ctx, job.Tenant, wr.VersionID, uri); err != nil {
		o.warn("artifact patch failed", err)
	}
}

func (o *Orchestrator) fail(ctx context.Context, runID, stage string, err error) error {
	wrapped := stageErr(stage, err)
	if ferr := o.Runs.FinishFailure(ctx, runID, stage, err.Error()); ferr != nil && o.Logger != nil {
		o.Logger.WithError(ferr).Error("failed to record run failure")
	}
	return wrapped
}

func (o *Orchestrator) heartbeat(ctx context.Context, runID string) {
	if err := o.Runs.Heartbeat(ctx, runID); err != nil && o.Logger != nil {
		o.Logger.WithError(err).Warn("heartbeat failed")
	}
}

func (o *Orchestrator) observe(stage string, since time.Time) {
	if o.Metrics != nil {
		o.Metrics.ObserveHistogram("pipeline_stage_seconds", o.now().Sub(since).Seconds(), map[string]string{"stage": stage})
	}
}

func (o *Orchestrator) warn(msg string, err error) {
	if o.Logger != nil {
		o.Logger.WithError(err).Warn(msg)
	}
}

func resolveUploadURI(uri string) (string, error) {
	const scheme = "file://"
	if !strings.HasPrefix(uri, scheme) {
		return "", fmt.Errorf("unsupported upload scheme: %s", uri)
	}
	return strings.TrimPrefix(uri, scheme), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func removeUpload(path string) {
	_ = os.Remove(path)
}
