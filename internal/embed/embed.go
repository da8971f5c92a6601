// Package embed batch-embeds chunk texts into unit-norm vectors, addressed
// either as a remote HTTP endpoint or a local deterministic handle; both
// implementations are interchangeable per the embedder contract.
package embed

import (
	"context"
	"errors"
	"math"
)

const maxBatchSize = 256

var ErrEmptyInput = errors.New("embed: texts must be non-empty")

// Embedder embeds a batch of texts, preserving input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func validate(texts []string) error {
	if len(texts) == 0 {
		return ErrEmptyInput
	}
	return nil
}

func chunkBatches(texts []string, size int) [][]string {
	if size <= 0 || size > maxBatchSize {
		size = maxBatchSize
	}
	var out [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[i:end])
	}
	return out
}
