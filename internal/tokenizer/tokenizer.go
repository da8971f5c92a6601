// Package tokenizer counts tokens using the same byte-pair encoding as the
// downstream language model, so budgeting in the chunker matches what the
// serving stage will see.
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter matches the two-method tokenizer shape used across this
// repository's packages.
type Counter interface {
	Count(s string) int
	Name() string
}

// CL100K backs Count with the cl100k_base encoding, the encoding used by the
// downstream embedding/generation models this engine feeds.
type CL100K struct {
	enc *tiktoken.Tiktoken
}

var (
	shared     *CL100K
	sharedOnce sync.Once
	sharedErr  error
)

// Shared returns the process-wide lazily initialized encoder handle. The
// encoder is expensive to build and has no mutable state once built, so one
// instance is held for the process lifetime and reused by both the chunker
// and any stage that re-measures chunk texts before prompting.
func Shared() (*CL100K, error) {
	sharedOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			sharedErr = err
			return
		}
		shared = &CL100K{enc: enc}
	})
	return shared, sharedErr
}

func (c *CL100K) Count(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}

func (c *CL100K) Name() string { return "cl100k_base" }
