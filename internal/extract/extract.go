// Package extract parses format-specific document containers into an
// ordered blocks.Block stream.
package extract

import (
	"errors"
	"path/filepath"
	"strings"

	"docingest/internal/blocks"
)

// Sentinel errors shared by every extractor variant, so callers can classify
// failures without string matching.
var (
	ErrInputFormat   = errors.New("extract: unexpected input format")
	ErrInputNotFound = errors.New("extract: input not found")
	ErrExtractEmpty  = errors.New("extract: no non-empty blocks produced")
)

// Extractor parses a local file path into an ordered Block stream.
type Extractor interface {
	Extract(path string) ([]blocks.Block, error)
}

// ForPath selects the extractor registered for path's extension.
func ForPath(path string) (Extractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return DocxExtractor{}, nil
	case ".pdf":
		return PDFExtractor{}, nil
	case ".html", ".htm":
		return HTMLExtractor{}, nil
	default:
		return nil, ErrInputFormat
	}
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
