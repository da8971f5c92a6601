// Package artifacts writes the best-effort extracted-block JSON snapshot
// referenced by a document version, to a local filesystem directory or an
// S3-compatible backend.
package artifacts

import (
	"context"
	"strings"
)

// Store writes one artifact blob and returns the URI it was written to.
type Store interface {
	Put(ctx context.Context, tenant, docID, versionLabel string, data []byte) (uri string, err error)
}

// New selects a Store implementation from the configured artifact base:
// an "s3://bucket/prefix" URI selects the S3 backend, anything else is
// treated as a local filesystem directory.
func New(ctx context.Context, artifactBase string) (Store, error) {
	if strings.HasPrefix(artifactBase, "s3://") {
		return newS3Store(ctx, artifactBase)
	}
	return newLocalStore(artifactBase), nil
}
