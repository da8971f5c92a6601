package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type localStore struct {
	base string
}

func newLocalStore(base string) *localStore {
	return &localStore{base: base}
}

func (s *localStore) Put(_ context.Context, tenant, docID, versionLabel string, data []byte) (string, error) {
	dir := filepath.Join(s.base, tenant, docID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifacts: mkdir: %w", err)
	}
	path := filepath.Join(dir, versionLabel+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("artifacts: write: %w", err)
	}
	return "file://" + path, nil
}
