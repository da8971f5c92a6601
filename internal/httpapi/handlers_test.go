package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"docingest/internal/embed"
	"docingest/internal/obs"
	"docingest/internal/persistence"
	"docingest/internal/pipeline"
	"docingest/internal/worker"
)

type wcCounter struct{}

func (wcCounter) Count(s string) int { return len(strings.Fields(s)) }
func (wcCounter) Name() string       { return "word-count" }

type fakeWriter struct {
	release chan struct{}
}

func (w *fakeWriter) Write(_ context.Context, in persistence.WriteInput) (persistence.WriteResult, error) {
	if w.release != nil {
		<-w.release
	}
	return persistence.WriteResult{DocID: "doc-1", VersionID: "v-1", NumChunks: len(in.Chunks)}, nil
}
func (w *fakeWriter) PatchArtifactURI(context.Context, string, string, string) error { return nil }

type fakeRunStore struct{}

func (fakeRunStore) Claim(context.Context, string, time.Duration) (persistence.Run, bool, error) {
	return persistence.Run{}, true, nil
}
func (fakeRunStore) Heartbeat(context.Context, string) error                          { return nil }
func (fakeRunStore) FinishSuccess(context.Context, string, persistence.RunStats) error { return nil }
func (fakeRunStore) FinishFailure(context.Context, string, string, string) error       { return nil }
func (fakeRunStore) SweepStale(context.Context, time.Duration) (int, error)            { return 0, nil }

type fakeArtifacts struct{}

func (fakeArtifacts) Put(context.Context, string, string, string, []byte) (string, error) {
	return "", nil
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestServer(t *testing.T, maxConcurrent int, authToken string, release chan struct{}) *Server {
	t.Helper()
	o := &pipeline.Orchestrator{
		Embedder:  embed.NewDeterministic(8),
		Writer:    &fakeWriter{release: release},
		Runs:      fakeRunStore{},
		Artifacts: fakeArtifacts{},
		Tokenizer: wcCounter{},
		Metrics:   obs.NewMock(),
	}
	rt := worker.New(o, fakeRunStore{}, maxConcurrent, time.Minute, silentLogger())
	return NewServer(rt, authToken)
}

func writeTempHTML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.html")
	content := `<html><body><main><h1>T</h1><p>Some text content to chunk and embed.</p></main></body></html>`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp html: %v", err)
	}
	return path
}

func processBody(t *testing.T, runID, path string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"run_id":      runID,
		"tenant_id":   "tenant-a",
		"upload_uri":  "file://" + path,
		"source_type": "hypertext",
		"source_uri":  "file://" + path,
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return body
}

func TestHandleProcess_AcceptsAndReturns202(t *testing.T) {
	srv := newTestServer(t, 2, "", nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	path := writeTempHTML(t)
	resp, err := http.Post(ts.URL+"/internal/process", "application/json", bytes.NewReader(processBody(t, "run-1", path)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "accepted" || payload["run_id"] != "run-1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleProcess_ReturnsBusyWhenPoolSaturated(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := newTestServer(t, 1, "", release)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	path1 := writeTempHTML(t)
	path2 := writeTempHTML(t)

	resp1, err := http.Post(ts.URL+"/internal/process", "application/json", bytes.NewReader(processBody(t, "run-1", path1)))
	if err != nil {
		t.Fatalf("post 1: %v", err)
	}
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusAccepted {
		t.Fatalf("status 1 = %d, want 202", resp1.StatusCode)
	}

	// the first job is now blocked inside Write holding the only pool slot.
	var resp2 *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp2, err = http.Post(ts.URL+"/internal/process", "application/json", bytes.NewReader(processBody(t, "run-2", path2)))
		if err != nil {
			t.Fatalf("post 2: %v", err)
		}
		if resp2.StatusCode == http.StatusServiceUnavailable {
			break
		}
		resp2.Body.Close()
		time.Sleep(5 * time.Millisecond)
	}
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status 2 = %d, want 503", resp2.StatusCode)
	}
	resp2.Body.Close()
}

func TestHandleProcess_RequiresBearerTokenWhenConfigured(t *testing.T) {
	srv := newTestServer(t, 2, "secret-token", nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	path := writeTempHTML(t)

	resp, err := http.Post(ts.URL+"/internal/process", "application/json", bytes.NewReader(processBody(t, "run-1", path)))
	if err != nil {
		t.Fatalf("post without token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/internal/process", bytes.NewReader(processBody(t, "run-1", path)))
	req.Header.Set("Authorization", "Bearer wrong-token")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post with wrong token: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status with wrong token = %d, want 401", resp2.StatusCode)
	}

	req3, _ := http.NewRequest(http.MethodPost, ts.URL+"/internal/process", bytes.NewReader(processBody(t, "run-1", path)))
	req3.Header.Set("Authorization", "Bearer secret-token")
	resp3, err := http.DefaultClient.Do(req3)
	if err != nil {
		t.Fatalf("post with correct token: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusAccepted {
		t.Fatalf("status with correct token = %d, want 202", resp3.StatusCode)
	}
}

func TestHandleProcess_RejectsMissingRunID(t *testing.T) {
	srv := newTestServer(t, 2, "", nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"tenant_id": "tenant-a", "upload_uri": "file:///tmp/x.html"})
	resp, err := http.Post(ts.URL+"/internal/process", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleProcess_RejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t, 2, "", nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/internal/process", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleHealth_ReportsPoolShape(t *testing.T) {
	srv := newTestServer(t, 4, "", nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("status field = %v, want ok", payload["status"])
	}
	if int(payload["max_concurrent"].(float64)) != 4 {
		t.Fatalf("max_concurrent = %v, want 4", payload["max_concurrent"])
	}
	if int(payload["active_jobs"].(float64)) != 0 {
		t.Fatalf("active_jobs = %v, want 0", payload["active_jobs"])
	}
}
