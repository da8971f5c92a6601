package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPEmbedder_PostsAndNormalizesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		resp := embedResponse{Embeddings: make([][]float32, len(req.Texts))}
		for i := range req.Texts {
			resp.Embeddings[i] = []float32{3, 4} // norm 5, should come back normalized
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL, "test-model", 2, 256)
	vecs, err := e.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	for _, v := range vecs {
		if math.Abs(vecNorm(v)-1.0) >= 1e-3 {
			t.Fatalf("vector norm = %f, want ~1.0", vecNorm(v))
		}
	}
}

func TestHTTPEmbedder_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL, "test-model", 2, 256)
	if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatalf("expected an error for a non-200 response")
	}
}

func TestHTTPEmbedder_EmptyInputIsError(t *testing.T) {
	e := NewHTTP("http://unused.invalid", "test-model", 2, 256)
	if _, err := e.Embed(context.Background(), nil); err != ErrEmptyInput {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestHTTPEmbedder_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "model": "test-model"})
	}))
	defer srv.Close()

	e := NewHTTP(srv.URL, "test-model", 2, 256)
	if err := e.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
