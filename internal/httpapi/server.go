// Package httpapi exposes the worker runtime's internal job endpoint and
// health check over a stdlib net/http.ServeMux with method patterns.
package httpapi

import (
	"net/http"

	"docingest/internal/worker"
)

// Server exposes the internal job endpoint and health check.
type Server struct {
	runtime   *worker.Runtime
	authToken string
	mux       *http.ServeMux
}

// NewServer creates the HTTP API server wired to the worker runtime.
// authToken, if non-empty, is required as a bearer token on /internal/process.
func NewServer(runtime *worker.Runtime, authToken string) *Server {
	s := &Server{runtime: runtime, authToken: authToken, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /internal/process", s.handleProcess)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}
