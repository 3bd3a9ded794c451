// Package api exposes the ops HTTP interface: health, readiness, and
// Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/openrecords/caseharvester/internal/court"
	"github.com/openrecords/caseharvester/internal/metrics"
)

// Server wires the ops endpoints. Readiness reflects whether an access
// credential is currently held.
type Server struct {
	router chi.Router
	creds  court.CredentialSource
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. creds may be nil
// when no rotation is running.
func NewServer(creds court.CredentialSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{creds: creds, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.creds != nil && s.creds.Current().Zero() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "waiting for credential",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
