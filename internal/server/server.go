// Package server exposes the PIR content-delivery backend over HTTP: a
// public session/catalog/kpir/integrity/quiz surface and an admin surface
// gated by a shared secret.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"pirserve/internal/catalog"
	"pirserve/internal/chunkcache"
	"pirserve/internal/home"
	"pirserve/internal/ingest"
	"pirserve/internal/logging"
	"pirserve/internal/session"
)

// Server holds the wired dependencies behind the HTTP surface.
type Server struct {
	store       catalog.Store
	cache       *chunkcache.Cache
	sessions    *session.Store
	ingester    *ingest.Ingester
	dir         home.Dir
	adminSecret string
	logger      *slog.Logger
}

// New constructs a Server. adminSecret is compared in constant time against
// every admin request's credential.
func New(store catalog.Store, cache *chunkcache.Cache, sessions *session.Store, ingester *ingest.Ingester, dir home.Dir, adminSecret string, logger *slog.Logger) *Server {
	return &Server{
		store:       store,
		cache:       cache,
		sessions:    sessions,
		ingester:    ingester,
		dir:         dir,
		adminSecret: adminSecret,
		logger:      logging.Default(logger).With("component", "server"),
	}
}

// Handler returns the fully routed, compression-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session", s.handleCreateSession)
	mux.HandleFunc("GET /catalog", s.handleCatalog)
	mux.HandleFunc("POST /kpir", s.handleKPIR)
	mux.HandleFunc("GET /integrity", s.handleIntegrity)
	mux.HandleFunc("GET /quiz/{module_id}", s.handleQuiz)
	mux.HandleFunc("POST /admin/upload", s.handleAdminUpload)
	mux.HandleFunc("DELETE /admin/modules/{id}", s.handleAdminDeleteModule)
	mux.HandleFunc("POST /admin/quiz", s.handleAdminAddQuiz)
	mux.HandleFunc("DELETE /admin/quiz/{id}", s.handleAdminDeleteQuiz)

	return compressMiddleware(mux)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
