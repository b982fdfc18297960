// Package server exposes the conversation service over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/parley/pkg/inference"
	"github.com/go-go-golems/parley/pkg/orchestrator"
	"github.com/go-go-golems/parley/pkg/store"
)

type Server struct {
	lifecycle    *orchestrator.Lifecycle
	orchestrator *orchestrator.Orchestrator
	store        store.Store
	httpServer   *http.Server
	addr         string
}

func New(s store.Store, client inference.Client, addr string) *Server {
	return &Server{
		lifecycle:    orchestrator.NewLifecycle(s),
		orchestrator: orchestrator.New(s, client),
		store:        s,
		addr:         addr,
	}
}

// Router wires up the HTTP surface. Exposed separately so tests can drive the
// handlers through httptest without binding a port.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/conversation", s.handleCreateConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", s.handleUpdateConversation).Methods(http.MethodPut)
	r.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)
	r.HandleFunc("/queries", s.handleQuery).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return r
}

func (s *Server) Start() error {
	var handler http.Handler = s.Router()
	handler = loggingMiddleware(handler)
	handler = corsMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: handler,
		// The model call dominates request latency, keep write generous.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  time.Minute,
	}

	log.Info().Str("addr", s.addr).Msg("starting conversation server")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	log.Info().Msg("shutting down conversation server")
	return s.httpServer.Shutdown(ctx)
}
