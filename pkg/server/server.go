// Package server exposes the conversation store and loop runner over HTTP
// for UI observers: REST accessors plus a websocket stream of store
// updates.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nstogner/pocketagent/pkg/runner"
	"github.com/nstogner/pocketagent/pkg/store"
)

type Server struct {
	manager *store.Manager
	runner  *runner.Runner
	srv     *http.Server
}

func New(manager *store.Manager, r *runner.Runner) *Server {
	return &Server{manager: manager, runner: r}
}

// Handler returns the route mux; tests mount it on httptest servers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("GET /api/conversations/recent", s.handleRecentConversations)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)
	mux.HandleFunc("POST /api/messages", s.handlePostMessage)

	mux.HandleFunc("GET /api/models", s.handleListModels)

	// WebSocket
	mux.HandleFunc("/api/conversations/{id}/watch", s.handleWatch)

	return mux
}

// Start blocks serving the API on addr.
func (s *Server) Start(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Server listening", "addr", addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Close() error {
	if s.srv != nil {
		return s.srv.Close()
	}
	return nil
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
