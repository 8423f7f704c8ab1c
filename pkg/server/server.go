// Package server exposes the HTTP surface: session bootstrap, the live
// event channel, message intake, extension readout, and browser verification
// control.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/crxforge/crxforge/pkg/browser"
	"github.com/crxforge/crxforge/pkg/config"
	"github.com/crxforge/crxforge/pkg/logging"
	"github.com/crxforge/crxforge/pkg/session"
	"github.com/crxforge/crxforge/pkg/workspace"
)

// messageHandler processes one inbound chat message end to end.
type messageHandler interface {
	HandleMessage(ctx context.Context, sess *session.Session, text string) error
}

// browserManager drives per-session verification sessions.
type browserManager interface {
	Start(ctx context.Context, sessionID, extensionDir string) (*browser.VerificationSession, error)
	Get(sessionID string) (*browser.VerificationSession, bool)
	Close(sessionID string) error
}

// Server routes HTTP requests into the orchestrator and its collaborators.
type Server struct {
	registry   *session.Registry
	hub        *session.Hub
	workspaces *workspace.Store
	handler    messageHandler
	browsers   browserManager
	logger     *logging.Logger

	httpServer *http.Server
}

// New builds the server and its route table.
func New(cfg config.ServerConfig, registry *session.Registry, hub *session.Hub, workspaces *workspace.Store, handler messageHandler, browsers browserManager) *Server {
	s := &Server{
		registry:   registry,
		hub:        hub,
		workspaces: workspaces,
		handler:    handler,
		browsers:   browsers,
		logger:     logging.ForComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleEvents)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handlePostMessage)
	mux.HandleFunc("GET /api/sessions/{id}/extension", s.handleGetExtension)
	mux.HandleFunc("POST /api/sessions/{id}/browser/start", s.handleBrowserStart)
	mux.HandleFunc("POST /api/sessions/{id}/browser/probe", s.handleBrowserProbe)
	mux.HandleFunc("POST /api/sessions/{id}/browser/close", s.handleBrowserClose)
	mux.HandleFunc("GET /api/sessions/{id}/browser/logs", s.handleBrowserLogs)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Handler returns the route table, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Infof("listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// sessionFromPath resolves the {id} path segment, writing a 404 when the
// session is unknown.
func (s *Server) sessionFromPath(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("id")
	sess, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil, false
	}
	return sess, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
