package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/crxforge/crxforge/pkg/session"
)

// sessionSummary is the list/bootstrap wire shape.
type sessionSummary struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
	HasExtension bool      `json:"has_extension"`
}

func summarize(sess *session.Session) sessionSummary {
	return sessionSummary{
		SessionID:    sess.ID(),
		CreatedAt:    sess.CreatedAt(),
		MessageCount: len(sess.Transcript()),
		HasExtension: sess.HasExtension(),
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Create()
	if err != nil {
		s.logger.Errorf("creating session: %v", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, summarize(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.registry.List()
	out := make([]sessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summarize(sess))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	resp := map[string]any{
		"session_id": sess.ID(),
		"created_at": sess.CreatedAt(),
		"messages":   sess.Transcript(),
	}
	if ext := sess.Extension(); ext != nil {
		resp["extension"] = map[string]any{
			"id":          ext.ID,
			"name":        ext.Name,
			"description": ext.Description,
			"file_list":   ext.Files.Paths(),
			"updated_at":  ext.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePostMessage accepts a chat message and processes it in the
// background. The caller observes progress on the events channel; a dropped
// connection never cancels the turn.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	go func() {
		if err := s.handler.HandleMessage(context.Background(), sess, req.Content); err != nil {
			s.logger.Errorf("handling message for session %s: %v", sess.ID(), err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "processing"})
}

func (s *Server) handleGetExtension(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	ext := sess.Extension()
	if ext.IsEmpty() {
		writeError(w, http.StatusNotFound, "no extension generated yet")
		return
	}

	files := ext.Files
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          ext.ID,
		"name":        ext.Name,
		"description": ext.Description,
		"file_list":   files.Paths(),
		"files":       files,
		"updated_at":  ext.UpdatedAt,
	})
}
