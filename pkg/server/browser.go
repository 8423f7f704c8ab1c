package server

import (
	"encoding/json"
	"net/http"

	"github.com/crxforge/crxforge/pkg/browser"
)

// handleBrowserStart launches a verification session against the session's
// current extension files. Any prior verification session is closed first.
func (s *Server) handleBrowserStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	if !sess.HasExtension() {
		writeError(w, http.StatusConflict, "no extension to load; generate one first")
		return
	}

	ws, err := s.workspaces.Initialize(sess.ID())
	if err != nil {
		s.logger.Errorf("initializing workspace for session %s: %v", sess.ID(), err)
		writeError(w, http.StatusInternalServerError, "could not open extension workspace")
		return
	}

	vs, err := s.browsers.Start(r.Context(), sess.ID(), ws.Dir())
	if err != nil {
		s.logger.Warnf("browser start failed for session %s: %v", sess.ID(), err)
		writeError(w, http.StatusBadGateway, "browser launch failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       string(vs.Status()),
		"extension_id": vs.ExtensionID(),
	})
}

// handleBrowserProbe runs one scripted interaction on the active
// verification session. The kind defaults to the full test sequence.
func (s *Server) handleBrowserProbe(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	vs, ok := s.browsers.Get(sess.ID())
	if !ok {
		writeError(w, http.StatusConflict, "no active browser session")
		return
	}

	kind := browser.ProbeTest
	var req struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Kind != "" {
		kind = browser.ProbeKind(req.Kind)
	}

	if err := vs.RunProbe(r.Context(), kind); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": string(vs.Status()),
		"kind":   string(kind),
	})
}

func (s *Server) handleBrowserClose(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	if err := s.browsers.Close(sess.ID()); err != nil {
		s.logger.Warnf("closing browser session for %s: %v", sess.ID(), err)
		writeError(w, http.StatusInternalServerError, "could not close browser session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleBrowserLogs(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	vs, ok := s.browsers.Get(sess.ID())
	if !ok {
		writeError(w, http.StatusConflict, "no active browser session")
		return
	}

	counts := make(map[string]int)
	for category, n := range vs.Counts() {
		counts[string(category)] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":   sess.ID(),
		"status":       string(vs.Status()),
		"extension_id": vs.ExtensionID(),
		"counts":       counts,
		"events":       vs.CollectLogs(),
	})
}
