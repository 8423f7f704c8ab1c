package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// heartbeatInterval keeps idle SSE connections from being reaped by
// intermediaries.
const heartbeatInterval = 15 * time.Second

// handleEvents serves the session's live channel over SSE. Each published
// event becomes one SSE frame named after its type. The subscription ends
// when the client disconnects; server-side work in flight is unaffected.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, cancel := s.hub.Subscribe(sess.ID())
	defer cancel()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warnf("encoding event for session %s: %v", sess.ID(), err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
