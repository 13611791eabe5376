package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/presence"
)

// handlePresence handles POST /v1/instances/{name}/presence.
// Body: {"state": "open" | "connecting" | "close"}.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	if s.presence == nil {
		writeError(w, http.StatusNotImplemented, "presence tracking is disabled")
		return
	}
	var body struct {
		State string `json:"state"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := presence.ParseState(body.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := r.PathValue("name")
	s.presence.RecordState(name, state)
	writeJSON(w, http.StatusOK, map[string]string{"instance": name, "state": string(state)})
}

// handleListInstances handles GET /v1/instances.
// Optional stale_threshold_secs omits instances idle for longer.
func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	if s.presence == nil {
		writeJSON(w, http.StatusOK, map[string]any{"instances": []any{}})
		return
	}
	var stale time.Duration
	if v := r.URL.Query().Get("stale_threshold_secs"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs < 0 {
			writeError(w, http.StatusBadRequest, "stale_threshold_secs must be a non-negative integer")
			return
		}
		stale = time.Duration(secs) * time.Second
	}
	writeJSON(w, http.StatusOK, map[string]any{"instances": s.presence.Roster(stale)})
}
