package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

// handleEmit handles POST /v1/events/emit. The envelope is accepted and
// fanned out in the background; the response never reflects delivery.
func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	// Producers may send fields this server does not know; they are ignored.
	var env model.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := env.Validate(); err != nil {
		s.writeDomainError(w, err)
		return
	}
	if env.DateTime == "" {
		env.DateTime = time.Now().UTC().Format(time.RFC3339)
	}
	if env.ServerURL == "" {
		env.ServerURL = requestBaseURL(r)
	}

	s.dispatcher.EmitAsync(context.WithoutCancel(r.Context()), env)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "accepted",
		"instance": env.InstanceName,
		"event":    model.NormalizeEvent(env.Event),
	})
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
