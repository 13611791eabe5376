package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/dispatch"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
	"github.com/NuvemX-AI/nuvemx-sub001/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Register mounts the API routes on mux and returns the handler to serve.
// mux may already hold routes attached by channels. When authToken is
// non-empty, requests (except health, metrics and websocket upgrades) must
// carry Authorization: Bearer <token>.
func (s *Server) Register(mux *http.ServeMux, authToken string) http.Handler {
	mux.HandleFunc("POST /v1/{channel}/set", s.handleSetChannel)
	mux.HandleFunc("GET /v1/{channel}/find", s.handleFindChannel)
	mux.HandleFunc("POST /v1/instances/{name}/settings", s.handleSetSettings)
	mux.HandleFunc("POST /v1/instances/{name}/presence", s.handlePresence)
	mux.HandleFunc("GET /v1/instances", s.handleListInstances)
	mux.HandleFunc("POST /v1/events/emit", s.handleEmit)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	var h http.Handler = mux
	h = AuthMiddleware(authToken, h)
	h = LoggingMiddleware(s.logger, h)
	h = RecoveryMiddleware(s.logger, h)
	return h
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	channels := make([]string, 0)
	for _, c := range s.dispatcher.Channels() {
		channels = append(channels, string(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "channels": channels})
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps dispatcher and store errors onto HTTP statuses.
// writeDecodeError reports a request body that could not be decoded. Field
// errors found while decoding keep their per-field shape.
func (s *Server) writeDecodeError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		s.writeDomainError(w, ve)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Error(), "fields": ve.Errors})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrUnknownChannel):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("server: request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
