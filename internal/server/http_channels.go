package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/NuvemX-AI/nuvemx-sub001/internal/model"
)

// channelParam parses {channel} and checks that an adapter is registered.
func (s *Server) channelParam(w http.ResponseWriter, r *http.Request) (model.ChannelType, bool) {
	c, err := model.ParseChannelType(r.PathValue("channel"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	for _, registered := range s.dispatcher.Channels() {
		if registered == c {
			return c, true
		}
	}
	writeError(w, http.StatusNotFound, "channel "+string(c)+" is not enabled on this server")
	return "", false
}

// handleSetChannel handles POST /v1/{channel}/set.
// Body: {"instanceName": "...", "<channel>": {"enabled", "events", ...settings}}
// with the channel's own settings flat in the inner object.
func (s *Server) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	c, ok := s.channelParam(w, r)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for key := range body {
		if key != "instanceName" && key != string(c) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unexpected field %q in %s set body", key, c))
			return
		}
	}
	var instanceName string
	if raw, ok := body["instanceName"]; ok {
		if err := json.Unmarshal(raw, &instanceName); err != nil {
			writeError(w, http.StatusBadRequest, "instanceName must be a string")
			return
		}
	}
	if instanceName == "" {
		writeError(w, http.StatusBadRequest, "instanceName is required")
		return
	}
	raw, ok := body[string(c)]
	if !ok {
		writeError(w, http.StatusBadRequest, string(c)+" is required")
		return
	}
	cfg, err := model.DecodeChannelConfig(c, raw)
	if err != nil {
		s.writeDecodeError(w, err)
		return
	}

	rec, err := s.dispatcher.SetChannelConfig(r.Context(), instanceName, c, cfg)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleFindChannel handles GET /v1/{channel}/find?instanceName=.
func (s *Server) handleFindChannel(w http.ResponseWriter, r *http.Request) {
	c, ok := s.channelParam(w, r)
	if !ok {
		return
	}
	instanceName := r.URL.Query().Get("instanceName")
	if instanceName == "" {
		writeError(w, http.StatusBadRequest, "instanceName is required")
		return
	}

	rec, err := s.dispatcher.GetInstanceConfig(r.Context(), instanceName, c)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSetSettings handles POST /v1/instances/{name}/settings.
// Body: a Bundle; absent channels are left unchanged.
func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var b model.Bundle
	if err := decodeBody(w, r, &b); err != nil {
		s.writeDecodeError(w, err)
		return
	}

	saved, err := s.dispatcher.SetInstanceConfig(r.Context(), r.PathValue("name"), b)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
