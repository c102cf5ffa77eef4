package api

import (
	"net/http"

	"github.com/avermeer/droidgate/internal/validate"
	"github.com/avermeer/droidgate/internal/webhook"
)

// handleGetProperties returns all runtime system properties. GET /properties
func (s *Server) handleGetProperties(w http.ResponseWriter, r *http.Request) {
	props, err := s.runtime.Properties(r.Context())
	if err != nil {
		s.writeRuntimeError(w, "property query", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"properties": props,
		"count":      len(props),
	})
}

type setPropertiesRequest struct {
	Properties map[string]string `json:"properties"`
}

// handleSetProperties sets one or more runtime system properties.
// POST /properties/set
//
// Keys are validated up front; nothing is applied when any key is invalid.
// Application then proceeds per key, and the response reports each outcome.
func (s *Server) handleSetProperties(w http.ResponseWriter, r *http.Request) {
	var req setPropertiesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Properties) == 0 {
		writeInvalidInput(w, "properties", "at least one property is required")
		return
	}
	for key := range req.Properties {
		if err := validate.PropertyKey(key); err != nil {
			writeInvalidInput(w, "properties", err.Error())
			return
		}
	}

	results := make(map[string]any, len(req.Properties))
	applied := make(map[string]any)
	for key, value := range req.Properties {
		if err := s.runtime.SetProperty(r.Context(), key, value); err != nil {
			s.logger.Warn("failed to set property", "key", key, "error", err)
			results[key] = map[string]any{"success": false, "error": err.Error()}
			continue
		}
		results[key] = map[string]any{"success": true}
		applied[key] = value
	}

	if len(applied) > 0 {
		s.emit(webhook.EventPropertySet, map[string]any{"properties": applied})
		s.recordAudit(r, "properties.set", map[string]any{"properties": applied})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}
