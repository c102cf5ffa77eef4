package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avermeer/droidgate/internal/webhook"
)

// handleListWebhooks returns all registered webhooks with secrets redacted.
// GET /webhooks
func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks := s.webhooks.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"webhooks": hooks,
		"count":    len(hooks),
	})
}

type registerWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// handleRegisterWebhook registers a new webhook. POST /webhooks
func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req registerWebhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hook, err := s.webhooks.Register(req.URL, req.Events, req.Secret)
	if err != nil {
		var unknownErr *webhook.UnknownEventError
		switch {
		case errors.Is(err, webhook.ErrInvalidURL):
			writeInvalidInput(w, "url", err.Error())
		case errors.Is(err, webhook.ErrNoEvents):
			writeInvalidInput(w, "events", err.Error())
		case errors.As(err, &unknownErr):
			writeErrorDetails(w, http.StatusBadRequest, ErrCodeInvalidInput, err.Error(),
				map[string]any{
					"field":        "events",
					"known_events": webhook.KnownEvents(),
				})
		default:
			s.logger.Error("failed to register webhook", "error", err)
			writeInternalError(w, "failed to register webhook")
		}
		return
	}

	s.recordAudit(r, "webhook.register", map[string]any{
		"id":     hook.ID,
		"url":    hook.URL,
		"events": hook.Events,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         hook.ID,
		"url":        hook.URL,
		"events":     hook.Events,
		"enabled":    hook.Enabled,
		"created_at": hook.CreatedAt,
	})
}

// handleRemoveWebhook deletes a webhook by id. DELETE /webhooks/{id}
func (s *Server) handleRemoveWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	removed, err := s.webhooks.Remove(id)
	if err != nil {
		s.logger.Error("failed to remove webhook", "id", id, "error", err)
		writeInternalError(w, "failed to remove webhook")
		return
	}
	if !removed {
		writeNotFound(w, "webhook not found")
		return
	}

	s.recordAudit(r, "webhook.remove", map[string]any{"id": id})

	writeJSON(w, http.StatusOK, map[string]any{
		"removed": true,
		"id":      id,
	})
}
