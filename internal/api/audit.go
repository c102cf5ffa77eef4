package api

import (
	"net/http"
	"strconv"

	"github.com/avermeer/droidgate/internal/audit"
)

// handleAuditLog returns a page of recorded control-plane actions.
// GET /audit?action=&limit=&offset=
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit trail is disabled")
		return
	}

	filter := audit.Filter{
		Action: r.URL.Query().Get("action"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeInvalidInput(w, "limit", "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeInvalidInput(w, "offset", "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
