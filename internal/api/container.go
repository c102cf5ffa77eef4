package api

import (
	"encoding/base64"
	"net/http"

	"github.com/avermeer/droidgate/internal/webhook"
)

// handleRestartContainer restarts the runtime container. POST /container/restart
func (s *Server) handleRestartContainer(w http.ResponseWriter, r *http.Request) {
	output, err := s.runtime.RestartContainer(r.Context())
	if err != nil {
		s.writeRuntimeError(w, "container restart", err)
		return
	}

	s.emit(webhook.EventContainerRestarted, map[string]any{"container": output})
	s.recordAudit(r, "container.restart", nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"output":  output,
	})
}

// handleScreenshot captures the runtime display. POST /screenshot
//
// The PNG is returned base64-encoded in the JSON body rather than as a binary
// response so callers share one content type across the API.
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	png, err := s.runtime.Screenshot(r.Context())
	if err != nil {
		s.writeRuntimeError(w, "screenshot capture", err)
		return
	}

	s.emit(webhook.EventScreenshotCaptured, map[string]any{"size_bytes": len(png)})
	s.recordAudit(r, "screenshot.capture", map[string]any{"size_bytes": len(png)})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"format":     "png",
		"screenshot": base64.StdEncoding.EncodeToString(png),
	})
}
