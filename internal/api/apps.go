package api

import (
	"net/http"

	"github.com/avermeer/droidgate/internal/validate"
	"github.com/avermeer/droidgate/internal/webhook"
)

// handleListApps returns the installed application packages. GET /apps
func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.runtime.ListApps(r.Context())
	if err != nil {
		s.writeRuntimeError(w, "app listing", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"apps":  apps,
		"count": len(apps),
	})
}

type launchRequest struct {
	Package string `json:"package"`
}

// handleLaunchApp launches an application package. POST /app/launch
func (s *Server) handleLaunchApp(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.PackageName(req.Package); err != nil {
		writeInvalidInput(w, "package", err.Error())
		return
	}

	output, err := s.runtime.Launch(r.Context(), req.Package)
	if err != nil {
		s.writeRuntimeError(w, "app launch", err)
		return
	}

	s.emit(webhook.EventAppLaunched, map[string]any{"package": req.Package})
	s.recordAudit(r, "app.launch", map[string]any{"package": req.Package})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"package": req.Package,
		"output":  output,
	})
}

type stopRequest struct {
	Package string `json:"package"`
}

// handleStopApp force-stops an application package. POST /app/stop
func (s *Server) handleStopApp(w http.ResponseWriter, r *http.Request) {
	var req stopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.PackageName(req.Package); err != nil {
		writeInvalidInput(w, "package", err.Error())
		return
	}

	if err := s.runtime.Stop(r.Context(), req.Package); err != nil {
		s.writeRuntimeError(w, "app stop", err)
		return
	}

	s.emit(webhook.EventAppStopped, map[string]any{"package": req.Package})
	s.recordAudit(r, "app.stop", map[string]any{"package": req.Package})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"package": req.Package,
	})
}

type intentRequest struct {
	Intent string `json:"intent"`
}

// handleSendIntent sends an intent action to the runtime. POST /app/intent
func (s *Server) handleSendIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.IntentAction(req.Intent); err != nil {
		writeInvalidInput(w, "intent", err.Error())
		return
	}

	output, err := s.runtime.SendIntent(r.Context(), req.Intent)
	if err != nil {
		s.writeRuntimeError(w, "intent dispatch", err)
		return
	}

	s.emit(webhook.EventIntentSent, map[string]any{"intent": req.Intent})
	s.recordAudit(r, "app.intent", map[string]any{"intent": req.Intent})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"intent":  req.Intent,
		"output":  output,
	})
}
