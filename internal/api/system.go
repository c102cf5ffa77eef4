package api

import (
	"net/http"
	"strconv"
	"time"
)

// handleHealth returns service liveness. GET /health
//
// Deliberately unauthenticated and unmetered so orchestrators can probe it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": s.version,
		"uptime":  int(time.Since(s.startTime).Seconds()),
	})
}

// handleStatus reports the runtime container state. GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.runtime.Status(r.Context())
	if err != nil {
		s.writeRuntimeError(w, "status query", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": res.Status,
		"output": res.Output,
	})
}

// handleVersion reports runtime and API version information. GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	runtimeVersion, err := s.runtime.Version(r.Context())
	if err != nil {
		s.writeRuntimeError(w, "version query", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runtime_version":    runtimeVersion,
		"service_version":    s.version,
		"api_version":        apiVersion,
		"supported_versions": supportedVersions,
	})
}

const (
	defaultLogLines = 100
	maxLogLines     = 1000
)

// handleLogs returns recent runtime log lines. GET /logs?lines=N
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	lines := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeInvalidInput(w, "lines", "lines must be a positive integer")
			return
		}
		lines = n
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}

	logs, err := s.runtime.Logs(r.Context(), lines)
	if err != nil {
		s.writeRuntimeError(w, "log retrieval", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}

// handleMetrics exposes request counters in Prometheus text format.
// GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	body := s.metrics.RenderPrometheusText()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response
	w.Write([]byte(body))
}
