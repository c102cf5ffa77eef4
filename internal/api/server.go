// Package api provides the HTTP control-plane server for DroidGate.
//
// It exposes runtime management operations (app launch/stop, properties,
// logs, screenshots), webhook administration, metrics, and a WebSocket event
// stream to external automation.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avermeer/droidgate/internal/audit"
	"github.com/avermeer/droidgate/internal/auth"
	"github.com/avermeer/droidgate/internal/infrastructure/config"
	"github.com/avermeer/droidgate/internal/infrastructure/logging"
	"github.com/avermeer/droidgate/internal/metrics"
	"github.com/avermeer/droidgate/internal/ratelimit"
	"github.com/avermeer/droidgate/internal/runtime"
	"github.com/avermeer/droidgate/internal/webhook"
)

// API version constants. Legacy unversioned paths remain routable so older
// clients keep working after upgrades.
const (
	apiVersion = "v1"
)

// supportedVersions lists every API version prefix the router accepts.
var supportedVersions = []string{"v1"}

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// auditWriteTimeout bounds the best-effort audit insert per mutation.
const auditWriteTimeout = 3 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Guard      *auth.Guard
	Limiter    *ratelimit.Limiter // nil disables rate limiting
	Metrics    *metrics.Collector
	Webhooks   *webhook.Store
	Dispatcher *webhook.Dispatcher
	Runtime    *runtime.Controller
	Audit      audit.Repository // nil disables the audit trail
	Version    string
}

// Server is the HTTP control-plane server.
//
// It manages the HTTP listener, routes, middleware, and the WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg               config.APIConfig
	corsCfg           config.CORSConfig
	wsCfg             config.WebSocketConfig
	trustForwardedFor bool
	logger            *logging.Logger
	guard             *auth.Guard
	limiter           *ratelimit.Limiter
	metrics           *metrics.Collector
	webhooks          *webhook.Store
	dispatcher        *webhook.Dispatcher
	runtime           *runtime.Controller
	audit             audit.Repository
	version           string
	startTime         time.Time

	server  *http.Server
	hub     *Hub
	tickets *ticketStore
	cancel  context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Guard == nil {
		return nil, fmt.Errorf("auth guard is required")
	}
	if deps.Metrics == nil {
		return nil, fmt.Errorf("metrics collector is required")
	}
	if deps.Webhooks == nil {
		return nil, fmt.Errorf("webhook store is required")
	}
	if deps.Runtime == nil {
		return nil, fmt.Errorf("runtime controller is required")
	}

	return &Server{
		cfg:               deps.Config,
		corsCfg:           deps.Config.CORS,
		wsCfg:             deps.WS,
		trustForwardedFor: deps.Security.TrustForwardedFor,
		logger:            deps.Logger,
		guard:             deps.Guard,
		limiter:           deps.Limiter,
		metrics:           deps.Metrics,
		webhooks:          deps.Webhooks,
		dispatcher:        deps.Dispatcher,
		runtime:           deps.Runtime,
		audit:             deps.Audit,
		version:           deps.Version,
		startTime:         time.Now(),
		tickets:           newTicketStore(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the WebSocket hub and ticket cleanup, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)
	go s.tickets.cleanLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.readTimeout(),
		ReadHeaderTimeout: s.readTimeout(),
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

func (s *Server) readTimeout() time.Duration {
	return time.Duration(s.cfg.Timeouts.Read) * time.Second
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// emit fans a successful state-changing operation out to registered webhooks
// and connected WebSocket clients. Delivery never blocks or fails the caller.
func (s *Server) emit(eventType string, payload map[string]any) {
	if s.dispatcher != nil {
		s.dispatcher.Trigger(eventType, payload)
	}
	if s.hub != nil {
		s.hub.Broadcast(eventType, payload)
	}
}

// recordAudit stores a best-effort audit entry for a mutating operation.
// Audit failures are logged, never surfaced to the caller.
func (s *Server) recordAudit(r *http.Request, action string, details map[string]any) {
	if s.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	entry := &audit.Entry{
		Action:   action,
		Endpoint: r.URL.Path,
		ClientID: s.clientID(r),
		Details:  details,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry", "action", action, "error", err)
	}
}

// decodeJSON decodes a JSON request body into v, writing the appropriate
// error envelope on failure. Returns true when decoding succeeded.
//
// Oversized bodies (cut off by MaxBytesReader) yield REQUEST_TOO_LARGE;
// anything else malformed yields INVALID_JSON.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit))
		return false
	}

	writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, "invalid JSON body")
	return false
}
