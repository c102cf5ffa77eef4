// DroidGate - control plane for a sandboxed Android runtime.
//
// DroidGate exposes an authenticated HTTP API for managing applications,
// system properties, and the container lifecycle of a single runtime
// instance, with webhook and WebSocket fan-out of runtime events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/avermeer/droidgate/internal/api"
	"github.com/avermeer/droidgate/internal/audit"
	"github.com/avermeer/droidgate/internal/auth"
	"github.com/avermeer/droidgate/internal/infrastructure/config"
	"github.com/avermeer/droidgate/internal/infrastructure/database"
	"github.com/avermeer/droidgate/internal/infrastructure/logging"
	"github.com/avermeer/droidgate/internal/metrics"
	"github.com/avermeer/droidgate/internal/ratelimit"
	"github.com/avermeer/droidgate/internal/runtime"
	"github.com/avermeer/droidgate/internal/webhook"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting DroidGate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database for the audit trail
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	if initErr := auditRepo.Init(ctx); initErr != nil {
		return fmt.Errorf("initialising audit schema: %w", initErr)
	}
	log.Info("audit trail initialised")

	// API token guard
	guard, err := auth.NewGuard(cfg.Security.Token.Path, cfg.Security.Token.AutoGenerate, log)
	if err != nil {
		return fmt.Errorf("initialising auth guard: %w", err)
	}
	if !guard.Enabled() {
		log.Warn("API AUTHENTICATION IS DISABLED; do not expose this service")
	}

	// Rate limiter
	var limiter *ratelimit.Limiter
	if cfg.Security.RateLimit.Enabled {
		policy := ratelimit.DefaultPolicy()
		if cfg.Security.RateLimit.PolicyFile != "" {
			policy, err = ratelimit.LoadPolicy(cfg.Security.RateLimit.PolicyFile)
			if err != nil {
				return fmt.Errorf("loading rate limit policy: %w", err)
			}
			log.Info("rate limit policy loaded", "path", cfg.Security.RateLimit.PolicyFile)
		}
		limiter = ratelimit.NewLimiter(policy)
	} else {
		log.Warn("rate limiting is disabled")
	}

	// Webhook registry and dispatcher
	store, err := webhook.NewStore(cfg.Webhooks.RegistryPath)
	if err != nil {
		return fmt.Errorf("opening webhook registry: %w", err)
	}
	log.Info("webhook registry loaded",
		"path", cfg.Webhooks.RegistryPath,
		"webhooks", store.Count(),
	)

	dispatcher := webhook.NewDispatcher(store, cfg.Webhooks.GetDeliveryTimeout(), log)
	defer func() {
		log.Info("draining webhook deliveries")
		dispatcher.Close(cfg.Webhooks.GetShutdownGrace())
	}()

	// Runtime controller over the external control tooling
	adapter := runtime.NewCLIAdapter(log)
	controller := runtime.NewController(adapter, cfg.Runtime)
	log.Info("runtime controller initialised",
		"control_binary", cfg.Runtime.ControlBinary,
		"bridge_binary", cfg.Runtime.BridgeBinary,
		"container", cfg.Runtime.ContainerName,
	)

	// Metrics collector
	collector := metrics.NewCollector()

	// API server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Guard:      guard,
		Limiter:    limiter,
		Metrics:    collector,
		Webhooks:   store,
		Dispatcher: dispatcher,
		Runtime:    controller,
		Audit:      auditRepo,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("DroidGate stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DROIDGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DROIDGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
