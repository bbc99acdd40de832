// ABOUTME: Gateway orchestrator that wires storage, credits, providers, streaming
// ABOUTME: Manages the HTTP server, WebSocket endpoint, and health endpoints lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/brainwave/chat-gateway/internal/auth"
	"github.com/brainwave/chat-gateway/internal/config"
	"github.com/brainwave/chat-gateway/internal/credit"
	"github.com/brainwave/chat-gateway/internal/provider"
	"github.com/brainwave/chat-gateway/internal/room"
	"github.com/brainwave/chat-gateway/internal/stream"
	"github.com/brainwave/chat-gateway/internal/store"
)

// Gateway orchestrates the chat-gateway server components.
// It manages the HTTP server carrying the WebSocket endpoint, health checks
// and optional metrics.
type Gateway struct {
	config     *config.Config
	store      store.Store
	ledger     *credit.Ledger
	registry   *provider.Registry
	rooms      *room.Registry
	streams    *stream.Coordinator
	service    *Service
	httpServer *http.Server
	logger     *slog.Logger

	// serverID identifies this gateway instance
	serverID string
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("GATEWAY_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// buildRegistry creates the provider backend registry from config.
// Each configured provider code gets an HTTP streaming backend.
func buildRegistry(cfg *config.Config, logger *slog.Logger) *provider.Registry {
	registry := provider.NewRegistry()
	for code, pc := range cfg.Providers {
		backend := provider.NewHTTPBackend(pc.URL, pc.Model, logger.With("component", "backend", "provider_code", code))
		backend.SetAPIKey(pc.APIKey)
		registry.Register(provider.Code(code), backend)
		logger.Info("provider backend registered", "provider_code", code, "url", pc.URL, "model", pc.Model)
	}
	return registry
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	metrics := NewMetrics(promRegistry)

	rooms := room.NewRegistry(logger)
	streams := stream.NewCoordinator(s, rooms, cfg.Streaming.Watchdog, logger)
	costs := credit.NewCostTable(cfg.Credits.Costs)
	ledger := credit.NewLedger(s, costs, cfg.Credits.DefaultLimit, logger)
	registry := buildRegistry(cfg, logger)

	gw := &Gateway{
		config:   cfg,
		store:    s,
		ledger:   ledger,
		registry: registry,
		rooms:    rooms,
		streams:  streams,
		logger:   logger.With("component", "gateway"),
		serverID: generateServerID(),
	}

	gw.service = NewService(s, ledger, registry, streams, rooms, cfg.Streaming.TypingDebounce, metrics, logger)

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	wsHandler := NewWSHandler(gw.service, rooms, verifier, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	mux.Handle("/ws", wsHandler)

	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
		logger.Info("metrics endpoint enabled", "path", cfg.Metrics.Path)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "server_id", g.serverID)
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return eg.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the store answers queries.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if _, err := g.store.ListChats(ctx, "readiness-probe", 1); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = fmt.Fprintf(w, "store not ready: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// generateServerID creates a unique identifier for this gateway instance.
func generateServerID() string {
	return fmt.Sprintf("chat-gateway-%d", time.Now().UnixNano()%1000000)
}
