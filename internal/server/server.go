// ABOUTME: HTTP server exposing the settings store and proxying the research workflow
// ABOUTME: Handles route registration, TCP or tailnet listeners, and graceful shutdown

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/mlra/internal/auth"
	"github.com/2389/mlra/internal/backend"
	"github.com/2389/mlra/internal/config"
	"github.com/2389/mlra/internal/dedupe"
	"github.com/2389/mlra/internal/mcp"
	"github.com/2389/mlra/internal/metrics"
	"github.com/2389/mlra/internal/settings"
	"github.com/2389/mlra/internal/store"
)

// Backend is the subset of the research backend client the API proxies to.
type Backend interface {
	IngestFile(ctx context.Context, up backend.Upload) (*backend.IngestResponse, error)
	IngestURL(ctx context.Context, rawURL, title string) (*backend.IngestResponse, string, error)
	ExperimentResult(ctx context.Context, taskID string) (*backend.Result, error)
}

// Deps are the collaborators a Server is built from. Dedupe, Verifier and
// Metrics are optional.
type Deps struct {
	Settings *settings.Store
	Store    store.Store
	Backend  Backend
	Dedupe   *dedupe.Cache
	Verifier auth.TokenVerifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Version  string // reported to MCP clients
}

// Server serves the mlra HTTP API.
type Server struct {
	config      *config.Config
	settings    *settings.Store
	store       store.Store
	backend     Backend
	dedupe      *dedupe.Cache
	verifier    auth.TokenVerifier
	metrics     *metrics.Metrics
	mcp         *mcp.Server
	logger      *slog.Logger
	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	now         func() time.Time
}

// New wires the routes. The Server owns none of its dependencies except the
// listeners it creates in Run.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Settings == nil || deps.Store == nil || deps.Backend == nil {
		return nil, errors.New("server: settings, store and backend are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		settings: deps.Settings,
		store:    deps.Store,
		backend:  deps.Backend,
		dedupe:   deps.Dedupe,
		verifier: deps.Verifier,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "server"),
		now:      time.Now,
	}

	if cfg.MCP.Enabled {
		mcpServer, err := mcp.NewServer(mcp.Config{
			Tools:         s.mcpTools(),
			Logger:        logger,
			TokenVerifier: deps.Verifier,
			Version:       deps.Version,
		})
		if err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		s.mcp = mcpServer
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.handler = mux
	if s.metrics != nil {
		s.handler = s.metrics.Middleware(mux)
	}

	readHeaderTimeout := cfg.Server.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 10 * time.Second
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("GET /api/settings/defaults", s.handleGetDefaults)
	mux.HandleFunc("GET /api/settings/events", s.handleSettingsEvents)
	mux.Handle("PUT /api/settings", s.protect(s.handleReplaceSettings))
	mux.Handle("PATCH /api/settings", s.protect(s.handlePatchSettings))
	mux.Handle("POST /api/settings/reset", s.protect(s.handleResetSettings))

	mux.Handle("POST /api/papers", s.protect(s.handleIngestPaper))
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)

	mux.HandleFunc("GET /api/experiments/{task_id}/result", s.handleExperimentResult)
	mux.HandleFunc("GET /api/reports/{task_id}", s.handleReport)
	mux.Handle("POST /api/reports/{task_id}/artifact", s.protect(s.handleSaveReport))

	if s.mcp != nil {
		s.mcp.RegisterRoutes(mux)
	}

	if s.metrics != nil && s.config.Metrics.Enabled {
		mux.Handle("GET "+s.config.Metrics.Path, s.metrics.Handler())
	}
}

// protect requires a bearer token on mutating routes when a verifier is configured.
func (s *Server) protect(h http.HandlerFunc) http.Handler {
	if s.verifier == nil {
		return h
	}
	return auth.HTTPAuthMiddleware(s.verifier)(h)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Run starts serving and blocks until ctx is canceled or the server fails.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The original context is already canceled here.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// Shutdown stops the HTTP server, closes settings event streams and leaves
// the tailnet. The store is closed by whoever opened it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Event streams would otherwise hold Shutdown open until ctx expires.
	s.settings.Close()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}
	if s.tsnetServer != nil {
		if err := s.tsnetServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tailscale shutdown: %w", err))
		}
	}
	if s.dedupe != nil {
		s.dedupe.Close()
	}
	return errors.Join(errs...)
}

func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "mlra", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.Funnel {
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = s.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	}

	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

func (s *Server) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}
