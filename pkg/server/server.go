package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/policy/engine"
	"mercator-hq/sentinel/pkg/policy/repository"
	"mercator-hq/sentinel/pkg/policy/rule"
	"mercator-hq/sentinel/pkg/telemetry/health"
	"mercator-hq/sentinel/pkg/telemetry/metrics"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

// Evaluator decides actions. *engine.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(ctx context.Context, action, evalCtx map[string]any, taskRules []rule.Rule) engine.Decision
	Explain(ctx context.Context, action, evalCtx map[string]any, taskRules []rule.Rule) engine.Explanation
	Config() *engine.EngineConfig
}

// RuleStore exposes the active rule snapshot. *repository.Repository
// satisfies it.
type RuleStore interface {
	Rules() []rule.Rule
	Version() string
	Loaded() bool
	Reload(ctx context.Context) (*repository.LoadResult, error)
}

// Dependencies are the components the HTTP API serves.
type Dependencies struct {
	Evaluator Evaluator
	Rules     RuleStore

	// Metrics records request metrics and serves /metrics. Optional.
	Metrics *metrics.Collector

	// Tracer continues callers' traces and opens request spans. Optional.
	Tracer *tracing.Tracer

	// Checker serves readiness. When nil a checker with a single "rules"
	// check is created.
	Checker *health.Checker

	// Telemetry supplies the health and metrics paths.
	Telemetry config.TelemetryConfig

	// Version is reported by the version endpoint.
	Version health.VersionInfo

	// ExplainByDefault returns explanations unless ?explain=false is given.
	ExplainByDefault bool
}

// Server is the HTTP front end of the policy engine.
type Server struct {
	config     *config.ServerConfig
	deps       Dependencies
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server

	mu        sync.RWMutex
	isRunning bool
	addr      string
}

// New creates a server. The router is built once; Handler returns it for
// use with httptest.
func New(cfg *config.ServerConfig, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is nil")
	}
	if deps.Evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if deps.Rules == nil {
		return nil, errors.New("rule store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	applyPathDefaults(&deps.Telemetry)
	if deps.Checker == nil {
		deps.Checker = health.New(deps.Telemetry.Health.CheckTimeout)
		deps.Checker.RegisterCheck("rules", health.LoadedCheck(deps.Rules))
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		logger: logger.With("component", "server"),
	}
	s.handler = s.routes()
	return s, nil
}

func applyPathDefaults(tc *config.TelemetryConfig) {
	if tc.Health.LivenessPath == "" {
		tc.Health.LivenessPath = config.DefaultLivenessPath
	}
	if tc.Health.ReadinessPath == "" {
		tc.Health.ReadinessPath = config.DefaultReadinessPath
	}
	if tc.Health.VersionPath == "" {
		tc.Health.VersionPath = config.DefaultVersionPath
	}
	if tc.Metrics.Path == "" {
		tc.Metrics.Path = config.DefaultMetricsPath
	}
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server is already running")
	}
	s.isRunning = true
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server started", "address", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.setStopped()
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	httpServer := s.httpServer
	running := s.isRunning
	s.mu.RUnlock()
	if !running || httpServer == nil {
		return nil
	}

	s.logger.Info("Shutting down HTTP server", "timeout", s.config.ShutdownTimeout.String())

	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	err := httpServer.Shutdown(shutdownCtx)
	s.setStopped()
	if err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server is listening on, once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
