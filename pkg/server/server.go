package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/cost"
	"mercator-hq/tollgate/pkg/limits/scheduler"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

// Options carries the components served by a Server.
// Only Config and Manager are required.
type Options struct {
	Config  *config.Config
	Manager *limits.Manager

	// Scheduler serves the snapshot endpoints. Without it they return 503.
	Scheduler *scheduler.Scheduler

	// Health serves the liveness and readiness probes.
	Health *health.Checker

	// Metrics serves /metrics and records request metrics.
	Metrics *metrics.Collector

	Tracer *tracing.Tracer

	// Estimator estimates usage of consume requests carrying messages.
	// Defaults to a SimpleEstimator with the configured ratio.
	Estimator cost.Estimator

	Version health.VersionInfo
	Logger  *slog.Logger
}

// Server is the Tollgate admin and enforcement HTTP server.
type Server struct {
	config    *config.ServerConfig
	telemetry *config.TelemetryConfig

	manager   *limits.Manager
	scheduler *scheduler.Scheduler
	health    *health.Checker
	metrics   *metrics.Collector
	tracer    *tracing.Tracer
	estimator cost.Estimator
	costs     atomic.Pointer[cost.Table]
	version   health.VersionInfo
	logger    *slog.Logger

	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. It panics if opts.Config or opts.Manager is nil.
func New(opts Options) *Server {
	if opts.Config == nil || opts.Manager == nil {
		panic("server: Config and Manager are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if opts.Health == nil {
		opts.Health = health.New(opts.Config.Telemetry.Health.CheckTimeout)
		opts.Health.SetReady(true, "")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector(&opts.Config.Telemetry.Metrics, nil)
	}
	if opts.Estimator == nil {
		opts.Estimator = cost.NewSimpleEstimator(opts.Config.Cost.CharsPerToken)
	}

	s := &Server{
		config:    &opts.Config.Server,
		telemetry: &opts.Config.Telemetry,
		manager:   opts.Manager,
		scheduler: opts.Scheduler,
		health:    opts.Health,
		metrics:   opts.Metrics,
		tracer:    opts.Tracer,
		estimator: opts.Estimator,
		version:   opts.Version,
		logger:    opts.Logger.With("component", "server"),
	}
	s.SetCosts(opts.Config.CostTable())
	s.handler = s.setupRoutes()

	return s
}

// SetCosts replaces the per-model pricing used by consume requests.
// It is safe to call while the server is running.
func (s *Server) SetCosts(table cost.Table) {
	s.costs.Store(&table)
}

func (s *Server) costTable() cost.Table {
	return *s.costs.Load()
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "address", listener.Addr().String())

		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		s.setRunning(false)
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting up to the configured
// shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		httpServer := s.httpServer
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.setRunning(false)
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

func (s *Server) setRunning(running bool) {
	s.mu.Lock()
	s.isRunning = running
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
