package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/limits"
	"mercator-hq/tollgate/pkg/limits/scheduler"
	"mercator-hq/tollgate/pkg/limits/storage"
	"mercator-hq/tollgate/pkg/server"
	"mercator-hq/tollgate/pkg/telemetry/health"
	"mercator-hq/tollgate/pkg/telemetry/logging"
	"mercator-hq/tollgate/pkg/telemetry/metrics"
	"mercator-hq/tollgate/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Tollgate server",
	Long: `Start the Tollgate server with the specified configuration.

The server restores the newest persisted snapshot, creates the declared
buckets, starts the refill and snapshot schedules and serves the bucket API
until it receives SIGINT or SIGTERM. On shutdown the registry is persisted
once more.

Examples:
  # Start with default config
  tollgate run

  # Start with custom config
  tollgate run --config /etc/tollgate/config.yaml

  # Override listen address
  tollgate run --listen 0.0.0.0:8080

  # Validate config without starting server
  tollgate run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		if _, err := logging.ParseLevel(runFlags.logLevel); err != nil {
			return cli.NewConfigError("log-level", err.Error())
		}
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.WrapConfigError(err)
	}
	slog.SetDefault(logger)

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context(), logger)
	defer stop()

	fmt.Fprintf(out, "Tollgate v%s\n", Version)

	a, err := newApp(cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.close()

	if fileExists(cfgFile) {
		a.configPath = cfgFile
	}

	if err := a.run(ctx, out); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// app holds the running components of the server.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger

	tracer    *tracing.Tracer
	collector *metrics.Collector
	backend   storage.Backend
	manager   *limits.Manager
	scheduler *scheduler.Scheduler
	health    *health.Checker
	server    *server.Server
}

// newApp assembles the components described by cfg. Nothing is started.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracer = tracer

	a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
	a.collector.SetBuildInfo(Version, GitCommit)

	var limitsMetrics *limits.Metrics
	if a.collector.Enabled() {
		limitsMetrics = limits.NewMetrics(a.collector.Registry())
	}

	backend, err := openBackend(cfg.Storage)
	if err != nil {
		a.close()
		return nil, err
	}
	a.backend = backend

	a.manager = limits.NewManager(limits.Config{
		Logger:  logger,
		Metrics: limitsMetrics,
	})

	refillSchedule := cfg.Refill.Schedule
	if !cfg.Refill.Enabled {
		refillSchedule = scheduler.Off
	}
	a.scheduler = scheduler.New(a.manager, backend, scheduler.Config{
		RefillSchedule:   refillSchedule,
		SnapshotSchedule: cfg.Storage.SnapshotSchedule,
		Retention:        cfg.Storage.Retention,
		Logger:           logger,
		Tracer:           tracer,
		Metrics:          limitsMetrics,
	})

	a.health = health.New(cfg.Telemetry.Health.CheckTimeout)
	a.health.RegisterCheck("storage", backend.Ping)
	a.health.RegisterCheck("scheduler", func(ctx context.Context) error {
		if !a.scheduler.IsRunning() {
			return errors.New("scheduler is not running")
		}
		return nil
	})

	a.server = server.New(server.Options{
		Config:    cfg,
		Manager:   a.manager,
		Scheduler: a.scheduler,
		Health:    a.health,
		Metrics:   a.collector,
		Tracer:    tracer,
		Version:   versionInfo(),
		Logger:    logger,
	})

	return a, nil
}

// newWatcher is replaced in tests.
var newWatcher = config.NewWatcher

// run restores state, starts every component and blocks until ctx is done
// or a component fails. The registry is persisted before run returns when
// storage.snapshot_on_shutdown is set.
func (a *app) run(ctx context.Context, out io.Writer) error {
	if a.cfg.Storage.RestoreOnStart {
		snapshot, err := a.scheduler.Restore(ctx)
		switch {
		case err != nil:
			// A bad snapshot must not keep the service down; declared
			// buckets are still created below.
			a.logger.Error("failed to restore snapshot", "error", err)
		case snapshot != nil:
			fmt.Fprintf(out, "✓ Restored snapshot %s (%d buckets)\n", snapshot.ID, snapshot.BucketCount)
		}
	}

	if err := a.reconcile(a.cfg); err != nil {
		return err
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer a.scheduler.Stop()

	var watcher *config.Watcher
	if a.cfg.Reload.Enabled && a.configPath != "" {
		w, err := newWatcher(a.configPath, a.cfg.Reload.Debounce, a.logger)
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer w.Stop()
		watcher = w
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Start(gctx)
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Watch(gctx, a.reconcile)
		})
		fmt.Fprintf(out, "✓ Watching %s for changes\n", a.configPath)
	}

	a.health.SetReady(true, "")

	addr := a.cfg.Server.ListenAddress
	fmt.Fprintf(out, "✓ Server listening on %s\n", addr)
	if a.cfg.Telemetry.Health.Enabled {
		fmt.Fprintf(out, "✓ Health endpoint: http://%s%s\n", addr, a.cfg.Telemetry.Health.LivenessPath)
	}
	if a.collector.Enabled() {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, a.cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	err := g.Wait()

	a.health.SetReady(false, "shutting down")
	a.scheduler.Stop()

	if a.cfg.Storage.SnapshotOnShutdown {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if snapshot, snapErr := a.scheduler.SnapshotNow(shutdownCtx); snapErr != nil {
			a.logger.Error("failed to persist registry on shutdown", "error", snapErr)
		} else {
			a.logger.Info("registry persisted on shutdown",
				"snapshot_id", snapshot.ID,
				"buckets", snapshot.BucketCount,
			)
		}
	}

	return err
}

// reconcile applies the declared buckets and prices of cfg. It also
// serves as the reload callback; other sections need a restart.
func (a *app) reconcile(cfg *config.Config) error {
	specs, err := cfg.BucketSpecs()
	if err != nil {
		return err
	}

	result, err := a.manager.Reconcile(specs)
	if err != nil {
		return fmt.Errorf("failed to apply declared buckets: %w", err)
	}
	a.server.SetCosts(cfg.CostTable())

	a.logger.Info("declared buckets applied",
		"created", len(result.Created),
		"replaced", len(result.Replaced),
		"unchanged", len(result.Unchanged),
	)
	return nil
}

// close releases the tracer and storage.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shut down tracer", "error", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Error("failed to close storage", "error", err)
		}
	}
}
