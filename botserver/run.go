// Package botserver wires the purge robot service: store, clients, HTTP API
// and the tick scheduler.
package botserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/api"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/config"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/factory"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/health"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/logger"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/purge"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/scheduler"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/services"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
)

// dependencies are the long-lived components shared by the API and the
// scheduler.
type dependencies struct {
	store      store.Store
	closeStore factory.CloseFunc
	blobs      factory.BlobStore
	orch       *purge.Orchestrator
	robots     *services.RobotService
	reports    *services.ReportService
}

// Run starts the bot server and blocks until shutdown or error.
func Run() error {
	log := logger.New("bot-server")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("schedule", cfg.Schedule).
		Str("organization_id", cfg.OrganizationID).
		Msg("Bot server starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deps.closeStore(closeCtx); err != nil {
			log.Warn().Err(err).Msg("Store close failed")
		}
	}()

	svcHealth := startHealthCheckers(ctx, cfg, log, deps)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Strs("unhealthy", svcHealth.Unhealthy()).Msg("startup health check failed")
		return err
	}

	router := api.NewRouter(api.Deps{
		Robots:    deps.robots,
		Reports:   deps.reports,
		IsHealthy: svcHealth.IsHealthy,
		Log:       log,
	})
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	schedDone, err := startScheduler(ctx, cfg, deps.orch, log)
	if err != nil {
		return err
	}

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		select {
		case <-schedDone:
		case <-ctxShutdown.Done():
			log.Warn().Msg("Tick still running at shutdown deadline")
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		stop()
		<-schedDone
		return err
	}
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*dependencies, error) {
	st, closeStore, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}
	blobs, err := factory.NewBlobStore(ctx, cfg, log)
	if err != nil {
		_ = closeStore(context.Background())
		log.Error().Stack().Err(err).Msg("Object store unavailable")
		return nil, err
	}
	notifier, err := factory.NewNotifier(cfg, log)
	if err != nil {
		_ = closeStore(context.Background())
		log.Error().Stack().Err(err).Msg("Notifier unavailable")
		return nil, err
	}
	dir := factory.NewDirectoryClient(cfg, log)

	orch := purge.NewOrchestrator(st, dir, dir, notifier, cfg.OrchestratorConfig(), log)
	return &dependencies{
		store:      st,
		closeStore: closeStore,
		blobs:      blobs,
		orch:       orch,
		robots:     services.NewRobotService(st, blobs, orch, log),
		reports:    services.NewReportService(st, notifier),
	}, nil
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, deps *dependencies) *health.ServiceHealthChecker {
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second
	probeTimeout := 2 * time.Second

	storeChecker := store.NewStoreHealthChecker(deps.store, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	blobChecker := health.NewPingChecker("object_store", deps.blobs, log, probeTimeout)
	go blobChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker, blobChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

// startScheduler runs the tick loop until ctx ends. The returned channel
// closes once the loop, including any in-flight tick, has stopped.
func startScheduler(ctx context.Context, cfg *config.Config, orch *purge.Orchestrator, log zerolog.Logger) (<-chan struct{}, error) {
	schedule, err := scheduler.Parse(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	sched := scheduler.New(schedule, orch.Tick, scheduler.Config{RunOnStart: cfg.RunOnStart}, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Scheduler stopped")
		}
	}()
	return done, nil
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// On-demand robot runs hold the connection for a full pass.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
