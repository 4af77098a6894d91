package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/couchuser/pkg/api"
	"github.com/platinummonkey/couchuser/pkg/audit"
	"github.com/platinummonkey/couchuser/pkg/config"
	"github.com/platinummonkey/couchuser/pkg/middleware"
	"github.com/platinummonkey/couchuser/pkg/observability"
	"github.com/platinummonkey/couchuser/pkg/sso"
	"github.com/platinummonkey/couchuser/pkg/storage/cache"
	"github.com/platinummonkey/couchuser/pkg/storage/postgres"
	"github.com/platinummonkey/couchuser/pkg/users"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "couchuser: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLoggerWithFormat(cfg.Observability.LogLevel, os.Stdout, cfg.Observability.LogFormat).
		WithField("service", "couchuser")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("couchuser exited with error")
		os.Exit(1)
	}
	logger.Info("couchuser stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("init opentelemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.ShutdownOTel(shutdownCtx, otelProviders, logger); err != nil {
			logger.WithError(err).Warn("opentelemetry shutdown failed")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	db, err := postgres.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}
	defer db.Close()
	logger.WithField("driver", cfg.Storage.Driver).Info("durable store connected")

	cacheClient, err := cache.NewClient(cfg.Storage, metrics)
	if err != nil {
		return fmt.Errorf("open cache store: %w", err)
	}
	defer cacheClient.Close()
	logger.Info("cache store connected")

	authority, err := sso.NewProviderFactory(logger, metrics).CreateProvider(ctx, &cfg.Auth.Authority)
	if err != nil {
		return fmt.Errorf("create identity authority: %w", err)
	}
	defer authority.Close()
	logger.WithField("authority", string(authority.GetType())).Info("identity authority ready")

	service := users.NewService(postgres.NewUserStore(db, metrics), cacheClient, authority, users.Options{
		LoginExpire:  cfg.Auth.LoginExpire,
		WriteTimeout: cfg.Auth.StoreWriteTimeout,
		Logger:       logger,
		Metrics:      metrics,
	})

	apiOpts := api.ServerOptions{
		Logger:       logger,
		Metrics:      metrics,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if cfg.Auth.LoginRateLimit > 0 {
		apiOpts.LoginRateLimiter = middleware.NewDistributedRateLimiter(cacheClient.Redis(), &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Auth.LoginRateLimit,
			WindowDuration:    cfg.Auth.LoginRateWindow,
		}, cfg.Storage.CachePrefix+"ratelimit")
		logger.WithField("limit", cfg.Auth.LoginRateLimit).WithField("window", cfg.Auth.LoginRateWindow.String()).Info("login rate limiting enabled")
	}

	if cfg.Audit.Enabled {
		auditLogger, err := newAuditLogger(cfg, db, logger, metrics)
		if err != nil {
			return err
		}
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logger.WithError(err).Warn("audit shutdown failed")
			}
		}()
		apiOpts.Audit = auditLogger
		logger.Info("login audit trail enabled")
	}

	// in-flight requests keep their context through shutdown
	baseCtx := observability.WithLogger(context.Background(), logger)
	baseContext := func(net.Listener) context.Context { return baseCtx }

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewServer(service, apiOpts),
		BaseContext:  baseContext,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, cacheClient.Redis(), version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		BaseContext:       baseContext,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("starting API server")
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("starting health server")
		return serve(healthServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// stop taking logins before the probes go away
		apiErr := apiServer.Shutdown(shutdownCtx)
		healthErr := healthServer.Shutdown(shutdownCtx)
		return errors.Join(apiErr, healthErr)
	})

	return g.Wait()
}

func newAuditLogger(cfg *config.Config, db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) (*audit.AsyncLogger, error) {
	sinks := audit.SinkConfig{Database: cfg.Audit.Database}
	if cfg.Audit.Dir != "" {
		sinks.File = &audit.FileLoggerConfig{
			Dir:      cfg.Audit.Dir,
			MaxSize:  cfg.Audit.MaxSize,
			MaxFiles: cfg.Audit.MaxFiles,
		}
	}
	sink, err := audit.OpenSinks(sinks, db, metrics)
	if err != nil {
		return nil, err
	}

	return audit.NewAsyncLogger(sink, audit.AsyncOptions{
		Workers:   cfg.Audit.Workers,
		QueueSize: cfg.Audit.QueueSize,
		Timeout:   cfg.Audit.Timeout,
	}, logger, metrics), nil
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", server.Addr, err)
	}
	return nil
}
