package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/edushield/edushield/pkg/api"
	"github.com/edushield/edushield/pkg/audit"
	"github.com/edushield/edushield/pkg/auth"
	"github.com/edushield/edushield/pkg/config"
	"github.com/edushield/edushield/pkg/observability"
	"github.com/edushield/edushield/pkg/rbac"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", version).Info("starting edushield")

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("fatal error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	// Postgres
	db, err := openPostgres(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("connected to postgres")

	// Redis; a failed ping degrades session caching, it does not stop
	// the server
	redisClient := redis.NewClient(&redis.Options{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		MaxRetries: cfg.Redis.MaxRetries,
		PoolSize:   cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, session cache disabled")
		redisClient = nil
	} else {
		logger.Info("connected to redis")
	}

	// Schema and seed data
	rbacStore := rbac.NewStore(db)
	if err := rbac.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}
	if err := rbac.SeedCatalog(ctx, rbacStore); err != nil {
		return fmt.Errorf("catalog seeding failed: %w", err)
	}
	if err := rbac.SeedSystemRoles(ctx, rbacStore, logger); err != nil {
		return fmt.Errorf("system role seeding failed: %w", err)
	}

	// Audit sinks: structured log always, database when reachable
	dbAudit := audit.NewDBLogger(db)
	if err := dbAudit.Migrate(ctx); err != nil {
		return fmt.Errorf("audit table migration failed: %w", err)
	}
	auditLogger := audit.NewMultiLogger(audit.NewSlogLogger(logger), dbAudit)
	defer auditLogger.Close()

	// Metrics
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(nil)
	}

	// Core services
	var permCache *rbac.PermissionCache
	if cfg.Auth.PermissionCache.Enabled {
		permCache = rbac.NewPermissionCache(cfg.Auth.PermissionCache.Size, cfg.Auth.PermissionCache.TTL, metrics)
	}
	registry := rbac.NewRegistry(rbacStore, permCache, logger, metrics)
	guard := rbac.NewGuard(registry, metrics)
	authService := auth.NewService(
		auth.NewStore(db, redisClient),
		cfg.Auth.SessionTTL,
		cfg.Auth.BcryptCost,
		logger,
		metrics,
	)

	server := api.NewServer(api.Dependencies{
		ServerConfig: cfg.Server,
		Logger:       logger,
		Metrics:      metrics,
		AuthService:  authService,
		Registry:     registry,
		Guard:        guard,
		AuditLogger:  auditLogger,
	})

	// Background jobs
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Auth.SweepSchedule, func() {
		authService.SweepExpiredSessions(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", cfg.Auth.SweepSchedule, err)
	}
	if metrics != nil {
		if _, err := scheduler.AddFunc("@every 30s", func() {
			metrics.CollectDBStats(db)
		}); err != nil {
			return fmt.Errorf("failed to schedule db stats collection: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Health and metrics on a separate port for probes
	healthChecker := observability.NewHealthChecker(db, redisClient, version)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if metrics != nil {
		healthMux.Handle("/metrics", metrics.Handler())
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}
	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		scheduler.Stop()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return redisClient.Close()
		})
	}

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
			os.Exit(1)
		}
	}()

	return shutdown.WaitForShutdown()
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
