package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/scp-platform/supplier-console/internal/api"
	"github.com/scp-platform/supplier-console/internal/events"
	"github.com/scp-platform/supplier-console/internal/jobs"
	"github.com/scp-platform/supplier-console/internal/rate"
	internalsecrets "github.com/scp-platform/supplier-console/internal/secrets"
	"github.com/scp-platform/supplier-console/internal/workspace"
	"github.com/scp-platform/supplier-console/pkg/cache"
	"github.com/scp-platform/supplier-console/pkg/config"
	"github.com/scp-platform/supplier-console/pkg/logger"
	"github.com/scp-platform/supplier-console/pkg/model"
	"github.com/scp-platform/supplier-console/pkg/secrets"
	"github.com/scp-platform/supplier-console/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [supplier-console]...")

	// --- Deployment settings from AWS Secrets Manager (optional) ---
	if cfg.ConsoleSecretID != "" {
		awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		resolver := internalsecrets.NewResolver(
			logger.Named("secrets"),
			cfg.Env,
			awsProvider,
			cache.New[internalsecrets.Settings](cfg.SecretsCacheTTL),
		)
		settings, err := resolver.Resolve(ctx, cfg.ConsoleSecretID)
		if err != nil {
			logg.Fatalw("failed to resolve console settings", "secret", cfg.ConsoleSecretID, "error", err)
		}
		settings.Apply(cfg)
	}

	loginRole, err := model.ParseRole(cfg.LoginRole)
	if err != nil {
		logg.Fatalw("invalid LOGIN_ROLE", "role", cfg.LoginRole, "error", err)
	}

	// --- Redis (credential stores) ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logg.Fatalw("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
	}

	checks := []api.HealthCheck{{
		Name:  "redis",
		Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}}

	// --- Session event sinks ---
	var sinks []events.Sink
	var closers []func() error
	var pruner *jobs.AuditPruner

	switch cfg.EventsTransport {
	case "nats":
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		pub, err := events.NewNATSPublisher(nc, cfg.EventsSubject, cfg.EventsStream, cfg.ServiceName, logger.Named("events"))
		if err != nil {
			logg.Fatalw("failed to init NATS publisher", "error", err)
		}
		sinks = append(sinks, pub)
		closers = append(closers, pub.Close)
		checks = append(checks, api.HealthCheck{
			Name: "nats",
			Check: func(context.Context) error {
				if nc.Status() != nats.CONNECTED {
					return fmt.Errorf("nats %s", nc.Status())
				}
				return nil
			},
		})
	case "rabbitmq", "amqp":
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsQueue, logger.Named("events"))
		if err != nil {
			logg.Fatalw("failed to init AMQP publisher", "error", err)
		}
		sinks = append(sinks, pub)
		closers = append(closers, pub.Close)
	case "", "none":
	default:
		logg.Fatalw("unknown EVENTS_TRANSPORT", "transport", cfg.EventsTransport)
	}

	if cfg.AuditDatabaseURL != "" {
		logg.Info("connection to DSN: ", utils.MaskDSN(cfg.AuditDatabaseURL))
		pool, err := pgxpool.New(ctx, cfg.AuditDatabaseURL)
		if err != nil {
			logg.Fatalw("failed to open audit database", "error", err)
		}
		audit := events.NewAuditWriter(pool, logger.Named("audit"), cfg.ServiceName)
		if err := audit.EnsureSchema(ctx); err != nil {
			logg.Fatalw("failed to prepare audit table", "error", err)
		}
		sinks = append(sinks, audit)
		closers = append(closers, func() error { pool.Close(); return nil })

		if cfg.AuditRetention > 0 {
			pruner = jobs.NewAuditPruner(logger.Named("audit"), pool, cfg.AuditPruneEvery, cfg.AuditRetention)
			go pruner.Start(ctx)
		}
		checks = append(checks, api.HealthCheck{Name: "audit_db", Check: pool.Ping})
	}

	recorder := events.NewRecorder(logger.Named("events"), sinks...).WithTimeout(cfg.EventsTimeout)

	// --- Rate limiter (per workspace) ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.UpstreamRPS,
		Burst:             cfg.UpstreamBurst,
	})

	// --- Workspaces ---
	registry := workspace.NewRegistry(workspace.Config{
		APIBaseURL:     cfg.APIBaseURL,
		HTTP:           &http.Client{Timeout: cfg.UpstreamTimeout},
		Redis:          rdb,
		SessionTTL:     cfg.SessionTTL,
		RefreshTimeout: cfg.RefreshTimeout,
		PollInterval:   cfg.GuardPollInterval,
		LoginRole:      loginRole,
		Limiter:        rateMgr,
		Recorder:       recorder,
		Logger:         logger.Named("workspace"),
	}, cfg.WorkspaceTTL)
	stopCleaner := make(chan struct{})
	go registry.StartCleaner(cfg.WorkspaceSweep, stopCleaner)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	consoleHandler := api.NewConsoleHandler(
		logger.Named("api"),
		registry,
		api.CookieConfig{
			Name:   cfg.SessionCookie,
			Secure: cfg.CookieSecure,
			MaxAge: cfg.SessionTTL,
		},
		cfg.WatchTimeout,
	)
	api.RegisterRoutes(app, consoleHandler, logger.Named("access"), checks...)

	go func() {
		logg.Infof("HTTP console listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[supplier-console] running",
		"env", cfg.Env,
		"api", cfg.APIBaseURL,
		"login_role", loginRole,
		"event_sinks", recorder.Sinks())

	<-ctx.Done()
	logg.Info("shutting down [supplier-console]...")

	close(stopCleaner)
	if pruner != nil {
		pruner.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logg.Warnw("events.close_failed", "error", err)
		}
	}
	if err := rdb.Close(); err != nil {
		logg.Warnw("redis.close_failed", "error", err)
	}
}
