package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conviaq_backend/internal/auth"
	"conviaq_backend/internal/bookings"
	bookingservice "conviaq_backend/internal/bookings/service"
	"conviaq_backend/internal/conversations"
	convservice "conviaq_backend/internal/conversations/service"
	"conviaq_backend/internal/email"
	"conviaq_backend/platform/events"
	"conviaq_backend/internal/evolution"
	apphttp "conviaq_backend/internal/http"
	"conviaq_backend/internal/http/router"
	"conviaq_backend/internal/leads"
	"conviaq_backend/internal/metrics"
	metricscache "conviaq_backend/internal/metrics/cache"
	metricsservice "conviaq_backend/internal/metrics/service"
	"conviaq_backend/internal/pipelines"
	"conviaq_backend/internal/scheduler"
	"conviaq_backend/internal/storage"
	"conviaq_backend/internal/tenants"
	"conviaq_backend/platform/config"
	"conviaq_backend/platform/db"
	"conviaq_backend/platform/logger"
	"conviaq_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Evolution WhatsApp gateway client (disabled without EVOLUTION_API_URL)
	gateway := evolution.NewClient(cfg, log)
	if gateway.Enabled() {
		log.Info("evolution gateway enabled", "url", cfg.GetEvolutionURL())
	} else {
		log.Warn("EVOLUTION_API_URL not configured; WhatsApp features disabled")
	}

	// Media storage for webhook attachments (disabled without MINIO_ENDPOINT)
	var media convservice.MediaStore
	if cfg.IsStorageEnabled() {
		storageSvc, err := storage.New(ctx, cfg, log)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		media = storageSvc
		log.Info("storage service initialized", "bucket", cfg.GetMediaBucket())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; media archiving disabled")
	}

	mailer := email.NewSender(cfg, log)

	// Booking reminder scheduler (disabled without REDIS_URL)
	reminderScheduler, closeScheduler := initReminderScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Dashboard cache (disabled without REDIS_URL)
	dashboardCache, closeCache := initDashboardCache(cfg, log)
	if closeCache != nil {
		defer closeCache()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cfg, val, log)
	tenantsModule := tenants.NewModule(pool, gateway, mailer, eventBus, val, log)
	pipelinesModule := pipelines.NewModule(pool, val, log)
	leadsModule := leads.NewModule(pool, eventBus, val, log)
	conversationsModule := conversations.NewModule(pool, gateway, media, leadsModule.Service(), eventBus, cfg, val, log)
	bookingsModule := bookings.NewModule(pool, reminderScheduler, leadsModule.Repository(), eventBus, val, log)
	metricsModule := metrics.NewModule(pool, dashboardCache, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			tenantsModule,
			pipelinesModule,
			leadsModule,
			conversationsModule,
			bookingsModule,
			metricsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (bookingservice.Scheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; booking reminders disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg, log)
	if err != nil || client == nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initDashboardCache(cfg config.CacheConfig, log *logger.Logger) (metricsservice.Cache, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; dashboard caching disabled")
		return nil, nil
	}

	cache, err := metricscache.New(cfg, log)
	if err != nil || cache == nil {
		log.Error("failed to initialize dashboard cache", "error", err)
		return nil, nil
	}

	return cache, func() {
		_ = cache.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
