package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	bookingrepo "conviaq_backend/internal/bookings/repository"
	convrepo "conviaq_backend/internal/conversations/repository"
	"conviaq_backend/internal/evolution"
	leadrepo "conviaq_backend/internal/leads/repository"
	"conviaq_backend/internal/scheduler"
	"conviaq_backend/platform/config"
	"conviaq_backend/platform/db"
	"conviaq_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.AsynqQueueName)

	if cfg.RedisURL == "" {
		panic("REDIS_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	gateway := evolution.NewClient(cfg, log)
	if !gateway.Enabled() {
		log.Warn("EVOLUTION_API_URL not configured; reminders will be skipped")
	}

	worker, err := scheduler.NewWorker(
		cfg,
		bookingrepo.New(pool, log),
		convrepo.New(pool, log),
		gateway,
		leadrepo.New(pool, log),
		log,
	)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	workerErr := make(chan error, 1)
	go func() {
		log.Info("worker consuming", "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)
		workerErr <- worker.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping worker")
		worker.Shutdown()
	case err := <-workerErr:
		if err != nil {
			log.Error("worker error", "error", err)
			panic("worker error: " + err.Error())
		}
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
