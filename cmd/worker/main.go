package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"courtside/internal/config"
	"courtside/internal/logging"
	"courtside/internal/mailer"
	"courtside/internal/queue"
	"courtside/internal/store"
)

// Worker consumes queued reminder emails and hands them to the mail backend.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend != "redis" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis, the in-memory queue is drained by the API process")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet, consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	sender, err := mailer.New(cfg.MailBackend, cfg.ResendAPIKey, cfg.MailFrom, cfg.MailFunctionURL, logger)
	if err != nil {
		logger.Fatal("mail backend", zap.Error(err))
	}

	// Check the mail function on startup
	if fn, ok := sender.(*mailer.FunctionSender); ok {
		if err := fn.Health(ctx); err != nil {
			logger.Warn("mail function not available, deliveries will fail until it is", zap.Error(err))
		} else {
			logger.Info("mail function connected")
		}
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	logger.Info("worker started, waiting for jobs", zap.String("queue", cfg.QueueKey), zap.String("mail", cfg.MailBackend))
	if err := mailer.Run(ctx, q, sender, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", zap.Error(err))
		return
	}
	logger.Info("worker stopped")
}
