// Command worker consumes background tasks (outgoing email) from the Redis task queue.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"forum/internal/bootstrap"
	"forum/internal/config"
	"forum/internal/database"
	"forum/internal/mailer"
	"forum/internal/middleware"
	"forum/internal/notifications"
	"forum/internal/tasks"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.Logger = middleware.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(middleware.Logger)

	db, rdb, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = database.Close(db) }()
	if rdb == nil {
		log.Fatal("worker requires Redis; set REDIS_URL")
	}
	defer func() { _ = rdb.Close() }()

	sender, err := mailer.New(cfg)
	if err != nil {
		log.Fatalf("Failed to configure mail transport: %v", err)
	}
	mux := tasks.NewMux()
	notifications.RegisterHandlers(mux, sender)

	queue := tasks.NewRedisQueue(rdb, cfg.TaskQueueName, cfg.TaskMaxRetries, mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	middleware.Logger.Info("worker started",
		slog.String("queue", queue.Name()),
		slog.Int("workers", cfg.TaskWorkers),
	)
	queue.Start(ctx, cfg.TaskWorkers)
	<-ctx.Done()

	middleware.Logger.Info("worker draining")
	queue.Wait()
}
