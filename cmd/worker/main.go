package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/JonMunkholm/CRM/internal/application"
	"github.com/JonMunkholm/CRM/internal/config"
	"github.com/JonMunkholm/CRM/internal/jobs"
	"github.com/JonMunkholm/CRM/internal/logging"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Redis.Addr == "" {
		slog.Error("the worker needs REDIS_ADDR")
		os.Exit(1)
	}

	app, err := application.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := asynq.NewServeMux()
	jobs.RegisterHandlers(mux, jobs.NewHandler(app.Service))

	srv := jobs.NewServer(app.RedisOpt(), jobs.ServerOptions{Concurrency: cfg.Queue.Concurrency})
	slog.Info("worker starting", "redis", cfg.Redis.Addr, "concurrency", cfg.Queue.Concurrency)

	// Run blocks until SIGTERM or SIGINT, then waits for running tasks.
	if err := srv.Run(mux); err != nil {
		slog.Error("worker stopped", "error", err)
		app.Close()
		os.Exit(1)
	}
}
