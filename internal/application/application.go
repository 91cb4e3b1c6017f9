// Package application assembles the service and its backends from the
// configuration. The server, the worker and the CLI all start here.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/CRM/internal/config"
	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/core/entities"
	"github.com/JonMunkholm/CRM/internal/database"
	"github.com/JonMunkholm/CRM/internal/events"
	"github.com/JonMunkholm/CRM/internal/history"
	"github.com/JonMunkholm/CRM/internal/jobs"
	"github.com/JonMunkholm/CRM/internal/service"
	"github.com/JonMunkholm/CRM/internal/store"
	"github.com/hibiken/asynq"
)

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config     *config.Config
	Registry   *core.Registry
	Repository store.Repository
	Service    *service.Service

	// Queue is nil unless background imports are enabled.
	Queue *jobs.Client

	closers []func() error
}

// New connects every configured backend. Optional backends fall back to
// in-process versions: history to memory when REDIS_ADDR is empty, events
// to a no-op when AMQP_URL is empty.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	reg, err := entities.NewRegistry(cfg.Import.SchemaFile)
	if err != nil {
		return fmt.Errorf("load entity schemas: %w", err)
	}
	a.Registry = reg
	slog.Info("entities registered", "count", reg.Len(), "names", reg.Names())

	repo, closeRepo, err := database.Open(ctx, cfg.Database, reg)
	if err != nil {
		return err
	}
	a.Repository = repo
	a.onClose(func() error { closeRepo(); return nil })

	hist, err := a.history(ctx)
	if err != nil {
		return err
	}

	pub, err := a.publisher()
	if err != nil {
		return err
	}

	svc, err := service.New(service.Deps{
		Registry:   reg,
		Repository: repo,
		History:    hist,
		Events:     pub,
		Limiter:    core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
	}, service.Options{
		MaxSourceSize: cfg.Import.MaxSourceSize,
		CommitTimeout: cfg.Import.CommitTimeout,
		SessionTTL:    cfg.Import.SessionTTL,
		HistoryLimit:  cfg.Import.HistoryLimit,
	})
	if err != nil {
		return err
	}
	a.Service = svc

	if cfg.Queue.Enabled {
		a.Queue = jobs.NewClient(a.RedisOpt(), jobs.ClientOptions{
			MaxRetry: cfg.Queue.MaxRetry,
			Timeout:  cfg.Queue.TaskTimeout,
		})
		a.onClose(a.Queue.Close)
		slog.Info("background imports enabled", "redis", cfg.Redis.Addr)
	}
	return nil
}

func (a *App) history(ctx context.Context) (history.Store, error) {
	cfg := a.Config
	if cfg.Redis.Addr == "" {
		return history.NewMemory(cfg.Import.HistoryLimit), nil
	}

	opts := history.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Limit:    cfg.Import.HistoryLimit,
	}
	client, err := history.NewRedisClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	a.onClose(client.Close)
	slog.Info("import history in redis", "addr", cfg.Redis.Addr)
	return history.NewRedis(client, opts), nil
}

func (a *App) publisher() (events.Publisher, error) {
	cfg := a.Config
	if cfg.Broker.URL == "" {
		return events.Noop{}, nil
	}
	pub, err := events.DialAMQP(cfg.Broker.URL, cfg.Broker.Exchange)
	if err != nil {
		return nil, err
	}
	a.onClose(pub.Close)
	slog.Info("publishing import events", "exchange", cfg.Broker.Exchange)
	return pub, nil
}

// RedisOpt is the asynq connection for the queue.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases every backend, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
