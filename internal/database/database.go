// Package database opens the record repository selected by configuration.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/CRM/internal/config"
	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/store"
	"github.com/JonMunkholm/CRM/internal/store/memory"
	"github.com/JonMunkholm/CRM/internal/store/postgres"
	"github.com/JonMunkholm/CRM/internal/store/sqlstore"
)

// Open connects the repository for cfg.Driver. The returned close function
// is never nil. The memory store is seeded with sample records when
// cfg.Seed is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, reg *core.Registry) (store.Repository, func(), error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverMemory, "":
		s := memory.New()
		if cfg.Seed {
			if err := memory.Seed(ctx, s, reg); err != nil {
				return nil, nil, fmt.Errorf("seed memory store: %w", err)
			}
		}
		slog.Info("using in-memory store", "seeded", cfg.Seed)
		return s, func() {}, nil

	case config.DriverPostgres:
		s, err := postgres.Connect(ctx, cfg.URL, postgres.PoolConfig{
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
			MaxConnIdleTime: cfg.MaxConnIdleTime,
		})
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to postgres", "max_conns", cfg.MaxConns)
		return s, s.Close, nil

	case config.DriverMySQL:
		s, err := sqlstore.OpenMySQL(ctx, cfg.URL, sqlOptions(cfg))
		if err != nil {
			return nil, nil, err
		}
		slog.Info("connected to mysql", "max_conns", cfg.MaxConns)
		return s, func() { _ = s.Close() }, nil

	case config.DriverSQLite:
		s, err := sqlstore.OpenSQLite(ctx, cfg.URL, sqlOptions(cfg))
		if err != nil {
			return nil, nil, err
		}
		slog.Info("opened sqlite database", "path", cfg.URL)
		return s, func() { _ = s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func sqlOptions(cfg config.DatabaseConfig) sqlstore.Options {
	return sqlstore.Options{
		MaxOpenConns:    cfg.MaxConns,
		MaxIdleConns:    cfg.MinConns,
		ConnMaxLifetime: cfg.MaxConnLifetime,
	}
}
