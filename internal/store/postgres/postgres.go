// Package postgres stores CRM records in a single JSONB table through a
// pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/CRM/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS crm_records (
	entity     TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	fields     JSONB       NOT NULL,
	import_id  TEXT        NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity, id)
)`

const upsertSQL = `
INSERT INTO crm_records (entity, id, fields, import_id, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (entity, id) DO UPDATE
SET fields = EXCLUDED.fields, import_id = EXCLUDED.import_id, updated_at = EXCLUDED.updated_at`

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store implements store.Repository on Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool for url, pings it and creates the records table.
func Connect(ctx context.Context, url string, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the records table if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create crm_records: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) List(ctx context.Context, entity string) ([]store.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity, id, fields, import_id, updated_at FROM crm_records WHERE entity = $1 ORDER BY updated_at, id`,
		entity)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetByID(ctx context.Context, entity, id string) (store.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT entity, id, fields, import_id, updated_at FROM crm_records WHERE entity = $1 AND id = $2`,
		entity, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Record{}, fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
	}
	return rec, err
}

// Upsert writes records in one transaction. Each row runs under a savepoint;
// the first row the database refuses ends the batch and the rows before it
// are committed.
func (s *Store) Upsert(ctx context.Context, records []store.Record) (int, error) {
	if err := store.CheckBatch(records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	persisted := 0
	for i, r := range records {
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return 0, fmt.Errorf("record %d: marshal fields: %w", i+1, err)
		}

		if _, err := tx.Exec(ctx, "SAVEPOINT sp_row"); err != nil {
			return 0, fmt.Errorf("create savepoint: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertSQL, r.Entity, r.ID, fields, r.ImportID); err != nil {
			_, _ = tx.Exec(ctx, "ROLLBACK TO SAVEPOINT sp_row")
			slog.WarnContext(ctx, "upsert stopped at refused row",
				"entity", r.Entity,
				"row", i+1,
				"error", err,
			)
			break
		}
		_, _ = tx.Exec(ctx, "RELEASE SAVEPOINT sp_row")
		persisted++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return persisted, nil
}

func (s *Store) Delete(ctx context.Context, entity, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM crm_records WHERE entity = $1 AND id = $2`, entity, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", entity, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
	}
	return nil
}

func scanRecord(row pgx.Row) (store.Record, error) {
	var (
		rec    store.Record
		fields []byte
	)
	if err := row.Scan(&rec.Entity, &rec.ID, &fields, &rec.ImportID, &rec.UpdatedAt); err != nil {
		return store.Record{}, err
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return store.Record{}, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
	}
	return rec, nil
}
