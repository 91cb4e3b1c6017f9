// Package sqlstore implements store.Repository over database/sql drivers
// through sqlx. MySQL and SQLite are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/CRM/internal/store"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type dialect struct {
	driver string
	schema string
	upsert string
}

var mysqlDialect = dialect{
	driver: "mysql",
	schema: `CREATE TABLE IF NOT EXISTS crm_records (
	entity     VARCHAR(64)  NOT NULL,
	id         VARCHAR(64)  NOT NULL,
	fields     JSON         NOT NULL,
	import_id  VARCHAR(64)  NOT NULL DEFAULT '',
	updated_at DATETIME(6)  NOT NULL,
	PRIMARY KEY (entity, id)
)`,
	upsert: `INSERT INTO crm_records (entity, id, fields, import_id, updated_at)
VALUES (:entity, :id, :fields, :import_id, :updated_at)
ON DUPLICATE KEY UPDATE fields = VALUES(fields), import_id = VALUES(import_id), updated_at = VALUES(updated_at)`,
}

var sqliteDialect = dialect{
	driver: "sqlite3",
	schema: `CREATE TABLE IF NOT EXISTS crm_records (
	entity     TEXT      NOT NULL,
	id         TEXT      NOT NULL,
	fields     TEXT      NOT NULL,
	import_id  TEXT      NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (entity, id)
)`,
	upsert: `INSERT INTO crm_records (entity, id, fields, import_id, updated_at)
VALUES (:entity, :id, :fields, :import_id, :updated_at)
ON CONFLICT (entity, id) DO UPDATE SET fields = excluded.fields, import_id = excluded.import_id, updated_at = excluded.updated_at`,
}

// Options tunes the connection pool. Zero values keep driver defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements store.Repository.
type Store struct {
	db      *sqlx.DB
	dialect dialect
	now     func() time.Time
}

// row is the column layout of crm_records.
type row struct {
	Entity    string    `db:"entity"`
	ID        string    `db:"id"`
	Fields    string    `db:"fields"`
	ImportID  string    `db:"import_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OpenMySQL connects with a go-sql-driver DSN. parseTime is forced on so
// timestamps scan into time.Time.
func OpenMySQL(ctx context.Context, dsn string, opts Options) (*Store, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	return open(ctx, mysqlDialect, cfg.FormatDSN(), opts)
}

// OpenSQLite opens a database file, or memory with ":memory:".
func OpenSQLite(ctx context.Context, path string, opts Options) (*Store, error) {
	if path == ":memory:" {
		// Each connection would get its own empty database.
		opts.MaxOpenConns = 1
	}
	return open(ctx, sqliteDialect, path, opts)
}

func open(ctx context.Context, d dialect, dsn string, opts Options) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.driver, err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create crm_records: %w", err)
	}
	return &Store{db: db, dialect: d, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) List(ctx context.Context, entity string) ([]store.Record, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		s.db.Rebind(`SELECT entity, id, fields, import_id, updated_at FROM crm_records WHERE entity = ? ORDER BY updated_at, id`),
		entity)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}

	out := make([]store.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) GetByID(ctx context.Context, entity, id string) (store.Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r,
		s.db.Rebind(`SELECT entity, id, fields, import_id, updated_at FROM crm_records WHERE entity = ? AND id = ?`),
		entity, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get %s %s: %w", entity, id, err)
	}
	return r.record()
}

// Upsert writes records in one transaction with a savepoint per row. The
// first refused row ends the batch; earlier rows are committed.
func (s *Store) Upsert(ctx context.Context, records []store.Record) (int, error) {
	if err := store.CheckBatch(records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	persisted := 0
	for i, rec := range records {
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return 0, fmt.Errorf("record %d: marshal fields: %w", i+1, err)
		}

		if _, err := tx.ExecContext(ctx, "SAVEPOINT sp_row"); err != nil {
			return 0, fmt.Errorf("create savepoint: %w", err)
		}
		_, err = tx.NamedExecContext(ctx, s.dialect.upsert, row{
			Entity:    rec.Entity,
			ID:        rec.ID,
			Fields:    string(fields),
			ImportID:  rec.ImportID,
			UpdatedAt: now,
		})
		if err != nil {
			_, _ = tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT sp_row")
			slog.WarnContext(ctx, "upsert stopped at refused row",
				"driver", s.dialect.driver,
				"entity", rec.Entity,
				"row", i+1,
				"error", err,
			)
			break
		}
		_, _ = tx.ExecContext(ctx, "RELEASE SAVEPOINT sp_row")
		persisted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return persisted, nil
}

func (s *Store) Delete(ctx context.Context, entity, id string) error {
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM crm_records WHERE entity = ? AND id = ?`),
		entity, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", entity, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
	}
	return nil
}

func (r row) record() (store.Record, error) {
	rec := store.Record{
		ID:        r.ID,
		Entity:    r.Entity,
		ImportID:  r.ImportID,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Fields), &rec.Fields); err != nil {
		return store.Record{}, fmt.Errorf("decode fields of %s: %w", r.ID, err)
	}
	return rec, nil
}
