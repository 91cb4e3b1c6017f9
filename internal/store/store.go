// Package store defines the repository the import pipeline commits into and
// the adapters that connect it to core.CommitFunc and core.SaveFunc.
//
// Implementations live in subpackages: memory (sample dataset), postgres
// (pgx) and sqlstore (MySQL and SQLite through sqlx).
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/google/uuid"
)

// ErrNotFound is returned by GetByID and Delete for unknown records.
var ErrNotFound = core.ErrNotFound

// Record is one stored entity instance.
type Record struct {
	ID        string            `json:"id" db:"id"`
	Entity    string            `json:"entity" db:"entity"`
	Fields    map[string]string `json:"fields" db:"-"`
	ImportID  string            `json:"importId,omitempty" db:"import_id"`
	UpdatedAt time.Time         `json:"updatedAt" db:"updated_at"`
}

// Repository is the persistence capability shared by batch imports and
// single-record saves.
type Repository interface {
	List(ctx context.Context, entity string) ([]Record, error)
	GetByID(ctx context.Context, entity, id string) (Record, error)

	// Upsert stores records in order and returns how many of the leading
	// records were persisted. Records are keyed by (Entity, ID).
	Upsert(ctx context.Context, records []Record) (int, error)

	Delete(ctx context.Context, entity, id string) error
}

var recordNamespace = uuid.MustParse("8b6f0c52-4d1e-4f7a-9a3c-5e2d71b0c9e4")

// RecordID derives the ID of a record. When the schema has a key field with
// a value, the ID is a name-based UUID of entity and key so re-importing the
// same data updates the same records. Otherwise a random UUID is used.
func RecordID(schema core.EntitySchema, values map[string]string) string {
	if schema.Key != "" {
		if v := strings.TrimSpace(values[schema.Key]); v != "" {
			name := strings.ToLower(schema.Name) + "\x00" + strings.ToLower(v)
			return uuid.NewSHA1(recordNamespace, []byte(name)).String()
		}
	}
	return uuid.NewString()
}

// FromNormalized builds the Record stored for rec.
func FromNormalized(schema core.EntitySchema, rec core.NormalizedRecord, importID string) Record {
	fields := make(map[string]string, len(rec.Values))
	for k, v := range rec.Values {
		fields[k] = v
	}
	return Record{
		ID:       RecordID(schema, fields),
		Entity:   schema.Name,
		Fields:   fields,
		ImportID: importID,
	}
}

// Committer adapts repo to the importer's commit boundary. Records are
// stamped with the import ID carried by ctx.
func Committer(repo Repository, schema core.EntitySchema) core.CommitFunc {
	return func(ctx context.Context, records []core.NormalizedRecord) (int, error) {
		importID := core.ImportIDFromContext(ctx)
		batch := make([]Record, len(records))
		for i, rec := range records {
			batch[i] = FromNormalized(schema, rec, importID)
		}
		return repo.Upsert(ctx, batch)
	}
}

// Saver adapts repo to a form's save boundary.
func Saver(repo Repository, schema core.EntitySchema) core.SaveFunc {
	return func(ctx context.Context, rec core.NormalizedRecord) error {
		return Save(ctx, repo, FromNormalized(schema, rec, ""))
	}
}

// Save upserts a single record and fails if the store did not keep it.
func Save(ctx context.Context, repo Repository, rec Record) error {
	n, err := repo.Upsert(ctx, []Record{rec})
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%s %s: record was not stored", rec.Entity, rec.ID)
	}
	return nil
}

// CheckBatch rejects records without an entity or ID. Implementations call
// it before writing anything.
func CheckBatch(records []Record) error {
	for i, r := range records {
		if r.Entity == "" || r.ID == "" {
			return fmt.Errorf("record %d: entity and id are required", i+1)
		}
	}
	return nil
}
