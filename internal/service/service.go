// Package service wires the import pipeline to the record store, import
// history and event publishing. It owns the live import sessions.
package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/events"
	"github.com/JonMunkholm/CRM/internal/history"
	"github.com/JonMunkholm/CRM/internal/store"
)

// Deps are the collaborators of a Service. Registry and Repository are
// required; the rest fall back to in-process defaults.
type Deps struct {
	Registry   *core.Registry
	Repository store.Repository
	History    history.Store
	Events     events.Publisher
	Limiter    *core.ImportLimiter
}

// Options tune import behavior.
type Options struct {
	MaxSourceSize int64
	CommitTimeout time.Duration
	SessionTTL    time.Duration
	HistoryLimit  int
}

// Service provides the business operations behind the HTTP API, the CLI
// and the worker.
type Service struct {
	registry *core.Registry
	repo     store.Repository
	history  history.Store
	events   events.Publisher
	limiter  *core.ImportLimiter
	importer *core.Importer
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// New creates a Service.
func New(deps Deps, opts Options) (*Service, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("service: registry is required")
	}
	if deps.Repository == nil {
		return nil, fmt.Errorf("service: repository is required")
	}
	if deps.History == nil {
		deps.History = history.NewMemory(opts.HistoryLimit)
	}
	if deps.Events == nil {
		deps.Events = events.Noop{}
	}
	if deps.Limiter == nil {
		deps.Limiter = core.NewImportLimiter(0, 0)
	}

	return &Service{
		registry: deps.Registry,
		repo:     deps.Repository,
		history:  deps.History,
		events:   deps.Events,
		limiter:  deps.Limiter,
		importer: core.NewImporter(),
		opts:     opts,
		sessions: make(map[string]*core.Session),
	}, nil
}

// Entities returns every registered schema sorted by name.
func (s *Service) Entities() []core.EntitySchema {
	return s.registry.All()
}

// Schema returns one entity schema.
func (s *Service) Schema(entity string) (core.EntitySchema, error) {
	return s.registry.Lookup(entity)
}

// Template returns a CSV file holding only the header row of entity.
func (s *Service) Template(entity string) ([]byte, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(schema.FieldNames()); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// LimiterStatus reports commit slot usage.
func (s *Service) LimiterStatus() core.LimiterStatus {
	return s.limiter.Status()
}

// Shutdown waits for running commits to finish or ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// commitFunc is the commit boundary for schema: bounded by the limiter and
// by CommitTimeout.
func (s *Service) commitFunc(schema core.EntitySchema) core.CommitFunc {
	commit := store.Committer(s.repo, schema)
	if d := s.opts.CommitTimeout; d > 0 {
		inner := commit
		commit = func(ctx context.Context, records []core.NormalizedRecord) (int, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return inner(ctx, records)
		}
	}
	return s.limiter.Guard(commit)
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "publish event failed",
			"type", ev.Type,
			"entity", ev.Entity,
			"error", err,
		)
	}
}

// finish records a completed import in the history and announces it.
func (s *Service) finish(ctx context.Context, sum core.ImportSummary) {
	if err := s.history.Record(ctx, sum); err != nil {
		slog.WarnContext(ctx, "record import history failed",
			"import_id", sum.ImportID,
			"error", err,
		)
	}
	s.publish(ctx, events.Completed(sum))
}
