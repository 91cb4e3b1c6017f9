// Package jobs runs imports in the background on an asynq worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeImport is the task type of a background import.
const TypeImport = "crm:import"

// ImportPayload is the task body. Text holds the whole source.
type ImportPayload struct {
	ImportID string `json:"import_id"`
	Entity   string `json:"entity"`
	Format   string `json:"format,omitempty"`
	Filename string `json:"filename,omitempty"`
	Text     string `json:"text"`
}

// NewImportTask encodes p as a task.
func NewImportTask(p ImportPayload, opts ...asynq.Option) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal import payload: %w", err)
	}
	return asynq.NewTask(TypeImport, body, opts...), nil
}

// Client enqueues imports.
type Client struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// ClientOptions configures enqueued tasks.
type ClientOptions struct {
	MaxRetry int
	Timeout  time.Duration
}

// NewClient connects to the Redis instance backing the queue.
func NewClient(redis asynq.RedisClientOpt, opts ClientOptions) *Client {
	return &Client{
		client:   asynq.NewClient(redis),
		maxRetry: opts.MaxRetry,
		timeout:  opts.Timeout,
	}
}

// Enqueue schedules an import and returns its import ID. The ID is assigned
// here when p does not carry one so callers can look the import up in the
// history once it has run.
func (c *Client) Enqueue(ctx context.Context, p ImportPayload) (string, error) {
	if p.ImportID == "" {
		p.ImportID = uuid.NewString()
	}

	opts := []asynq.Option{asynq.MaxRetry(c.maxRetry), asynq.TaskID(p.ImportID)}
	if c.timeout > 0 {
		opts = append(opts, asynq.Timeout(c.timeout))
	}
	task, err := NewImportTask(p, opts...)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue import: %w", err)
	}
	slog.InfoContext(ctx, "import enqueued",
		"import_id", p.ImportID,
		"entity", p.Entity,
		"queue", info.Queue,
	)
	return p.ImportID, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Importer runs one import. service.Service satisfies it.
type Importer interface {
	Import(ctx context.Context, entity string, src core.Source, format string) (core.ImportSummary, error)
}

// Handler processes import tasks.
type Handler struct {
	importer Importer
}

// NewHandler returns a handler that runs imports through imp.
func NewHandler(imp Importer) *Handler {
	return &Handler{importer: imp}
}

// ProcessTask implements asynq.Handler. Failures caused by the input are
// not retried.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ImportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal import payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx = core.ContextWithImportID(ctx, p.ImportID)
	src := core.ReaderSource{Filename: p.Filename, Reader: strings.NewReader(p.Text)}

	sum, err := h.importer.Import(ctx, p.Entity, src, p.Format)
	if err != nil {
		if permanent(err) {
			return fmt.Errorf("import %s: %w: %w", p.ImportID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("import %s: %w", p.ImportID, err)
	}

	slog.InfoContext(ctx, "background import finished",
		"import_id", sum.ImportID,
		"entity", sum.Entity,
		"imported", sum.ImportedCount,
		"rejected", len(sum.Rejected),
	)
	return nil
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, core.ErrMalformedInput) ||
		errors.Is(err, core.ErrUnknownEntity) ||
		errors.Is(err, core.ErrUnknownFormat) ||
		errors.Is(err, core.ErrRead)
}

// RegisterHandlers wires the task types into mux.
func RegisterHandlers(mux *asynq.ServeMux, h *Handler) {
	mux.Handle(TypeImport, h)
}

// ServerOptions configures the worker.
type ServerOptions struct {
	Concurrency int
}

// NewServer builds an asynq server with a single queue.
func NewServer(redis asynq.RedisClientOpt, opts ServerOptions) *asynq.Server {
	return asynq.NewServer(redis, asynq.Config{
		Concurrency: opts.Concurrency,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("task failed", "type", task.Type(), "error", err)
		}),
		Logger: slogAdapter{},
	})
}
