// Package history keeps the summaries of finished imports so users can
// review past imports and download rejection reports.
package history

import (
	"context"

	"github.com/JonMunkholm/CRM/internal/core"
)

// DefaultLimit is the number of summaries kept per entity when no limit is
// configured.
const DefaultLimit = 50

// Store records import summaries, newest first.
type Store interface {
	Record(ctx context.Context, sum core.ImportSummary) error
	List(ctx context.Context, entity string, limit int) ([]core.ImportSummary, error)
	Get(ctx context.Context, entity, importID string) (core.ImportSummary, error)
}
