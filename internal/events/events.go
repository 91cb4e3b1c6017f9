// Package events publishes import outcomes so other systems can react to
// new or changed CRM records.
package events

import (
	"context"
	"time"

	"github.com/JonMunkholm/CRM/internal/core"
)

// Event types.
const (
	ImportCompleted = "import.completed"
	ImportFailed    = "import.failed"
	RecordSaved     = "record.saved"
	RecordDeleted   = "record.deleted"
)

// Event is one published notification.
type Event struct {
	Type     string              `json:"type"`
	Entity   string              `json:"entity"`
	ImportID string              `json:"importId,omitempty"`
	RecordID string              `json:"recordId,omitempty"`
	Summary  *core.ImportSummary `json:"summary,omitempty"`
	Error    *core.UserMessage   `json:"error,omitempty"`
	At       time.Time           `json:"at"`
}

// Publisher delivers events. Publishing is best effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Completed builds the event for a finished import.
func Completed(sum core.ImportSummary) Event {
	return Event{
		Type:     ImportCompleted,
		Entity:   sum.Entity,
		ImportID: sum.ImportID,
		Summary:  &sum,
		At:       time.Now().UTC(),
	}
}

// Failed builds the event for an import that aborted with err.
func Failed(entity, importID string, err error) Event {
	msg := core.MapError(err)
	return Event{
		Type:     ImportFailed,
		Entity:   entity,
		ImportID: importID,
		Error:    &msg,
		At:       time.Now().UTC(),
	}
}

// Record builds a record.saved or record.deleted event.
func Record(typ, entity, id string) Event {
	return Event{Type: typ, Entity: entity, RecordID: id, At: time.Now().UTC()}
}
