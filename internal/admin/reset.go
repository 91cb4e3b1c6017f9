// Package admin provides administrative operations on stored records.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/store"
)

// ResetTimeout is the maximum duration for a reset.
const ResetTimeout = 30 * time.Second

// Resetter deletes stored records. This is destructive; there is no undo.
type Resetter struct {
	Registry   *core.Registry
	Repository store.Repository
}

type resetFn func(ctx context.Context) (int, error)

// Reset deletes every record of one entity and returns how many went.
func (r *Resetter) Reset(ctx context.Context, entity string) (int, error) {
	schema, err := r.Registry.Lookup(entity)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()
	return r.resetEntity(schema.Name)(ctx)
}

// ResetAll deletes the records of every registered entity. It stops at the
// first failure; the counts report what was removed until then.
func (r *Resetter) ResetAll(ctx context.Context) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	names := r.Registry.Names()
	resets := make([]resetFn, len(names))
	for i, name := range names {
		resets[i] = r.resetEntity(name)
	}
	return runResets(ctx, names, resets)
}

func (r *Resetter) resetEntity(entity string) resetFn {
	return func(ctx context.Context) (int, error) {
		list, err := r.Repository.List(ctx, entity)
		if err != nil {
			return 0, fmt.Errorf("list %s: %w", entity, err)
		}
		n := 0
		for _, rec := range list {
			if err := r.Repository.Delete(ctx, entity, rec.ID); err != nil {
				return n, fmt.Errorf("delete %s %s: %w", entity, rec.ID, err)
			}
			n++
		}
		slog.InfoContext(ctx, "entity reset", "entity", entity, "deleted", n)
		return n, nil
	}
}

func runResets(ctx context.Context, names []string, resets []resetFn) (map[string]int, error) {
	counts := make(map[string]int, len(resets))
	for i, reset := range resets {
		n, err := reset(ctx)
		counts[names[i]] = n
		if err != nil {
			return counts, err
		}
	}
	return counts, nil
}
