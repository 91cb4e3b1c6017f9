package history

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JonMunkholm/CRM/internal/core"
)

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	limit int
	byEnt map[string][]core.ImportSummary
}

// NewMemory keeps at most limit summaries per entity.
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Memory{limit: limit, byEnt: make(map[string][]core.ImportSummary)}
}

func (m *Memory) Record(_ context.Context, sum core.ImportSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(sum.Entity)
	list := append([]core.ImportSummary{sum}, m.byEnt[key]...)
	if len(list) > m.limit {
		list = list[:m.limit]
	}
	m.byEnt[key] = list
	return nil
}

func (m *Memory) List(_ context.Context, entity string, limit int) ([]core.ImportSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.byEnt[strings.ToLower(entity)]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return append([]core.ImportSummary(nil), list...), nil
}

func (m *Memory) Get(_ context.Context, entity, importID string) (core.ImportSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.byEnt[strings.ToLower(entity)] {
		if s.ImportID == importID {
			return s, nil
		}
	}
	return core.ImportSummary{}, fmt.Errorf("import %s: %w", importID, core.ErrNotFound)
}
