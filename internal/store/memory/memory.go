// Package memory is a map-backed store.Repository used for the sample
// dataset and in tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/CRM/internal/store"
)

// Store keeps records per entity in insertion order.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]store.Record
	order   map[string][]string

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]map[string]store.Record),
		order:   make(map[string][]string),
		now:     time.Now,
	}
}

func entityKey(entity string) string {
	return strings.ToLower(entity)
}

// List returns the records of entity in the order they were first stored.
func (s *Store) List(_ context.Context, entity string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := entityKey(entity)
	out := make([]store.Record, 0, len(s.order[key]))
	for _, id := range s.order[key] {
		out = append(out, clone(s.records[key][id]))
	}
	return out, nil
}

// GetByID returns one record.
func (s *Store) GetByID(_ context.Context, entity, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[entityKey(entity)][id]
	if !ok {
		return store.Record{}, fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
	}
	return clone(rec), nil
}

// Upsert stores records in order. It stops at the first record whose ID
// repeats an earlier record of the same batch and reports the records
// stored before it.
func (s *Store) Upsert(ctx context.Context, records []store.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := store.CheckBatch(records); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		key := entityKey(r.Entity)
		if seen[key+"/"+r.ID] {
			return i, nil
		}
		seen[key+"/"+r.ID] = true

		if s.records[key] == nil {
			s.records[key] = make(map[string]store.Record)
		}
		if _, exists := s.records[key][r.ID]; !exists {
			s.order[key] = append(s.order[key], r.ID)
		}
		r = clone(r)
		r.UpdatedAt = now
		s.records[key][r.ID] = r
	}
	return len(records), nil
}

// Delete removes one record.
func (s *Store) Delete(_ context.Context, entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entityKey(entity)
	if _, ok := s.records[key][id]; !ok {
		return fmt.Errorf("%s %s: %w", entity, id, store.ErrNotFound)
	}
	delete(s.records[key], id)

	ids := s.order[key]
	for i, v := range ids {
		if v == id {
			s.order[key] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of records stored for entity.
func (s *Store) Len(entity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[entityKey(entity)])
}

func clone(r store.Record) store.Record {
	r.Fields = maps.Clone(r.Fields)
	return r
}
