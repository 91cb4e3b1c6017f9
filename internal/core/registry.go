package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the entity schemas known to a process. It is built once at
// startup and passed to the components that need it.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]EntitySchema
}

// NewRegistry registers schemas in order and fails on the first bad or
// duplicate schema.
func NewRegistry(schemas ...EntitySchema) (*Registry, error) {
	r := &Registry{schemas: make(map[string]EntitySchema, len(schemas))}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics, for built-in schemas and tests.
func MustRegistry(schemas ...EntitySchema) *Registry {
	r, err := NewRegistry(schemas...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds a schema. Names are unique ignoring case.
func (r *Registry) Register(s EntitySchema) error {
	if err := s.Check(); err != nil {
		return err
	}
	if s.Label == "" {
		s.Label = s.Name
	}
	s.Fields = append([]FieldSpec(nil), s.Fields...)

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(s.Name)
	if _, exists := r.schemas[key]; exists {
		return fmt.Errorf("entity already registered: %s", s.Name)
	}
	r.schemas[key] = s
	return nil
}

// Get returns a schema by name, ignoring case.
func (r *Registry) Get(name string) (EntitySchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schemas[strings.ToLower(name)]
	return s, ok
}

// Lookup is Get returning ErrUnknownEntity when the name is not registered.
func (r *Registry) Lookup(name string) (EntitySchema, error) {
	s, ok := r.Get(name)
	if !ok {
		return EntitySchema{}, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	return s, nil
}

// All returns every schema sorted by name.
func (r *Registry) All() []EntitySchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EntitySchema, 0, len(r.schemas))
	for _, s := range r.schemas {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// Names returns the sorted schema names.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}
