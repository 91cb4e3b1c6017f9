package service

import (
	"context"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/events"
	"github.com/JonMunkholm/CRM/internal/store"
)

// ListRecords returns the stored records of entity.
func (s *Service) ListRecords(ctx context.Context, entity string) ([]store.Record, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.List(ctx, schema.Name)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []store.Record{}
	}
	return list, nil
}

// GetRecord returns one stored record.
func (s *Service) GetRecord(ctx context.Context, entity, id string) (store.Record, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return store.Record{}, err
	}
	return s.repo.GetByID(ctx, schema.Name, id)
}

// SaveRecord applies changes to an empty form of entity and saves it. An
// invalid form returns its validation result and an error wrapping
// core.ErrValidation.
func (s *Service) SaveRecord(ctx context.Context, entity string, changes []core.FieldChange) (store.Record, core.ValidationResult, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return store.Record{}, core.ValidationResult{}, err
	}

	var saved store.Record
	form := core.NewForm(schema, nil).ApplyAll(changes...)
	res, err := form.Submit(ctx, func(ctx context.Context, rec core.NormalizedRecord) error {
		saved = store.FromNormalized(schema, rec, "")
		return store.Save(ctx, s.repo, saved)
	})
	if err != nil {
		return store.Record{}, res, err
	}

	if stored, err := s.repo.GetByID(ctx, schema.Name, saved.ID); err == nil {
		saved = stored
	}
	s.publish(ctx, events.Record(events.RecordSaved, schema.Name, saved.ID))
	return saved, res, nil
}

// DeleteRecord removes one stored record.
func (s *Service) DeleteRecord(ctx context.Context, entity, id string) error {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, schema.Name, id); err != nil {
		return err
	}
	s.publish(ctx, events.Record(events.RecordDeleted, schema.Name, id))
	return nil
}
