package service

import (
	"context"
	"io"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/events"
	"github.com/JonMunkholm/CRM/internal/report"
	"github.com/google/uuid"
)

// Import reads src and imports it into entity in one step. An empty format
// is detected from the source name and content.
func (s *Service) Import(ctx context.Context, entity string, src core.Source, format string) (core.ImportSummary, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return core.ImportSummary{}, err
	}

	importID := core.ImportIDFromContext(ctx)
	if importID == "" {
		importID = uuid.NewString()
		ctx = core.ContextWithImportID(ctx, importID)
	}

	text, f, err := s.readSource(ctx, src, format)
	if err != nil {
		s.publish(ctx, events.Failed(schema.Name, importID, err))
		return core.ImportSummary{}, err
	}

	sum, err := s.importer.Import(ctx, text, f, schema, s.commitFunc(schema))
	if err != nil {
		s.publish(ctx, events.Failed(schema.Name, importID, err))
		return core.ImportSummary{}, err
	}

	s.finish(ctx, sum)
	return sum, nil
}

// Preview validates src against entity without storing anything.
func (s *Service) Preview(ctx context.Context, entity string, src core.Source, format string) (core.Preview, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return core.Preview{}, err
	}
	text, f, err := s.readSource(ctx, src, format)
	if err != nil {
		return core.Preview{}, err
	}
	return s.importer.Preview(ctx, text, f, schema)
}

func (s *Service) readSource(ctx context.Context, src core.Source, format string) (string, core.Format, error) {
	text, err := core.ReadSource(ctx, src, s.opts.MaxSourceSize)
	if err != nil {
		return "", "", err
	}
	if format == "" {
		return text, core.DetectFormat(src.Name(), text), nil
	}
	f, err := core.ParseFormat(format)
	if err != nil {
		return "", "", err
	}
	return text, f, nil
}

// History lists recent imports of entity, newest first.
func (s *Service) History(ctx context.Context, entity string, limit int) ([]core.ImportSummary, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return nil, err
	}
	list, err := s.history.List(ctx, schema.Name, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []core.ImportSummary{}
	}
	return list, nil
}

// ImportSummary returns one past import.
func (s *Service) ImportSummary(ctx context.Context, entity, importID string) (core.ImportSummary, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return core.ImportSummary{}, err
	}
	return s.history.Get(ctx, schema.Name, importID)
}

// WriteReport writes the rejected records of a past import as a workbook.
func (s *Service) WriteReport(ctx context.Context, w io.Writer, entity, importID string) (core.ImportSummary, error) {
	sum, err := s.ImportSummary(ctx, entity, importID)
	if err != nil {
		return core.ImportSummary{}, err
	}
	return sum, report.WriteRejections(w, sum)
}
