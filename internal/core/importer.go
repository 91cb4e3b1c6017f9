package core

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/CRM/internal/logging"
)

// CommitFunc persists a batch of valid records and returns how many were
// actually stored. Returning fewer than len(records) marks the trailing
// records as rejected by the store. An error fails the whole attempt.
type CommitFunc func(ctx context.Context, records []NormalizedRecord) (persisted int, err error)

// Importer runs the parse, normalize, validate and commit pipeline.
// The zero value is ready to use.
type Importer struct {
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// NewImporter returns an Importer using the wall clock.
func NewImporter() *Importer {
	return &Importer{}
}

// Preview is the result of a dry run: the summary plus the verdict for
// every record.
type Preview struct {
	Summary ImportSummary      `json:"summary"`
	Results []ValidationResult `json:"results"`
}

// Import parses source as format, validates every record against schema and
// commits the valid subset.
//
// A parse failure aborts with an error wrapping ErrMalformedInput and commit
// is never called. A commit error aborts with ErrCommitFailed and no summary.
// Zero records is an empty summary, not an error.
//
// The import ID is taken from ctx (see ContextWithImportID) or generated, and
// the ctx passed to commit always carries it.
func (imp *Importer) Import(ctx context.Context, source string, format Format, schema EntitySchema, commit CommitFunc) (ImportSummary, error) {
	if commit == nil {
		return ImportSummary{}, commitError(errors.New("no commit function"))
	}
	p, err := imp.run(ctx, source, format, schema, commit)
	if err != nil {
		return ImportSummary{}, err
	}
	return p.Summary, nil
}

// Preview runs the pipeline without committing. ImportedCount is the number
// of records that would be handed to commit.
func (imp *Importer) Preview(ctx context.Context, source string, format Format, schema EntitySchema) (Preview, error) {
	return imp.run(ctx, source, format, schema, nil)
}

func (imp *Importer) run(ctx context.Context, source string, format Format, schema EntitySchema, commit CommitFunc) (Preview, error) {
	start := imp.now()

	importID := ImportIDFromContext(ctx)
	if importID == "" {
		importID = uuid.NewString()
		ctx = ContextWithImportID(ctx, importID)
	}

	logger := logging.WithFields(ctx,
		"import_id", importID,
		"entity", schema.Name,
		"format", format,
	)

	raws, err := Parse(format, source)
	if err != nil {
		logger.Warn("import rejected: source does not parse", "error", err)
		return Preview{}, err
	}

	results := make([]ValidationResult, len(raws))
	valid := make([]NormalizedRecord, 0, len(raws))
	var rejected []Rejection

	for i, raw := range raws {
		res := Validate(Normalize(raw, schema), schema, raw.Index)
		results[i] = res
		if res.Valid() {
			valid = append(valid, res.Record)
		} else {
			rejected = append(rejected, Rejection{Index: res.Index, Reasons: res.Reasons()})
		}
	}

	summary := ImportSummary{
		ImportID:     importID,
		Entity:       schema.Name,
		Format:       format,
		TotalRecords: len(raws),
		DryRun:       commit == nil,
		StartedAt:    start,
	}

	persisted := len(valid)
	if commit != nil && len(valid) > 0 {
		n, err := commit(ctx, valid)
		if err != nil {
			logger.Error("import commit failed", "valid", len(valid), "error", err)
			return Preview{}, commitError(err)
		}
		persisted = min(max(n, 0), len(valid))
		if persisted < len(valid) {
			logger.Warn("store persisted fewer records than requested",
				"requested", len(valid),
				"persisted", persisted,
			)
		}
	}

	// Earliest-index valid records are assumed stored first.
	for _, rec := range valid[persisted:] {
		rejected = append(rejected, Rejection{Index: rec.Index, Reasons: []string{ReasonRejectedByStore}})
	}
	slices.SortStableFunc(rejected, func(a, b Rejection) int { return a.Index - b.Index })

	summary.ImportedCount = persisted
	summary.Rejected = rejected
	if summary.Rejected == nil {
		summary.Rejected = []Rejection{}
	}
	summary.Duration = imp.now().Sub(start)

	logger.Info("import finished",
		"total", summary.TotalRecords,
		"imported", summary.ImportedCount,
		"rejected", len(summary.Rejected),
		"dry_run", summary.DryRun,
		"duration", summary.Duration,
	)

	return Preview{Summary: summary, Results: results}, nil
}

func (imp *Importer) now() time.Time {
	if imp != nil && imp.Now != nil {
		return imp.Now()
	}
	return time.Now()
}
