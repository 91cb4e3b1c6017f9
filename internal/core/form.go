package core

import (
	"context"
	"maps"
	"strings"
)

// FieldChange sets one form field.
type FieldChange struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SaveFunc persists one record from a form.
type SaveFunc func(ctx context.Context, rec NormalizedRecord) error

// Form is the editable state of a single-record dialog. It is a value:
// Apply returns a new Form and never changes the receiver.
type Form struct {
	schema EntitySchema
	values map[string]string
}

// NewForm starts a form for schema with optional initial values.
func NewForm(schema EntitySchema, initial map[string]string) Form {
	return Form{schema: schema, values: maps.Clone(initial)}
}

// Apply returns a copy of f with the change applied.
func (f Form) Apply(c FieldChange) Form {
	next := Form{schema: f.schema, values: make(map[string]string, len(f.values)+1)}
	maps.Copy(next.values, f.values)
	next.values[c.Field] = c.Value
	return next
}

// ApplyAll applies changes in order.
func (f Form) ApplyAll(changes ...FieldChange) Form {
	for _, c := range changes {
		f = f.Apply(c)
	}
	return f
}

// Value returns the current text of a field.
func (f Form) Value(field string) string {
	return f.values[field]
}

// Values returns a copy of all field values.
func (f Form) Values() map[string]string {
	return maps.Clone(f.values)
}

// Schema returns the form's entity schema.
func (f Form) Schema() EntitySchema {
	return f.schema
}

// Record converts the form into a RawRecord in schema order. Fields that
// are not in the schema are ignored.
func (f Form) Record() RawRecord {
	rec := RawRecord{Index: 1}
	for _, spec := range f.schema.Fields {
		if v, ok := f.values[spec.Name]; ok {
			rec.Fields = append(rec.Fields, Field{Name: spec.Name, Value: v})
			continue
		}
		for name, v := range f.values {
			if strings.EqualFold(name, spec.Name) {
				rec.Fields = append(rec.Fields, Field{Name: spec.Name, Value: v})
				break
			}
		}
	}
	return rec
}

// Submit normalizes and validates the form and calls save exactly once when
// it is valid. An invalid form returns the result and an error wrapping
// ErrValidation without calling save. A save failure wraps ErrCommitFailed.
func (f Form) Submit(ctx context.Context, save SaveFunc) (ValidationResult, error) {
	res := Validate(Normalize(f.Record(), f.schema), f.schema, 1)
	if !res.Valid() {
		return res, ErrValidation
	}
	if err := save(ctx, res.Record); err != nil {
		return res, commitError(err)
	}
	return res, nil
}
