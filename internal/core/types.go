package core

import (
	"fmt"
	"strings"
	"time"
)

// Format is the textual shape of an import source.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Kind is the value type of a schema field.
type Kind string

const (
	KindText     Kind = "text"
	KindDate     Kind = "date"
	KindCurrency Kind = "currency"
	KindEmail    Kind = "email"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindDate, KindCurrency, KindEmail:
		return true
	}
	return false
}

// FieldSpec describes one field of an entity.
type FieldSpec struct {
	Name     string `json:"name" toml:"name"`
	Required bool   `json:"required" toml:"required"`
	Kind     Kind   `json:"kind" toml:"kind"`
}

// EntitySchema is the ordered field contract for one entity type.
// Schemas are treated as immutable once registered.
type EntitySchema struct {
	Name   string      `json:"name" toml:"name"`
	Label  string      `json:"label" toml:"label"`
	Key    string      `json:"key" toml:"key"` // field used to derive stable record IDs
	Fields []FieldSpec `json:"fields" toml:"fields"`
}

// FieldNames returns field names in schema order.
func (s EntitySchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field by name, case-insensitively.
func (s EntitySchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Check reports structural problems in a schema definition.
func (s EntitySchema) Check() error {
	var problems []string
	if strings.TrimSpace(s.Name) == "" {
		problems = append(problems, "name is empty")
	}
	if len(s.Fields) == 0 {
		problems = append(problems, "no fields")
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		key := strings.ToLower(strings.TrimSpace(f.Name))
		switch {
		case key == "":
			problems = append(problems, fmt.Sprintf("field %d has no name", i+1))
		case seen[key]:
			problems = append(problems, fmt.Sprintf("duplicate field %q", f.Name))
		}
		seen[key] = true
		if !f.Kind.Valid() {
			problems = append(problems, fmt.Sprintf("field %q has unknown kind %q", f.Name, f.Kind))
		}
	}
	if s.Key != "" {
		if _, ok := s.Field(s.Key); !ok {
			problems = append(problems, fmt.Sprintf("key %q is not a field", s.Key))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("schema %q: %s", s.Name, strings.Join(problems, "; "))
	}
	return nil
}

// Field is one key/value pair of a RawRecord.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawRecord is an unvalidated record exactly as extracted from the source.
type RawRecord struct {
	Index  int     `json:"index"` // 1-based position in the source
	Fields []Field `json:"fields"`

	// FieldCountMismatch is set by the CSV parser when the line had a
	// different number of values than the header.
	FieldCountMismatch bool `json:"fieldCountMismatch,omitempty"`
}

// Lookup returns the value of the first field matching name, ignoring case.
func (r RawRecord) Lookup(name string) (string, bool) {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// NormalizedRecord is a RawRecord projected onto a schema. A field missing
// from Values was absent from the source and had no default.
type NormalizedRecord struct {
	Index              int               `json:"index"`
	Values             map[string]string `json:"values"`
	FieldCountMismatch bool              `json:"fieldCountMismatch,omitempty"`
}

// Get returns the value for a schema field name.
func (r NormalizedRecord) Get(name string) (string, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Violation codes reported by the validator and the importer.
const (
	ReasonFieldCountMismatch = "field-count-mismatch"
	ReasonMissingRequired    = "missing-required-field"
	ReasonInvalidEmail       = "invalid-email"
	ReasonInvalidDate        = "invalid-date"
	ReasonRejectedByStore    = "rejected-by-store"
)

// Violation is one reason a record was rejected.
type Violation struct {
	Field string `json:"field,omitempty"`
	Code  string `json:"code"`
}

// String renders the violation as "code" or "code:field".
func (v Violation) String() string {
	if v.Field == "" {
		return v.Code
	}
	return v.Code + ":" + v.Field
}

// ValidationResult is the verdict for one normalized record.
type ValidationResult struct {
	Index      int              `json:"index"`
	Record     NormalizedRecord `json:"record"`
	Violations []Violation      `json:"violations,omitempty"`
}

// Valid reports whether the record passed every rule.
func (r ValidationResult) Valid() bool {
	return len(r.Violations) == 0
}

// Reasons returns the violations in their rendered form.
func (r ValidationResult) Reasons() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.String()
	}
	return out
}

// Rejection is one rejected record in an ImportSummary.
type Rejection struct {
	Index   int      `json:"index"`
	Reasons []string `json:"reasons"`
}

// String renders the rejection as "row <index>: <reason>, <reason>".
func (r Rejection) String() string {
	return fmt.Sprintf("row %d: %s", r.Index, strings.Join(r.Reasons, ", "))
}

// ImportSummary is the outcome of one import attempt.
// ImportedCount + len(Rejected) always equals TotalRecords.
type ImportSummary struct {
	ImportID      string        `json:"importId"`
	Entity        string        `json:"entity"`
	Format        Format        `json:"format"`
	TotalRecords  int           `json:"totalRecords"`
	ImportedCount int           `json:"importedCount"`
	Rejected      []Rejection   `json:"rejected"`
	DryRun        bool          `json:"dryRun,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
}

// Lines renders every rejection, one per line.
func (s ImportSummary) Lines() []string {
	lines := make([]string, len(s.Rejected))
	for i, r := range s.Rejected {
		lines[i] = r.String()
	}
	return lines
}

// Phase is the lifecycle stage of an import session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseParsed     Phase = "parsed"
	PhaseSubmitting Phase = "submitting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the session is inert until reset.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
