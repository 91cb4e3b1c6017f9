package core

// validation.go classifies normalized records.
//
// Every rule runs for every field in schema order and all violations are
// collected, so a user sees each problem with a record in one pass. The
// validator only reads the record; it never rewrites values.

import (
	"strings"
	"time"
)

// Validate checks rec against schema. index is the record's 1-based
// position in the source and is reported unchanged.
func Validate(rec NormalizedRecord, schema EntitySchema, index int) ValidationResult {
	result := ValidationResult{Index: index, Record: rec}

	if rec.FieldCountMismatch {
		result.Violations = append(result.Violations, Violation{Code: ReasonFieldCountMismatch})
	}

	for _, f := range schema.Fields {
		v, ok := rec.Get(f.Name)
		if !ok || strings.TrimSpace(v) == "" {
			if f.Required {
				result.Violations = append(result.Violations, Violation{Field: f.Name, Code: ReasonMissingRequired})
			}
			continue
		}

		if reason := checkKind(f.Kind, v); reason != "" {
			result.Violations = append(result.Violations, Violation{Field: f.Name, Code: reason})
		}
	}

	return result
}

// checkKind returns the violation code for a present value, or "".
func checkKind(k Kind, v string) string {
	switch k {
	case KindEmail:
		if !IsEmail(v) {
			return ReasonInvalidEmail
		}
	case KindDate:
		if !IsCanonicalDate(v) {
			return ReasonInvalidDate
		}
	}
	return ""
}

// IsEmail reports whether v has an "@" followed somewhere by a ".".
func IsEmail(v string) bool {
	at := strings.IndexByte(v, '@')
	return at >= 0 && strings.Contains(v[at+1:], ".")
}

// IsCanonicalDate reports whether v is a real calendar date in YYYY-MM-DD form.
func IsCanonicalDate(v string) bool {
	_, err := time.Parse(CanonicalDateLayout, v)
	return err == nil
}
