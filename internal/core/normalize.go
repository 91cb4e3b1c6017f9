package core

// normalize.go projects raw records onto an entity schema.
//
// Normalization never fails. Values that cannot be coerced are left as the
// raw text so the validator can reject them with a precise reason.

import (
	"strings"
	"time"
)

// CanonicalDateLayout is the only date text the validator accepts.
const CanonicalDateLayout = "2006-01-02"

// DefaultCurrency is used for an absent optional currency field.
const DefaultCurrency = "$0"

// dateLayouts are tried in order. Only four-digit years are accepted, so a
// value never changes century during coercion. Dotted day/month text and
// timestamps are left alone: the first is read day-first in much of Europe
// and the second would lose its time and zone.
var dateLayouts = []string{
	CanonicalDateLayout,
	"2006/01/02", "2006.01.02",
	"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006",
	"Jan 2, 2006", "January 2, 2006", "2 Jan 2006",
	"20060102",
}

// Normalize maps raw onto schema. Field names match case-insensitively and
// the first match wins. Required fields that are absent stay absent; the
// validator reports them.
func Normalize(raw RawRecord, schema EntitySchema) NormalizedRecord {
	rec := NormalizedRecord{
		Index:              raw.Index,
		Values:             make(map[string]string, len(schema.Fields)),
		FieldCountMismatch: raw.FieldCountMismatch,
	}

	for _, f := range schema.Fields {
		v, ok := raw.Lookup(f.Name)
		v = CleanValue(v)

		if !ok || v == "" {
			if f.Required {
				if ok {
					rec.Values[f.Name] = ""
				}
				continue
			}
			if def, hasDefault := defaultFor(f.Kind); hasDefault {
				rec.Values[f.Name] = def
			}
			continue
		}

		rec.Values[f.Name] = coerce(f.Kind, v)
	}

	return rec
}

func defaultFor(k Kind) (string, bool) {
	switch k {
	case KindCurrency:
		return DefaultCurrency, true
	case KindDate:
		return "", false
	default:
		return "", true
	}
}

func coerce(k Kind, v string) string {
	switch k {
	case KindDate:
		return NormalizeDate(v)
	case KindCurrency:
		return NormalizeCurrency(v)
	default:
		return v
	}
}

// NormalizeDate rewrites a recognised date as YYYY-MM-DD. Unrecognised text,
// including two-digit years, is returned unchanged.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(CanonicalDateLayout)
		}
	}
	return s
}

// NormalizeCurrency prefixes "$" when missing. Applying it twice is a no-op.
func NormalizeCurrency(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "$") {
		return s
	}
	return "$" + s
}

// CleanValue trims whitespace and unwraps spreadsheet formula text such as
// ="00123", which Excel emits to preserve leading zeros.
func CleanValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}
