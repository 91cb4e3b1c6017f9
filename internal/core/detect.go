package core

import (
	"strings"
	"unicode"
)

// DetectFormat classifies a source as CSV or JSON. A ".json" filename wins;
// otherwise a sample whose first non-whitespace character opens a JSON
// array or object is JSON. Everything else is CSV.
//
// The result is only a hint: callers may override it.
func DetectFormat(filename, sample string) Format {
	if strings.HasSuffix(strings.ToLower(strings.TrimSpace(filename)), ".json") {
		return FormatJSON
	}

	trimmed := strings.TrimLeftFunc(strings.TrimPrefix(sample, utf8BOM), unicode.IsSpace)
	if trimmed != "" && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}
