package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

// ============================================================================
// Test Data Generation
// ============================================================================

// generateContactsCSV creates CSV text with rows contacts. Every tenth row
// has a bad email so validation takes both paths.
func generateContactsCSV(rows int) string {
	var b strings.Builder
	b.WriteString("name,email,since,value,notes\n")
	for i := 0; i < rows; i++ {
		email := fmt.Sprintf("user%d@example.com", i)
		if i%10 == 9 {
			email = "broken"
		}
		fmt.Fprintf(&b, "Contact %d,%s,2024-01-%02d,%d.50,\"note, with comma\"\n", i, email, i%28+1, i)
	}
	return b.String()
}

// generateContactsJSON creates the JSON equivalent of generateContactsCSV.
func generateContactsJSON(rows int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, `{"name":"Contact %d","email":"user%d@example.com","since":"2024-01-%02d","value":%d.5}`, i, i, i%28+1, i)
	}
	b.WriteByte(']')
	return b.String()
}

// ============================================================================
// Parser Benchmarks
// ============================================================================

func BenchmarkParseCSV(b *testing.B) {
	for _, rows := range []int{100, 1000, 10000} {
		text := generateContactsCSV(rows)
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.SetBytes(int64(len(text)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := ParseCSV(text); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkParseJSON(b *testing.B) {
	for _, rows := range []int{100, 1000, 10000} {
		text := generateContactsJSON(rows)
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.SetBytes(int64(len(text)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := ParseJSON(text); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDetectFormat(b *testing.B) {
	csvText := generateContactsCSV(50)
	jsonText := "  \n" + generateContactsJSON(50)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DetectFormat("", csvText)
		DetectFormat("", jsonText)
	}
}

// ============================================================================
// Normalizer and Validator Benchmarks
// ============================================================================

// BenchmarkNormalizeDate covers the hot path for date columns.
func BenchmarkNormalizeDate(b *testing.B) {
	testCases := []string{
		"2024-01-15",
		"01/15/2024",
		"2024/1/5",
		"15 Jan 2024",
		"not a date",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			NormalizeDate(tc)
		}
	}
}

func BenchmarkNormalizeCurrency(b *testing.B) {
	testCases := []string{"25", "$1,234.56", "  999.99  ", "$0", ""}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			NormalizeCurrency(tc)
		}
	}
}

func BenchmarkNormalizeValidate(b *testing.B) {
	schema := contactSchema()
	raws, err := ParseCSV(generateContactsCSV(1000))
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j, raw := range raws {
			Validate(Normalize(raw, schema), schema, j+1)
		}
	}
}

// ============================================================================
// End-to-End Benchmarks
// ============================================================================

func BenchmarkImporter_Import(b *testing.B) {
	schema := contactSchema()
	imp := NewImporter()
	commit := func(_ context.Context, recs []NormalizedRecord) (int, error) {
		return len(recs), nil
	}

	for _, rows := range []int{100, 10000} {
		text := generateContactsCSV(rows)
		b.Run(fmt.Sprintf("rows=%d", rows), func(b *testing.B) {
			b.SetBytes(int64(len(text)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				sum, err := imp.Import(context.Background(), text, FormatCSV, schema, commit)
				if err != nil {
					b.Fatal(err)
				}
				if sum.TotalRecords != rows {
					b.Fatalf("TotalRecords = %d, want %d", sum.TotalRecords, rows)
				}
			}
		})
	}
}

func BenchmarkImportLimiter_Guard(b *testing.B) {
	limiter := NewImportLimiter(4, 0)
	commit := limiter.Guard(func(_ context.Context, recs []NormalizedRecord) (int, error) {
		return len(recs), nil
	})

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := commit(context.Background(), nil); err != nil {
				b.Fatal(err)
			}
		}
	})
}
