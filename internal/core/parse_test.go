package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func fieldsOf(r RawRecord) map[string]string {
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Name] = f.Value
	}
	return m
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		sample   string
		want     Format
	}{
		{"json extension", "contacts.json", "name,email", FormatJSON},
		{"json extension upper case", "CONTACTS.JSON", "", FormatJSON},
		{"csv extension with json body", "contacts.csv", `[{"name":"a"}]`, FormatJSON},
		{"array body", "", "  \n\t[{\"a\":1}]", FormatJSON},
		{"object body", "", `{"a":1}`, FormatJSON},
		{"bom before object", "", "\ufeff{\"a\":1}", FormatJSON},
		{"plain csv", "", "name,email\nA,a@x.com", FormatCSV},
		{"empty", "", "", FormatCSV},
		{"whitespace only", "", "   \n", FormatCSV},
		{"txt extension", "notes.txt", "name\nbob", FormatCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.filename, tt.sample); got != tt.want {
				t.Errorf("DetectFormat(%q, %q) = %q, want %q", tt.filename, tt.sample, got, tt.want)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	recs, err := ParseCSV("name , email\nAlice,alice@x.com\n\nBob,bob@x.com\n")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	first := fieldsOf(recs[0])
	if first["name"] != "Alice" || first["email"] != "alice@x.com" {
		t.Errorf("record 1 = %v", first)
	}
	if recs[0].Index != 1 || recs[1].Index != 2 {
		t.Errorf("indexes = %d, %d, want 1, 2", recs[0].Index, recs[1].Index)
	}
	if recs[0].Fields[0].Name != "name" {
		t.Errorf("header not trimmed: %q", recs[0].Fields[0].Name)
	}
}

func TestParseCSV_RecordShape(t *testing.T) {
	// N data rows against M distinct columns give N records of M keys.
	for _, m := range []int{1, 3, 7} {
		for _, n := range []int{0, 1, 5} {
			var b strings.Builder
			for c := 0; c < m; c++ {
				if c > 0 {
					b.WriteByte(',')
				}
				fmt.Fprintf(&b, "col%d", c)
			}
			for r := 0; r < n; r++ {
				b.WriteByte('\n')
				for c := 0; c < m; c++ {
					if c > 0 {
						b.WriteByte(',')
					}
					fmt.Fprintf(&b, "v%d_%d", r, c)
				}
			}

			recs, err := ParseCSV(b.String())
			if err != nil {
				t.Fatalf("m=%d n=%d: ParseCSV() error = %v", m, n, err)
			}
			if len(recs) != n {
				t.Fatalf("m=%d n=%d: got %d records", m, n, len(recs))
			}
			for _, r := range recs {
				if len(r.Fields) != m || r.FieldCountMismatch {
					t.Errorf("m=%d n=%d: record %d has %d fields (mismatch=%v)", m, n, r.Index, len(r.Fields), r.FieldCountMismatch)
				}
			}
		}
	}
}

func TestParseCSV_FieldCountMismatch(t *testing.T) {
	recs, err := ParseCSV("a,b,c\n1,2\n1,2,3\n1,2,3,4")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3 (bad lines must not drop the rest)", len(recs))
	}

	wantMismatch := []bool{true, false, true}
	for i, r := range recs {
		if r.FieldCountMismatch != wantMismatch[i] {
			t.Errorf("record %d mismatch = %v, want %v", r.Index, r.FieldCountMismatch, wantMismatch[i])
		}
	}
	if got := len(recs[0].Fields); got != 2 {
		t.Errorf("short row kept %d fields, want 2", got)
	}
	if got := len(recs[2].Fields); got != 3 {
		t.Errorf("long row kept %d fields, want 3", got)
	}
}

func TestParseCSV_QuotedComma(t *testing.T) {
	recs, err := ParseCSV("name,company\n\"Smith, Jane\",Acme")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(recs) != 1 || recs[0].FieldCountMismatch {
		t.Fatalf("records = %+v", recs)
	}
	if got := fieldsOf(recs[0])["name"]; got != "Smith, Jane" {
		t.Errorf("name = %q, want %q", got, "Smith, Jane")
	}
}

func TestParseCSV_UnquotedCommaIsFlagged(t *testing.T) {
	recs, err := ParseCSV("name,amount\nAcme,1,000")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if !recs[0].FieldCountMismatch {
		t.Error("extra unquoted comma should flag the row")
	}
}

func TestParseCSV_UnclosedQuoteStaysOnItsLine(t *testing.T) {
	recs, err := ParseCSV("name,email\n\"Alice,alice@x.com\nBob,bob@x.com\nCarl,carl@x.com")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if !recs[0].FieldCountMismatch {
		t.Error("row with an unclosed quote should be flagged")
	}
	if got := fieldsOf(recs[0])["name"]; strings.Contains(got, "\n") {
		t.Errorf("quoted value ran past its line: %q", got)
	}
	for _, r := range recs[1:] {
		if r.FieldCountMismatch {
			t.Errorf("record %d flagged", r.Index)
		}
	}
	if got := fieldsOf(recs[2])["email"]; got != "carl@x.com" {
		t.Errorf("record 3 email = %q", got)
	}
}

func TestParseCSV_DelimiterOnlyRowIsARecord(t *testing.T) {
	recs, err := ParseCSV("name,email\n,\nBob,bob@x.com")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	first := fieldsOf(recs[0])
	if recs[0].FieldCountMismatch || first["name"] != "" || first["email"] != "" {
		t.Errorf("record 1 = %+v", recs[0])
	}
	if recs[1].Index != 2 {
		t.Errorf("Bob index = %d, want 2", recs[1].Index)
	}
}

func TestParseCSV_BadHeaderLineNumber(t *testing.T) {
	_, err := ParseCSV("\n\nname,,email")
	var mie *MalformedInputError
	if !errors.As(err, &mie) || mie.Line != 3 {
		t.Errorf("want MalformedInputError at line 3, got %v", err)
	}
}

func TestParseCSV_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "\n\n", "   \n  \n", "\ufeff"} {
		recs, err := ParseCSV(in)
		if err != nil {
			t.Errorf("ParseCSV(%q) error = %v", in, err)
		}
		if len(recs) != 0 {
			t.Errorf("ParseCSV(%q) = %d records, want 0", in, len(recs))
		}
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	recs, err := ParseCSV("name,email\n")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}

func TestParseCSV_BadHeader(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty column", "name,,email\na,b,c"},
		{"blank column", "name,  ,email"},
		{"duplicate", "name,email,name\n1,2,3"},
		{"duplicate ignoring case", "Email,email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(tt.in)
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("ParseCSV() error = %v, want ErrMalformedInput", err)
			}
			var mie *MalformedInputError
			if !errors.As(err, &mie) || mie.Line != 1 {
				t.Errorf("want MalformedInputError at line 1, got %v", err)
			}
		})
	}
}

func TestParseCSV_BOMAndCRLF(t *testing.T) {
	recs, err := ParseCSV("\ufeffname,email\r\nAlice,a@x.com\r\n")
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if got := fieldsOf(recs[0])["name"]; got != "Alice" {
		t.Errorf("name = %q; BOM should not leak into the header", got)
	}
	if got := fieldsOf(recs[0])["email"]; got != "a@x.com" {
		t.Errorf("email = %q", got)
	}
}

func TestParseJSON(t *testing.T) {
	recs, err := ParseJSON(`[
		{"name": "Carl", "age": 42, "vip": true, "notes": null, "amount": 10.50},
		{"tags": ["a", "b"], "address": {"city": "Oslo"}, "name": "Dana"}
	]`)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}

	first := fieldsOf(recs[0])
	want := map[string]string{"name": "Carl", "age": "42", "vip": "true", "notes": "", "amount": "10.50"}
	for k, v := range want {
		if first[k] != v {
			t.Errorf("record 1 %s = %q, want %q", k, first[k], v)
		}
	}

	second := fieldsOf(recs[1])
	if second["tags"] != `["a","b"]` {
		t.Errorf("tags = %q", second["tags"])
	}
	if second["address"] != `{"city":"Oslo"}` {
		t.Errorf("address = %q", second["address"])
	}
	if recs[1].Fields[0].Name != "tags" {
		t.Errorf("key order not preserved: first key %q", recs[1].Fields[0].Name)
	}
	if recs[0].Index != 1 || recs[1].Index != 2 {
		t.Errorf("indexes = %d, %d", recs[0].Index, recs[1].Index)
	}
}

func TestParseJSON_SingleObject(t *testing.T) {
	recs, err := ParseJSON(`{"name": "Solo"}`)
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if len(recs) != 1 || recs[0].Index != 1 {
		t.Fatalf("records = %+v", recs)
	}
}

func TestParseJSON_Empty(t *testing.T) {
	for _, in := range []string{"", "  \n", "[]"} {
		recs, err := ParseJSON(in)
		if err != nil {
			t.Errorf("ParseJSON(%q) error = %v", in, err)
		}
		if len(recs) != 0 {
			t.Errorf("ParseJSON(%q) = %d records", in, len(recs))
		}
	}
}

func TestParseJSON_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantLine int
	}{
		{"broken object", "{not json", 1},
		{"scalar", "42", 1},
		{"string", `"hello"`, 1},
		{"array of numbers", "[1, 2]", 1},
		{"array of arrays", "[[1]]", 1},
		{"mixed array", "[{\"a\":1},\n 3]", 2},
		{"unterminated", "[{\"a\": 1},\n{\"b\": ", 2},
		{"trailing garbage", `{"a":1} x`, 1},
		{"two values", `{"a":1} {"b":2}`, 1},
		{"syntax on line 3", "[\n{\"a\": 1},\n{\"b\" 2}]", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON(tt.in)
			if !errors.Is(err, ErrMalformedInput) {
				t.Fatalf("ParseJSON() error = %v, want ErrMalformedInput", err)
			}
			var mie *MalformedInputError
			if !errors.As(err, &mie) {
				t.Fatalf("error is not *MalformedInputError: %T", err)
			}
			if mie.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", mie.Line, tt.wantLine, err)
			}
		})
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	if _, err := Parse(Format("xml"), "<a/>"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Parse() error = %v, want ErrUnknownFormat", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{" JSON ", FormatJSON, false},
		{"xml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
