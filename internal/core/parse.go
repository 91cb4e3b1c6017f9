package core

// parse.go turns source text into RawRecords.
//
// CSV parsing is line-at-a-time tolerant: a row whose value count differs
// from the header is kept and flagged, and a quote never carries over into
// the next line, so one bad line never drops the rest.
// JSON parsing walks the token stream so object keys keep their source order
// and numbers keep their literal text.

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Parse dispatches to the parser for format.
func Parse(format Format, text string) ([]RawRecord, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(text)
	case FormatJSON:
		return ParseJSON(text)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ParseCSV parses comma-separated text with a header line.
//
// Text is split on newlines first and each line is read on its own, so a
// quoted value never spans lines and an unclosed quote only affects its own
// line. Blank and whitespace-only lines are skipped. Header names are
// trimmed and must be non-empty and unique ignoring case. Double-quoted
// values may contain commas. Empty input yields zero records and no error.
func ParseCSV(text string) ([]RawRecord, error) {
	text = strings.TrimPrefix(text, utf8BOM)

	var (
		header  []string
		records []RawRecord
	)

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		row, err := splitCSVLine(line)
		if err != nil {
			return nil, csvError(i+1, err)
		}

		if header == nil {
			header, err = parseHeader(row)
			if err != nil {
				return nil, &MalformedInputError{Format: FormatCSV, Line: i + 1, Msg: err.Error()}
			}
			continue
		}

		records = append(records, zipRow(header, row, len(records)+1))
	}

	return records, nil
}

// splitCSVLine splits one line into values. Stray quotes are kept as text
// and an unclosed quote runs to the end of the line.
func splitCSVLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	row, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []string{""}, nil
	}
	return row, err
}

func parseHeader(row []string) ([]string, error) {
	header := make([]string, len(row))
	seen := make(map[string]int, len(row))

	for i, col := range row {
		name := strings.TrimSpace(col)
		if name == "" {
			return nil, fmt.Errorf("header column %d has an empty name", i+1)
		}
		key := strings.ToLower(name)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("duplicate header %q in columns %d and %d", name, prev+1, i+1)
		}
		seen[key] = i
		header[i] = name
	}
	return header, nil
}

// zipRow pairs values with header names positionally. Extra values are
// dropped and missing ones are absent; either way the row is flagged.
func zipRow(header, row []string, index int) RawRecord {
	n := min(len(header), len(row))
	rec := RawRecord{
		Index:              index,
		Fields:             make([]Field, n),
		FieldCountMismatch: len(row) != len(header),
	}
	for i := 0; i < n; i++ {
		rec.Fields[i] = Field{Name: header[i], Value: row[i]}
	}
	return rec
}

func csvError(line int, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &MalformedInputError{
			Format: FormatCSV,
			Line:   line,
			Column: pe.Column,
			Msg:    pe.Err.Error(),
			Err:    err,
		}
	}
	return &MalformedInputError{Format: FormatCSV, Line: line, Msg: err.Error(), Err: err}
}

// ParseJSON parses a top-level array of objects or a single object.
//
// Values are stringified: strings as-is, numbers by their literal text,
// booleans as true/false, null as the empty string, and nested arrays or
// objects as compact JSON text. Whitespace-only input yields zero records.
func ParseJSON(text string) ([]RawRecord, error) {
	text = strings.TrimPrefix(text, utf8BOM)
	if strings.TrimFunc(text, unicode.IsSpace) == "" {
		return nil, nil
	}

	p := &jsonParser{text: text, dec: json.NewDecoder(strings.NewReader(text))}
	p.dec.UseNumber()

	tok, err := p.dec.Token()
	if err != nil {
		return nil, p.syntaxError(err)
	}

	var records []RawRecord
	switch tok {
	case json.Delim('['):
		for p.dec.More() {
			index := len(records) + 1
			tok, err := p.dec.Token()
			if err != nil {
				return nil, p.syntaxError(err)
			}
			if tok != json.Delim('{') {
				return nil, p.shapeError(p.dec.InputOffset(), fmt.Sprintf("element %d is not an object", index))
			}
			rec, err := p.readObject(index)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		if _, err := p.dec.Token(); err != nil { // closing ]
			return nil, p.syntaxError(err)
		}

	case json.Delim('{'):
		rec, err := p.readObject(1)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)

	default:
		return nil, p.shapeError(0, "top-level value must be an object or an array of objects")
	}

	if _, err := p.dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, p.shapeError(p.dec.InputOffset(), "unexpected data after top-level value")
		}
		return nil, p.syntaxError(err)
	}

	return records, nil
}

type jsonParser struct {
	text string
	dec  *json.Decoder
}

// readObject reads the members of an object whose opening brace has already
// been consumed.
func (p *jsonParser) readObject(index int) (RawRecord, error) {
	rec := RawRecord{Index: index}

	for p.dec.More() {
		tok, err := p.dec.Token()
		if err != nil {
			return RawRecord{}, p.syntaxError(err)
		}
		key, ok := tok.(string)
		if !ok {
			return RawRecord{}, p.shapeError(p.dec.InputOffset(), "object key is not a string")
		}

		var raw json.RawMessage
		if err := p.dec.Decode(&raw); err != nil {
			return RawRecord{}, p.syntaxError(err)
		}
		value, err := stringifyJSON(raw)
		if err != nil {
			return RawRecord{}, p.syntaxError(err)
		}
		rec.Fields = append(rec.Fields, Field{Name: key, Value: value})
	}

	if _, err := p.dec.Token(); err != nil { // closing }
		return RawRecord{}, p.syntaxError(err)
	}
	return rec, nil
}

func stringifyJSON(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case 'n':
		return "", nil
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", err
		}
		return buf.String(), nil
	default:
		// numbers and booleans keep their literal text
		return string(raw), nil
	}
}

func (p *jsonParser) syntaxError(err error) error {
	offset := p.dec.InputOffset()
	var se *json.SyntaxError
	switch {
	case errors.As(err, &se):
		offset = se.Offset
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		offset = int64(len(p.text))
		err = io.ErrUnexpectedEOF
	}

	line, col := p.position(offset)
	return &MalformedInputError{
		Format: FormatJSON,
		Line:   line,
		Column: col,
		Offset: offset,
		Msg:    err.Error(),
		Err:    err,
	}
}

func (p *jsonParser) shapeError(offset int64, msg string) error {
	line, col := p.position(offset)
	return &MalformedInputError{Format: FormatJSON, Line: line, Column: col, Offset: offset, Msg: msg}
}

// position converts a byte offset into a 1-based line and column.
func (p *jsonParser) position(offset int64) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > int64(len(p.text)) {
		offset = int64(len(p.text))
	}
	before := p.text[:offset]
	line = strings.Count(before, "\n") + 1
	col = int(offset) - (strings.LastIndexByte(before, '\n') + 1) + 1
	return line, col
}
