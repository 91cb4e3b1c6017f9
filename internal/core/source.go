package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"
)

const utf8BOM = "\ufeff"

// Source is where import text comes from: an uploaded or local file, or
// text pasted by a user.
type Source interface {
	// Name is a filename hint for format detection; empty for pasted text.
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// TextSource is inline text.
type TextSource string

func (TextSource) Name() string { return "" }

func (s TextSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte(s))), nil
}

// FileSource reads a file from the local filesystem.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return filepath.Base(s.Path) }

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(s.Path)
}

// ReaderSource wraps an already open reader, such as a multipart upload.
type ReaderSource struct {
	Filename string
	Reader   io.Reader
}

func (s ReaderSource) Name() string { return s.Filename }

func (s ReaderSource) Open(context.Context) (io.ReadCloser, error) {
	if s.Reader == nil {
		return nil, ErrEmptySource
	}
	if rc, ok := s.Reader.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(s.Reader), nil
}

// ReadSource reads the whole source as text. The UTF-8 byte order mark is
// dropped and invalid UTF-8 is replaced with U+FFFD. A positive limit
// bounds the accepted size in bytes. Every failure wraps ErrRead.
func ReadSource(ctx context.Context, src Source, limit int64) (string, error) {
	if src == nil {
		return "", readError(ErrEmptySource)
	}
	if err := ctx.Err(); err != nil {
		return "", readError(err)
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return "", readError(err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", readError(err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", readError(fmt.Errorf("%w: exceeds %d bytes", ErrSourceTooLarge, limit))
	}

	data = bytes.TrimPrefix(data, []byte(utf8BOM))
	return string(sanitizeUTF8(data)), nil
}

// sanitizeUTF8 replaces each invalid byte with the replacement character.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
			continue
		}
		buf.Write(data[:size])
		data = data[size:]
	}

	return buf.Bytes()
}
