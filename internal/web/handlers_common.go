package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/CRM/internal/core"
)

// multipartOverhead is the room left for form fields on top of the
// source size limit.
const multipartOverhead = 1 << 20

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// requestSource extracts the import source and the requested format.
//
// A multipart form carries either a "file" upload or a "text" field, plus
// an optional "format" field. Any other body is the source itself; its
// format comes from ?format= or else the Content-Type. An empty format
// asks the service to detect it. Only a request with no source at all is
// an error; blank text yields an empty summary.
func (s *Server) requestSource(w http.ResponseWriter, r *http.Request) (core.Source, string, error) {
	if isMultipart(r) {
		return s.multipartSource(w, r)
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = formatFromContentType(r.Header.Get("Content-Type"))
	}
	if r.Body == nil || r.Body == http.NoBody {
		return nil, format, fmt.Errorf("%w: %w", core.ErrRead, core.ErrEmptySource)
	}
	return core.ReaderSource{Filename: r.URL.Query().Get("filename"), Reader: r.Body}, format, nil
}

func (s *Server) multipartSource(w http.ResponseWriter, r *http.Request) (core.Source, string, error) {
	maxSize := s.cfg.Import.MaxSourceSize
	if maxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", fmt.Errorf("%w: %w", core.ErrRead, core.ErrSourceTooLarge)
		}
		return nil, "", fmt.Errorf("%w: invalid form: %w", core.ErrRead, err)
	}

	format := r.FormValue("format")
	if file, header, err := r.FormFile("file"); err == nil {
		return core.ReaderSource{Filename: header.Filename, Reader: file}, format, nil
	}
	// Pasted text that is blank still counts as a source and imports nothing.
	if text, ok := r.MultipartForm.Value["text"]; ok && len(text) > 0 {
		return core.TextSource(text[0]), format, nil
	}
	return nil, format, fmt.Errorf("%w: %w", core.ErrRead, core.ErrEmptySource)
}

// formatFromContentType maps a body media type onto an import format.
func formatFromContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mediaType {
	case "application/json":
		return string(core.FormatJSON)
	case "text/csv", "application/csv":
		return string(core.FormatCSV)
	}
	return ""
}

// decodeJSON decodes a small JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, multipartOverhead)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &core.MalformedInputError{Format: core.FormatJSON, Msg: err.Error(), Err: err}
	}
	return nil
}
