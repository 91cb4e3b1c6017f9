package web

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/history"
	"github.com/JonMunkholm/CRM/internal/jobs"
	"github.com/JonMunkholm/CRM/internal/report"
	"github.com/JonMunkholm/CRM/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// handleImport reads, validates and commits a source in one request.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	src, format, err := s.requestSource(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	sum, err := s.service.Import(importContext(r), chi.URLParam(r, "entity"), src, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondSummary(w, r, sum)
}

// handlePreview runs the pipeline without committing and returns the
// verdict for every record.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	src, format, err := s.requestSource(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := s.service.Preview(r.Context(), chi.URLParam(r, "entity"), src, format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		respondSummary(w, r, p.Summary)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleImportAsync queues the source for the worker and answers 202 with
// the import ID to poll the history with.
func (s *Server) handleImportAsync(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		s.respondError(w, r, core.ErrQueueDisabled)
		return
	}

	schema, err := s.service.Schema(chi.URLParam(r, "entity"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	src, format, err := s.requestSource(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if format != "" {
		if _, err := core.ParseFormat(format); err != nil {
			s.respondError(w, r, err)
			return
		}
	}
	text, err := core.ReadSource(r.Context(), src, s.cfg.Import.MaxSourceSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	id, err := s.queue.Enqueue(r.Context(), jobs.ImportPayload{
		ImportID: core.ImportIDFromContext(importContext(r)),
		Entity:   schema.Name,
		Format:   format,
		Filename: src.Name(),
		Text:     text,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"importId": id, "entity": schema.Name})
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	list, err := s.service.History(r.Context(), entity, parseIntParam(r, "limit", history.DefaultLimit))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.History(entity, list).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleImportSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.service.ImportSummary(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "importID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondSummary(w, r, sum)
}

// handleRejectionReport serves the rejected rows of a past import as an
// Excel workbook.
func (s *Server) handleRejectionReport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	sum, err := s.service.WriteReport(r.Context(), &buf, chi.URLParam(r, "entity"), chi.URLParam(r, "importID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(sum)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func respondSummary(w http.ResponseWriter, r *http.Request, sum core.ImportSummary) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = templates.ImportResult(sum).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
