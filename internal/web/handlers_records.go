package web

import (
	"errors"
	"net/http"
	"sort"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListRecords(r.Context(), chi.URLParam(r, "entity"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetRecord(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSaveRecord creates or updates one record from a JSON object of
// field values. Invalid input answers 422 with the violation list.
func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := decodeJSON(w, r, &fields); err != nil {
		s.respondError(w, r, err)
		return
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	changes := make([]core.FieldChange, len(names))
	for i, name := range names {
		changes[i] = core.FieldChange{Field: name, Value: fields[name]}
	}

	rec, res, err := s.service.SaveRecord(r.Context(), chi.URLParam(r, "entity"), changes)
	if errors.Is(err, core.ErrValidation) {
		s.respondErrorWith(w, r, err, http.StatusUnprocessableEntity, res.Reasons())
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRecord(r.Context(), chi.URLParam(r, "entity"), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
