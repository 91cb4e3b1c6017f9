package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// respondSession answers with the session state, as a status fragment for
// HTMX and as JSON otherwise.
func respondSession(w http.ResponseWriter, r *http.Request, status int, st core.SessionState) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = templates.SessionStatus(st).Render(r.Context(), w)
		return
	}
	writeJSON(w, status, st)
}

// formOrJSON reads one string field from a JSON object or a form body.
func formOrJSON(w http.ResponseWriter, r *http.Request, name string) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]string
		if err := decodeJSON(w, r, &body); err != nil {
			return "", err
		}
		return body[name], nil
	}
	return r.FormValue(name), nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	entity, err := formOrJSON(w, r, "entity")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sess, err := s.service.CreateSession(entity)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondSession(w, r, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondSession(w, r, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseSession(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoadSession loads a source into the session. A format sent with
// the source overrides detection.
func (s *Server) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	src, format, err := s.requestSource(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	st, err := s.service.LoadSession(r.Context(), id, src)
	if err == nil && format != "" {
		st, err = s.service.SetSessionFormat(id, format)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondSession(w, r, http.StatusOK, st)
}

func (s *Server) handleSetSessionFormat(w http.ResponseWriter, r *http.Request) {
	format, err := formOrJSON(w, r, "format")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	st, err := s.service.SetSessionFormat(chi.URLParam(r, "id"), format)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondSession(w, r, http.StatusOK, st)
}

// handleSubmitSession runs the import. A failed import still reports the
// session, now in the failed phase, with the error status.
func (s *Server) handleSubmitSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.SubmitSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondSession(w, r, http.StatusOK, st)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.ResetSession(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondSession(w, r, http.StatusOK, st)
}
