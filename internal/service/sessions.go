package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/CRM/internal/core"
	"github.com/JonMunkholm/CRM/internal/events"
	"github.com/google/uuid"
)

// CreateSession starts an idle import session for entity.
func (s *Service) CreateSession(entity string) (*core.Session, error) {
	schema, err := s.registry.Lookup(entity)
	if err != nil {
		return nil, err
	}

	sess := core.NewSession(core.SessionConfig{
		ID:            uuid.NewString(),
		Schema:        schema,
		Commit:        s.commitFunc(schema),
		Importer:      s.importer,
		MaxSourceSize: s.opts.MaxSourceSize,
	})

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	slog.Debug("import session created", "session_id", sess.ID(), "entity", schema.Name)
	return sess, nil
}

// Session returns a live session.
func (s *Service) Session(id string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return sess, nil
}

// CloseSession discards a session. A session that is submitting cannot be
// closed.
func (s *Service) CloseSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	if sess.Busy() {
		return core.ErrSubmitInProgress
	}
	delete(s.sessions, id)
	return nil
}

// LoadSession reads src into the session and detects its format.
func (s *Service) LoadSession(ctx context.Context, id string, src core.Source) (core.SessionState, error) {
	sess, err := s.Session(id)
	if err != nil {
		return core.SessionState{}, err
	}
	err = sess.LoadFromSource(ctx, src)
	return sess.Snapshot(), err
}

// SetSessionFormat overrides the detected format.
func (s *Service) SetSessionFormat(id, format string) (core.SessionState, error) {
	sess, err := s.Session(id)
	if err != nil {
		return core.SessionState{}, err
	}
	f, err := core.ParseFormat(format)
	if err != nil {
		return sess.Snapshot(), err
	}
	err = sess.SetFormat(f)
	return sess.Snapshot(), err
}

// SubmitSession runs the import of a parsed session. Like Import, it uses
// the import ID on ctx or generates one.
func (s *Service) SubmitSession(ctx context.Context, id string) (core.SessionState, error) {
	sess, err := s.Session(id)
	if err != nil {
		return core.SessionState{}, err
	}

	importID := core.ImportIDFromContext(ctx)
	if importID == "" {
		importID = uuid.NewString()
		ctx = core.ContextWithImportID(ctx, importID)
	}

	sum, err := sess.Submit(ctx)
	switch {
	case err == nil:
		s.finish(context.WithoutCancel(ctx), sum)
	case errors.Is(err, core.ErrSubmitInProgress), errors.Is(err, core.ErrInvalidTransition):
		// The session was left as it was.
	default:
		s.publish(context.WithoutCancel(ctx), events.Failed(sess.Schema().Name, importID, err))
	}
	return sess.Snapshot(), err
}

// ResetSession returns a session to idle.
func (s *Service) ResetSession(id string) (core.SessionState, error) {
	sess, err := s.Session(id)
	if err != nil {
		return core.SessionState{}, err
	}
	err = sess.Reset()
	return sess.Snapshot(), err
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartSessionSweeper removes sessions idle for longer than the session TTL
// every interval until ctx ends.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	if s.opts.SessionTTL <= 0 || interval <= 0 {
		return
	}
	slog.Info("session sweeper started", "ttl", s.opts.SessionTTL, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case now := <-ticker.C:
			if n := s.SweepSessions(now); n > 0 {
				slog.Info("expired import sessions removed", "count", n)
			}
		}
	}
}

// SweepSessions removes sessions that are not submitting and have been idle
// since before now minus the session TTL. It returns how many were removed.
func (s *Service) SweepSessions(now time.Time) int {
	cutoff := now.Add(-s.opts.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Busy() || sess.IdleSince().After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		removed++
	}
	return removed
}
