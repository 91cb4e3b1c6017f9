package core

// session.go holds the state of one import attempt as a small state machine:
//
//	idle -> loading -> parsed -> submitting -> done | failed
//
// loading can also end in failed, and Reset returns any settled session to
// idle. One submit may be in flight at a time; a second call while
// submitting returns ErrSubmitInProgress and does nothing.
//
// Cancelling the context of a running Submit abandons the pending commit
// result and fails the session. The commit itself is not undone and may
// still finish in the background.

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionConfig configures a new Session.
type SessionConfig struct {
	ID       string
	Schema   EntitySchema
	Commit   CommitFunc
	Importer *Importer

	// MaxSourceSize bounds LoadFromSource; zero means unlimited.
	MaxSourceSize int64
}

// SessionState is a point-in-time copy of a session.
type SessionState struct {
	ID           string         `json:"id"`
	Entity       string         `json:"entity"`
	Phase        Phase          `json:"phase"`
	SourceName   string         `json:"sourceName,omitempty"`
	SourceSize   int            `json:"sourceSize"`
	Format       Format         `json:"format,omitempty"`
	FormatManual bool           `json:"formatManual,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	ErrorCode    string         `json:"errorCode,omitempty"`
	Summary      *ImportSummary `json:"summary,omitempty"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Session is one import attempt. It is safe for concurrent use.
type Session struct {
	id            string
	schema        EntitySchema
	commit        CommitFunc
	importer      *Importer
	maxSourceSize int64

	mu           sync.Mutex
	phase        Phase
	loadSeq      uint64
	sourceName   string
	sourceText   string
	format       Format
	formatManual bool
	err          error
	summary      *ImportSummary
	updatedAt    time.Time
}

// NewSession returns an idle session.
func NewSession(cfg SessionConfig) *Session {
	importer := cfg.Importer
	if importer == nil {
		importer = NewImporter()
	}
	return &Session{
		id:            cfg.ID,
		schema:        cfg.Schema,
		commit:        cfg.Commit,
		importer:      importer,
		maxSourceSize: cfg.MaxSourceSize,
		phase:         PhaseIdle,
		updatedAt:     time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Schema returns the entity schema the session imports into.
func (s *Session) Schema() EntitySchema { return s.schema }

// LoadFromSource reads src and detects its format. Any previous source,
// summary or error is discarded. Not allowed while submitting.
func (s *Session) LoadFromSource(ctx context.Context, src Source) error {
	s.mu.Lock()
	if s.phase == PhaseSubmitting {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot load a source while submitting", ErrInvalidTransition)
	}
	s.loadSeq++
	seq := s.loadSeq
	s.setPhase(PhaseLoading)
	s.sourceName, s.sourceText = "", ""
	s.format, s.formatManual = "", false
	s.err, s.summary = nil, nil
	s.mu.Unlock()

	name := ""
	if src != nil {
		name = src.Name()
	}
	text, err := ReadSource(ctx, src, s.maxSourceSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.loadSeq {
		// A newer load or a reset superseded this one.
		return nil
	}
	s.sourceName = name
	if err != nil {
		s.err = err
		s.setPhase(PhaseFailed)
		return err
	}

	s.sourceText = text
	s.format = DetectFormat(name, text)
	s.setPhase(PhaseParsed)
	return nil
}

// SetFormat overrides the detected format. Only allowed in the parsed phase.
func (s *Session) SetFormat(f Format) error {
	if _, err := ParseFormat(string(f)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseParsed {
		return fmt.Errorf("%w: format can only change after a source is loaded (phase %s)", ErrInvalidTransition, s.phase)
	}
	s.format = f
	s.formatManual = true
	s.updatedAt = time.Now()
	return nil
}

type importOutcome struct {
	summary ImportSummary
	err     error
}

// Submit runs the import for the loaded source. It returns
// ErrSubmitInProgress, leaving the running submit untouched, when called
// while another submit is in flight.
func (s *Session) Submit(ctx context.Context) (ImportSummary, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseSubmitting:
		s.mu.Unlock()
		return ImportSummary{}, ErrSubmitInProgress
	case PhaseParsed:
	default:
		phase := s.phase
		s.mu.Unlock()
		return ImportSummary{}, fmt.Errorf("%w: cannot submit in phase %s", ErrInvalidTransition, phase)
	}
	s.setPhase(PhaseSubmitting)
	text, format := s.sourceText, s.format
	s.mu.Unlock()

	// The import runs detached from ctx. On cancellation its result is dropped.
	done := make(chan importOutcome, 1)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		summary, err := s.importer.Import(runCtx, text, format, s.schema, s.commit)
		done <- importOutcome{summary: summary, err: err}
	}()

	var out importOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = fmt.Errorf("%w: %w", ErrImportCancelled, ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if out.err != nil {
		s.err = out.err
		s.setPhase(PhaseFailed)
		return ImportSummary{}, out.err
	}
	summary := out.summary
	s.summary = &summary
	s.setPhase(PhaseDone)
	return summary, nil
}

// Reset discards the source, summary and error and returns to idle.
// Not allowed while submitting.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseSubmitting {
		return fmt.Errorf("%w: cannot reset while submitting", ErrInvalidTransition)
	}
	s.loadSeq++
	s.sourceName, s.sourceText = "", ""
	s.format, s.formatManual = "", false
	s.err, s.summary = nil, nil
	s.setPhase(PhaseIdle)
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SessionState{
		ID:           s.id,
		Entity:       s.schema.Name,
		Phase:        s.phase,
		SourceName:   s.sourceName,
		SourceSize:   len(s.sourceText),
		Format:       s.format,
		FormatManual: s.formatManual,
		UpdatedAt:    s.updatedAt,
	}
	if s.err != nil {
		msg := MapError(s.err)
		st.ErrorMessage = msg.Message
		st.ErrorCode = msg.Code
	}
	if s.summary != nil {
		summary := *s.summary
		st.Summary = &summary
	}
	return st
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// IdleSince reports when the session last changed.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Busy reports whether a submit is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == PhaseSubmitting
}

// setPhase must be called with mu held.
func (s *Session) setPhase(p Phase) {
	s.phase = p
	s.updatedAt = time.Now()
}
