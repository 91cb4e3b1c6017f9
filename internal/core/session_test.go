package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestSession(commit CommitFunc) *Session {
	return NewSession(SessionConfig{ID: "s-1", Schema: nameEmailSchema(), Commit: commit})
}

func okCommit(_ context.Context, recs []NormalizedRecord) (int, error) {
	return len(recs), nil
}

// failingSource fails to open.
type failingSource struct{}

func (failingSource) Name() string { return "broken.csv" }
func (failingSource) Open(context.Context) (io.ReadCloser, error) {
	return nil, errors.New("permission denied")
}

func TestSession_HappyPath(t *testing.T) {
	s := newTestSession(okCommit)
	ctx := context.Background()

	if got := s.Snapshot().Phase; got != PhaseIdle {
		t.Fatalf("initial phase = %s", got)
	}

	if err := s.LoadFromSource(ctx, TextSource("name,email\nAlice,alice@x.com\nBob,not-an-email")); err != nil {
		t.Fatalf("LoadFromSource() error = %v", err)
	}
	st := s.Snapshot()
	if st.Phase != PhaseParsed || st.Format != FormatCSV {
		t.Fatalf("after load: phase=%s format=%s", st.Phase, st.Format)
	}

	summary, err := s.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if summary.ImportedCount != 1 || len(summary.Rejected) != 1 {
		t.Errorf("summary = %+v", summary)
	}

	st = s.Snapshot()
	if st.Phase != PhaseDone || st.Summary == nil {
		t.Fatalf("after submit: phase=%s summary=%v", st.Phase, st.Summary)
	}
	if lines := st.Summary.Lines(); len(lines) != 1 || lines[0] != "row 2: invalid-email:email" {
		t.Errorf("Lines() = %v", lines)
	}
}

func TestSession_DetectsJSONFromFilename(t *testing.T) {
	s := newTestSession(okCommit)
	src := ReaderSource{Filename: "people.json", Reader: strings.NewReader(`{"name":"A","email":"a@x.com"}`)}
	if err := s.LoadFromSource(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.Format != FormatJSON || st.SourceName != "people.json" {
		t.Errorf("format=%s name=%q", st.Format, st.SourceName)
	}
}

func TestSession_ReadErrorFails(t *testing.T) {
	s := newTestSession(okCommit)
	err := s.LoadFromSource(context.Background(), failingSource{})
	if !errors.Is(err, ErrRead) {
		t.Fatalf("LoadFromSource() error = %v, want ErrRead", err)
	}
	st := s.Snapshot()
	if st.Phase != PhaseFailed || st.ErrorMessage == "" || st.ErrorCode != "FILE002" {
		t.Errorf("snapshot = %+v", st)
	}
}

func TestSession_SourceTooLarge(t *testing.T) {
	s := NewSession(SessionConfig{Schema: nameEmailSchema(), Commit: okCommit, MaxSourceSize: 8})
	err := s.LoadFromSource(context.Background(), TextSource("name,email\nA,a@x.com"))
	if !errors.Is(err, ErrRead) || !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("LoadFromSource() error = %v", err)
	}
	if s.Snapshot().Phase != PhaseFailed {
		t.Error("session should fail")
	}
}

func TestSession_SetFormat(t *testing.T) {
	s := newTestSession(okCommit)

	if err := s.SetFormat(FormatJSON); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetFormat() in idle error = %v, want ErrInvalidTransition", err)
	}

	if err := s.LoadFromSource(context.Background(), TextSource(`name,email`)); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFormat(FormatJSON); err != nil {
		t.Fatalf("SetFormat() error = %v", err)
	}
	st := s.Snapshot()
	if st.Format != FormatJSON || !st.FormatManual || st.Phase != PhaseParsed {
		t.Errorf("snapshot = %+v", st)
	}

	if err := s.SetFormat(Format("xml")); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("SetFormat(xml) error = %v", err)
	}
}

func TestSession_OverriddenFormatIsUsed(t *testing.T) {
	s := newTestSession(okCommit)
	if err := s.LoadFromSource(context.Background(), TextSource("name,email\nA,a@x.com")); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFormat(FormatJSON); err != nil {
		t.Fatal(err)
	}

	_, err := s.Submit(context.Background())
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("Submit() error = %v, want ErrMalformedInput", err)
	}
	st := s.Snapshot()
	if st.Phase != PhaseFailed || st.ErrorCode != "IMP001" {
		t.Errorf("snapshot = %+v", st)
	}
}

func TestSession_SubmitRequiresSource(t *testing.T) {
	s := newTestSession(okCommit)
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit() from idle error = %v", err)
	}
}

func TestSession_SecondSubmitIsNoOp(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	commit := func(_ context.Context, recs []NormalizedRecord) (int, error) {
		calls.Add(1)
		close(started)
		<-release
		return len(recs), nil
	}

	s := newTestSession(commit)
	if err := s.LoadFromSource(context.Background(), TextSource("name,email\nA,a@x.com")); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-started

	if !s.Busy() {
		t.Error("session should be busy while committing")
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("second Submit() error = %v, want ErrSubmitInProgress", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Reset() while submitting error = %v", err)
	}
	if err := s.LoadFromSource(context.Background(), TextSource("x")); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("LoadFromSource() while submitting error = %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("commit called %d times, want 1", n)
	}
	if s.Snapshot().Phase != PhaseDone {
		t.Errorf("phase = %s", s.Snapshot().Phase)
	}
}

func TestSession_CancelAbandonsCommit(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	commit := func(ctx context.Context, recs []NormalizedRecord) (int, error) {
		<-release
		close(finished)
		return len(recs), nil
	}

	s := newTestSession(commit)
	if err := s.LoadFromSource(context.Background(), TextSource("name,email\nA,a@x.com")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	if !errors.Is(err, ErrImportCancelled) {
		t.Fatalf("Submit() error = %v, want ErrImportCancelled", err)
	}
	st := s.Snapshot()
	if st.Phase != PhaseFailed || st.Summary != nil {
		t.Errorf("snapshot = %+v", st)
	}

	// The abandoned commit still runs to completion.
	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("commit did not finish in the background")
	}
	if s.Snapshot().Phase != PhaseFailed {
		t.Error("late commit result must not change the session")
	}
}

func TestSession_ResetAndReload(t *testing.T) {
	s := newTestSession(okCommit)
	ctx := context.Background()

	if err := s.LoadFromSource(ctx, TextSource("name,email\nA,a@x.com")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit() from done error = %v", err)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	st := s.Snapshot()
	if st.Phase != PhaseIdle || st.Summary != nil || st.SourceSize != 0 || st.Format != "" {
		t.Errorf("after reset: %+v", st)
	}

	if _, err := s.Submit(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit() from idle error = %v", err)
	}
	if err := s.LoadFromSource(ctx, TextSource(`[{"name":"B","email":"b@x.com"}]`)); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Format; got != FormatJSON {
		t.Errorf("format = %s, want json", got)
	}
}

func TestSession_IndependentSessions(t *testing.T) {
	a := newTestSession(okCommit)
	b := newTestSession(okCommit)
	ctx := context.Background()

	if err := a.LoadFromSource(ctx, TextSource("name,email\nA,a@x.com")); err != nil {
		t.Fatal(err)
	}
	if b.Snapshot().Phase != PhaseIdle {
		t.Error("loading one session changed another")
	}
}
