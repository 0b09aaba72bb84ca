package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dcarowpilot/daily-report-ai/internal/media"
)

// ErrBusy is returned when a session is already running a submission or
// prefill.
var ErrBusy = errors.New("a submission is already in progress")

// Session owns one operator's draft and serializes its submissions.
type Session struct {
	pipeline *Pipeline
	projects []string
	now      func() time.Time

	mu    sync.Mutex
	draft Draft
	state State
	busy  bool
	last  *Result
}

// NewSession creates a session with an empty draft. projects restricts the
// project field; an empty list accepts any project.
func NewSession(p *Pipeline, projects []string) *Session {
	return &Session{
		pipeline: p,
		projects: projects,
		now:      time.Now,
		draft:    NewDraft(),
	}
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastResult returns the result of the last finished submission, or nil.
func (s *Session) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Update applies fn to the draft. The draft ID cannot be changed.
func (s *Session) Update(fn func(d *Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	id := s.draft.ID
	fn(&s.draft)
	s.draft.ID = id
	if s.state.Terminal() {
		s.state = Idle
	}
	return nil
}

// AttachAudio stores a recorded voice note on the draft and clears any
// transcript of a previous recording.
func (s *Session) AttachAudio(f media.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.draft.Audio = f
	s.draft.Transcript = ""
	s.state = Recording
	return nil
}

// Reset discards the draft.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.draft = NewDraft()
	s.state = Idle
	return nil
}

// Submit runs the draft through the pipeline. On success the draft is
// replaced by a new empty one before Submit returns; on failure the draft is
// kept, along with any transcript obtained during the attempt.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if err := s.draft.normalizeHeader(s.now(), s.projects); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.busy = true
	snapshot := s.draft.Clone()
	s.mu.Unlock()

	res := s.pipeline.Run(ctx, snapshot, s.setState)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.last = res
	if res.Err != nil {
		if s.draft.Transcript == "" {
			s.draft.Transcript = res.Transcript
		}
		s.state = Failed
		return res, res.Err
	}
	s.draft = NewDraft()
	s.state = Done
	return res, nil
}

// Prefill transcribes and extracts from the draft's notes and transcript and
// writes the extracted values into its empty structured fields. Fields the
// operator already filled are left alone.
func (s *Session) Prefill(ctx context.Context) ([]Notice, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	snapshot := s.draft.Clone()
	s.mu.Unlock()

	r := &Result{DraftID: snapshot.ID}
	s.setState(Transcribing)
	snapshot.Transcript = s.pipeline.transcribe(ctx, snapshot, r)
	s.setState(Extracting)
	snapshot.AutoExtract = true
	extracted := s.pipeline.extract(ctx, snapshot, r)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.state = Idle
	if s.draft.Transcript == "" {
		s.draft.Transcript = snapshot.Transcript
	}
	s.draft.prefill(extracted)
	return r.Notices, nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
