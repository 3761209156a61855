// Package session owns the per-browser state of the console: the configured API URL and the
// submission in flight. Sessions are independent of each other.
package session

import (
	"context"
	"errors"
	"sync"
)

// State is the submission lifecycle: idle → uploading → succeeded|failed → idle.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

var (
	// ErrDuplicateSubmission is returned when the same image is submitted while it is still in flight.
	ErrDuplicateSubmission = errors.New("this image is already being processed")
	// ErrSuperseded is returned for a submission whose result arrived after it was canceled or replaced.
	ErrSuperseded = errors.New("the submission was canceled or replaced by a newer one; its result was discarded")
)

type Session struct {
	ID string

	mu         sync.Mutex
	baseURL    string
	state      State
	generation uint64
	cancel     context.CancelFunc
	digest     string
}

// Snapshot is a consistent copy of the session for rendering.
type Snapshot struct {
	ID       string `json:"id"`
	BaseURL  string `json:"api_url"`
	State    State  `json:"state"`
	InFlight bool   `json:"in_flight"`
}

func newSession(id, baseURL string) *Session {
	return &Session{ID: id, baseURL: baseURL, state: StateIdle}
}

func (s *Session) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{ID: s.ID, BaseURL: s.baseURL, State: s.state, InFlight: s.state == StateUploading}
}

func (s *Session) setBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = baseURL
}

// acknowledge returns a finished session to idle; called on the next user action.
func (s *Session) acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSucceeded || s.state == StateFailed {
		s.state = StateIdle
	}
}

// begin starts a submission of the image identified by digest. A submission of different
// content cancels the one in flight; the same content is rejected.
func (s *Session) begin(parent context.Context, digest string) (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateUploading {
		if s.digest == digest {
			return nil, 0, ErrDuplicateSubmission
		}
		s.cancel()
	}

	ctx, cancel := context.WithCancel(parent)
	s.generation++
	s.cancel = cancel
	s.digest = digest
	s.state = StateUploading
	return ctx, s.generation, nil
}

// finish records the outcome of submission gen. It reports false when gen is stale,
// in which case the outcome must be discarded.
func (s *Session) finish(gen uint64, succeeded bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation || s.state != StateUploading {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.digest = ""
	if succeeded {
		s.state = StateSucceeded
	} else {
		s.state = StateFailed
	}
	return true
}

// abort cancels the submission in flight, if any.
func (s *Session) abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUploading {
		return false
	}
	s.cancel()
	s.cancel = nil
	s.digest = ""
	s.generation++
	s.state = StateIdle
	return true
}
