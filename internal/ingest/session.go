package ingest

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/intake/internal/classifier"
)

// Input is the caller-supplied context for a session.
type Input struct {
	OwnerEntityID string
	// DeclaredType skips classification when set.
	DeclaredType  classifier.DocumentType
	IdentityHints map[string]string
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	SessionID     uuid.UUID               `json:"session_id"`
	FileKey       string                  `json:"file_key,omitempty"`
	Filename      string                  `json:"filename,omitempty"`
	DocumentID    string                  `json:"document_id,omitempty"`
	OwnerEntityID string                  `json:"owner_entity_id"`
	DeclaredType  classifier.DocumentType `json:"declared_type,omitempty"`
	Status        Status                  `json:"status"`
	Attempts      int                     `json:"attempts"`
	StartedAt     time.Time               `json:"started_at,omitzero"`
	DeadlineAt    time.Time               `json:"deadline_at,omitzero"`
	Result        json.RawMessage         `json:"result,omitempty"`
	Partial       json.RawMessage         `json:"partial,omitempty"`
	Error         *Error                  `json:"error,omitempty"`
	SoftErrors    []Error                 `json:"soft_errors,omitempty"`
	EvaluationID  string                  `json:"evaluation_id,omitempty"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// Message returns the message class for a terminal snapshot.
func (s Snapshot) Message() (MessageClass, bool) {
	return s.Status.MessageClass()
}

// Err returns the terminal failure of the snapshot, or nil when the session
// succeeded or is still running. A timed-out session reports CodePollTimeout.
func (s Snapshot) Err() error {
	switch s.Status {
	case StatusExtractFailed, StatusTransferFailed:
		if s.Error != nil {
			return s.Error
		}
		return &Error{Code: string(s.Status), Message: "no detail"}
	case StatusTimedOut:
		return &Error{Code: CodePollTimeout, Message: "extraction still pending at deadline"}
	}
	return nil
}

// Session is one file's journey from selection to a terminal status.
// Only the runner mutates a session; readers take snapshots.
type Session struct {
	mu    sync.RWMutex
	state Snapshot
	input Input
}

func newSession(key, filename string, input Input) *Session {
	return &Session{
		state: Snapshot{
			SessionID:     uuid.New(),
			FileKey:       key,
			Filename:      filename,
			OwnerEntityID: input.OwnerEntityID,
			DeclaredType:  input.DeclaredType,
			Status:        StatusIdle,
			UpdatedAt:     time.Now(),
		},
		input: input,
	}
}

// NewSession creates an idle session for file.
func NewSession(file File, input Input) *Session {
	return newSession(file.Key, file.Name, input)
}

// ID returns the locally generated session id.
func (s *Session) ID() uuid.UUID {
	return s.state.SessionID
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.state
	snap.SoftErrors = slices.Clone(s.state.SoftErrors)
	if s.state.Error != nil {
		e := *s.state.Error
		snap.Error = &e
	}
	return snap
}

func (s *Session) fileKey() string {
	return s.state.FileKey
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status
}

// DocumentID returns the backend document id, empty before a slot is issued.
func (s *Session) DocumentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.DocumentID
}

// transition moves the session to next and applies mutate to the state in the
// same critical section. The document id, once set, cannot change.
func (s *Session) transition(next Status, mutate func(*Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state.Status
	if !from.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}

	updated := s.state
	if mutate != nil {
		mutate(&updated)
	}
	updated.Status = next

	if s.state.DocumentID != "" && updated.DocumentID != s.state.DocumentID {
		return fmt.Errorf("%w: document id reassigned", ErrInvalidTransition)
	}

	required, forbidden := next.holdsDocument()
	if required && updated.DocumentID == "" {
		return fmt.Errorf("%w: %s requires a document id", ErrInvalidTransition, next)
	}
	if forbidden && updated.DocumentID != "" {
		return fmt.Errorf("%w: %s cannot hold a document id", ErrInvalidTransition, next)
	}

	updated.UpdatedAt = time.Now()
	s.state = updated
	return nil
}

func (s *Session) update(mutate func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.state)
	s.state.UpdatedAt = time.Now()
}

func (s *Session) addSoftError(code, message string) {
	s.update(func(st *Snapshot) {
		st.SoftErrors = append(st.SoftErrors, Error{Code: code, Message: message})
	})
}
