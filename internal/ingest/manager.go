package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type managed struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// Manager owns the sessions of one view. It keeps at most one session per
// file key and runs sessions concurrently.
type Manager struct {
	runner *Runner
	logger *slog.Logger

	mu       sync.Mutex
	byFile   map[string]*managed
	byID     map[uuid.UUID]*managed
	closed   bool
	wg       sync.WaitGroup
	onFinish func(Snapshot, error)
}

// NewManager creates a Manager. onFinish, when non-nil, is called once per
// session after Run returns.
func NewManager(runner *Runner, logger *slog.Logger, onFinish func(Snapshot, error)) *Manager {
	return &Manager{
		runner:   runner,
		logger:   logger.With("system", "sessions"),
		byFile:   make(map[string]*managed),
		byID:     make(map[uuid.UUID]*managed),
		onFinish: onFinish,
	}
}

// Attach starts a new session for file. An existing session for the same file
// key is canceled and replaced; a terminal one is dropped rather than reused.
func (m *Manager) Attach(ctx context.Context, file File, input Input) (*Session, error) {
	if input.OwnerEntityID == "" {
		return nil, ErrOwnerRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	if prev, ok := m.byFile[file.Key]; ok {
		prev.cancel()
		delete(m.byID, prev.session.ID())
		m.logger.Info(
			"session replaced",
			"file", file.Key,
			"previous_session", prev.session.ID(),
			"previous_status", prev.session.Status(),
		)
	}

	sctx, cancel := context.WithCancel(ctx)
	entry := &managed{
		session: NewSession(file, input),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.byFile[file.Key] = entry
	m.byID[entry.session.ID()] = entry

	m.wg.Go(func() {
		defer close(entry.done)
		defer cancel()

		err := m.runner.Run(sctx, entry.session, file)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("session stopped", "session_id", entry.session.ID(), "error", err)
		}
		if m.onFinish != nil {
			m.onFinish(entry.session.Snapshot(), err)
		}
	})

	return entry.session, nil
}

// Remove cancels and forgets a session. It reports whether the session existed.
func (m *Manager) Remove(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.byID[id]
	if !ok {
		return false
	}

	entry.cancel()
	delete(m.byID, id)
	if cur, ok := m.byFile[entry.session.fileKey()]; ok && cur == entry {
		delete(m.byFile, entry.session.fileKey())
	}
	return true
}

// Get returns the session with id.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// Done returns a channel closed when the session's run has returned.
func (m *Manager) Done(id uuid.UUID) (<-chan struct{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return entry.done, true
}

// Snapshots returns the state of every session currently held.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Snapshot, 0, len(m.byID))
	for _, entry := range m.byID {
		out = append(out, entry.session.Snapshot())
	}
	return out
}

// Close cancels every session and refuses further attachments.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for _, entry := range m.byID {
		entry.cancel()
	}
}

// Wait blocks until every started session has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
