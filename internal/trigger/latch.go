package trigger

import (
	"context"
	"sync"
)

// State is the lifecycle of a taken latch. A latch is never released, only
// moved between these states.
type State string

const (
	// Pending is set at acquisition, before the creation request is sent.
	Pending State = "pending"
	// Created records a successful creation.
	Created State = "created"
	// Failed records a failed creation that may be retried manually.
	Failed State = "failed"
)

// Latch is a keyed one-way flag with atomic check-and-set semantics.
type Latch interface {
	// Acquire takes the latch for documentID. It reports false when the latch
	// was already taken, whatever its state.
	Acquire(ctx context.Context, documentID string) (bool, error)
	// Mark records the outcome of the creation guarded by a taken latch.
	Mark(ctx context.Context, documentID string, state State) error
	// Reclaim atomically moves a Failed latch back to Pending. Only one caller
	// can reclaim a given failure.
	Reclaim(ctx context.Context, documentID string) (bool, error)
}

// MemoryLatch keeps latches for the lifetime of the process.
type MemoryLatch struct {
	entries sync.Map
}

type memoryEntry struct {
	mu    sync.Mutex
	state State
}

// NewMemoryLatch creates an empty in-process latch.
func NewMemoryLatch() *MemoryLatch {
	return &MemoryLatch{}
}

func (l *MemoryLatch) Acquire(_ context.Context, documentID string) (bool, error) {
	_, loaded := l.entries.LoadOrStore(documentID, &memoryEntry{state: Pending})
	return !loaded, nil
}

func (l *MemoryLatch) Mark(_ context.Context, documentID string, state State) error {
	v, ok := l.entries.Load(documentID)
	if !ok {
		return nil
	}
	e := v.(*memoryEntry)
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
	return nil
}

func (l *MemoryLatch) Reclaim(_ context.Context, documentID string) (bool, error) {
	v, ok := l.entries.Load(documentID)
	if !ok {
		return false, nil
	}
	e := v.(*memoryEntry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Failed {
		return false, nil
	}
	e.state = Pending
	return true, nil
}
