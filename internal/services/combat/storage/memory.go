package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps documents in process memory. It is used by tests and by
// peers that never hold authority.
type MemoryStore struct {
	mu        sync.Mutex
	docs      map[string]Snapshot
	worldTime time.Duration
	closed    bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Snapshot)}
}

// Load returns the latest snapshot for scope.
func (s *MemoryStore) Load(ctx context.Context, scope string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	scope, err := NormalizeScope(scope)
	if err != nil {
		return Snapshot{}, err
	}
	if s == nil {
		return Snapshot{}, ErrNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrNotConfigured
	}
	return s.snapshotLocked(scope), nil
}

// Update applies fn under the store lock.
func (s *MemoryStore) Update(ctx context.Context, scope string, fn UpdateFunc) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	scope, err := NormalizeScope(scope)
	if err != nil {
		return Snapshot{}, err
	}
	if s == nil {
		return Snapshot{}, ErrNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrNotConfigured
	}
	next, err := Apply(s.snapshotLocked(scope), fn)
	if err != nil {
		return Snapshot{}, err
	}
	s.docs[scope] = Snapshot{Scope: scope, State: next.State.Clone(), Version: next.Version}
	s.worldTime = next.WorldTime
	return next, nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) snapshotLocked(scope string) Snapshot {
	snap, ok := s.docs[scope]
	if !ok {
		return Empty(scope, s.worldTime)
	}
	snap.State = snap.State.Clone()
	snap.WorldTime = s.worldTime
	return snap
}
