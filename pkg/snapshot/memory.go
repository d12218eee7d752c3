package snapshot

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in process memory. It is the default
// backend for single-node deployments; snapshots do not survive a
// restart.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*Snapshot),
	}
}

// Put stores a snapshot, replacing any previous one for the session.
func (m *MemoryStore) Put(_ context.Context, s *Snapshot) error {
	cp := *s
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.snapshots[s.SessionID] = &cp
	m.mu.Unlock()
	return nil
}

// Get returns the snapshot for a session, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Snapshot, error) {
	m.mu.RLock()
	s, ok := m.snapshots[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// Delete removes a session's snapshot.
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.snapshots, sessionID)
	m.mu.Unlock()
	return nil
}

// Cleanup removes snapshots older than maxAge.
func (m *MemoryStore) Cleanup(_ context.Context, maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)
	m.mu.Lock()
	for id, s := range m.snapshots {
		if s.CreatedAt.Before(cutoff) {
			delete(m.snapshots, id)
		}
	}
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored snapshots.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}
