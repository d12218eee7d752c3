package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/raven-ui/raven/pkg/snapshot"
	"github.com/raven-ui/raven/pkg/vdom"
)

// ErrSessionNotFound is returned when a session ID matches neither a
// live session nor a stored snapshot.
var ErrSessionNotFound = errors.New("server: session not found")

// ErrTooManySessions is returned when the session cap is reached.
var ErrTooManySessions = errors.New("server: session limit reached")

// Manager owns the live session set. Disconnected sessions stay
// resumable in memory for the resume window; beyond that they are
// evicted, and the snapshot store is the only way back.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	root         func() vdom.Component
	resumeWindow time.Duration
	maxSessions  int
	store        snapshot.Store

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager creates a session manager. root is called once per
// session to build its component instance. maxSessions of 0 means
// unlimited.
func NewManager(root func() vdom.Component, resumeWindow time.Duration, maxSessions int, store snapshot.Store, logger *slog.Logger, metrics *Metrics, tracer trace.Tracer) *Manager {
	return &Manager{
		sessions:     make(map[string]*Session),
		root:         root,
		resumeWindow: resumeWindow,
		maxSessions:  maxSessions,
		store:        store,
		logger:       logger.With("component", "session-manager"),
		metrics:      metrics,
		tracer:       tracer,
		stop:         make(chan struct{}),
	}
}

// Create mounts a new session and persists its initial snapshot so a
// client can still hydrate after a server restart.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.mu.Unlock()

	s := newSession(uuid.NewString(), m.root(), m.logger, m.metrics, m.tracer)
	if err := s.Mount(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.metrics.SessionsTotal.Inc()
	m.metrics.SessionsActive.Inc()

	if err := m.persist(ctx, s); err != nil {
		m.logger.Warn("initial snapshot failed", "session", s.ID, "error", err)
	}
	return s, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Resume returns the session for id, rebuilding it from the snapshot
// store if it is no longer in memory. The returned flag is true when
// the session was rebuilt and the client must take a full resync: a
// rebuilt session starts from a fresh component instance, so its tree
// no longer matches what the client rendered.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, bool, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok && !s.IsClosed() {
		m.metrics.SessionsResumed.Inc()
		return s, false, nil
	}

	snap, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) {
			return nil, false, ErrSessionNotFound
		}
		return nil, false, fmt.Errorf("server: resume %s: %w", id, err)
	}

	s = newSession(snap.SessionID, m.root(), m.logger, m.metrics, m.tracer)
	if err := s.Mount(); err != nil {
		return nil, false, err
	}
	// Sequence numbers continue past the stored stream so the client
	// never sees a duplicate.
	s.sendSeq.Store(snap.Seq + 1)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.metrics.SessionsResumed.Inc()
	m.metrics.SessionsActive.Inc()
	m.logger.Info("session restored from snapshot", "session", s.ID, "seq", snap.Seq)
	return s, true, nil
}

// Remove closes a session and deletes its snapshot.
func (m *Manager) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	m.metrics.SessionsActive.Dec()
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Warn("snapshot delete failed", "session", id, "error", err)
	}
}

// Detach records a disconnect and persists the session so it can be
// resumed later, even from another process.
func (m *Manager) Detach(ctx context.Context, s *Session) {
	s.detach()
	if err := m.persist(ctx, s); err != nil {
		m.logger.Warn("detach snapshot failed", "session", s.ID, "error", err)
	}
}

// Len returns the number of sessions in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start launches the background reaper that evicts sessions whose
// resume window has passed.
func (m *Manager) Start(interval time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.reap()
			case <-m.stop:
				return
			}
		}
	}()
}

// Shutdown persists every live session and closes them all.
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := m.persist(ctx, s); err != nil {
			m.logger.Warn("shutdown snapshot failed", "session", s.ID, "error", err)
		}
		s.Close()
		m.metrics.SessionsActive.Dec()
	}
}

// reap evicts sessions detached longer than the resume window. Their
// snapshots stay in the store until the store's own cleanup removes
// them.
func (m *Manager) reap() {
	cutoff := time.Now().Add(-m.resumeWindow)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		since := s.DetachedSince()
		if !since.IsZero() && since.Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.metrics.SessionsActive.Dec()
		m.metrics.SessionsExpired.Inc()
		m.logger.Info("session expired", "session", s.ID)
	}
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	return m.store.Put(ctx, snap)
}
