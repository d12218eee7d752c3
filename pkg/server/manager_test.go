package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/raven-ui/raven/pkg/snapshot"
	"github.com/raven-ui/raven/pkg/vdom"
)

func newTestManager(store snapshot.Store, window time.Duration, max int) *Manager {
	root := func() vdom.Component { return &counter{} }
	return NewManager(root, window, max, store, testLogger(), NewMetrics(), otel.Tracer("test"))
}

func TestManagerCreatePersistsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	m := newTestManager(store, time.Minute, 0)

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.Get(s.ID); !ok {
		t.Error("session not registered")
	}

	snap, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("initial snapshot missing: %v", err)
	}
	if snap.Markup == "" {
		t.Error("snapshot has no markup")
	}
}

func TestManagerSessionLimit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(snapshot.NewMemoryStore(), time.Minute, 1)

	if _, err := m.Create(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Create(ctx); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("err = %v, want ErrTooManySessions", err)
	}
}

func TestManagerResumeFromMemory(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(snapshot.NewMemoryStore(), time.Minute, 0)

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}

	got, needResync, err := m.Resume(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != s {
		t.Error("resume returned a different session")
	}
	if needResync {
		t.Error("in-memory resume must not force a resync")
	}
}

func TestManagerResumeFromStore(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()

	// First process: create a session, advance it, go away.
	m1 := newTestManager(store, time.Minute, 0)
	s1, err := m1.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s1.sendSeq.Store(42)
	m1.Detach(ctx, s1)

	// Second process shares only the store.
	m2 := newTestManager(store, time.Minute, 0)
	s2, needResync, err := m2.Resume(ctx, s1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !needResync {
		t.Error("store resume must force a resync")
	}
	if s2.ID != s1.ID {
		t.Errorf("ID = %q, want %q", s2.ID, s1.ID)
	}
	if s2.Seq() <= 42 {
		t.Errorf("Seq = %d, must continue past the stored stream", s2.Seq())
	}
}

func TestManagerResumeUnknown(t *testing.T) {
	m := newTestManager(snapshot.NewMemoryStore(), time.Minute, 0)
	if _, _, err := m.Resume(context.Background(), "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerReapEvictsExpired(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(snapshot.NewMemoryStore(), 10*time.Millisecond, 0)

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	m.Detach(ctx, s)
	time.Sleep(20 * time.Millisecond)

	m.reap()
	if _, ok := m.Get(s.ID); ok {
		t.Error("expired session still in memory")
	}
	if !s.IsClosed() {
		t.Error("expired session not closed")
	}
}

func TestManagerReapSparesAttached(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(snapshot.NewMemoryStore(), time.Nanosecond, 0)

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s.detachedAt.Store(0) // pretend a connection is bound

	m.reap()
	if _, ok := m.Get(s.ID); !ok {
		t.Error("attached session was reaped")
	}
}

func TestManagerRemoveDeletesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	m := newTestManager(store, time.Minute, 0)

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	m.Remove(ctx, s.ID)

	if _, ok := m.Get(s.ID); ok {
		t.Error("session still registered")
	}
	if _, err := store.Get(ctx, s.ID); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("snapshot err = %v, want ErrNotFound", err)
	}
}

func TestManagerShutdownPersistsSessions(t *testing.T) {
	ctx := context.Background()
	store := snapshot.NewMemoryStore()
	m := newTestManager(store, time.Minute, 0)
	m.Start(time.Hour)

	s, err := m.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s.sendSeq.Store(7)

	m.Shutdown(ctx)
	if m.Len() != 0 {
		t.Errorf("Len = %d after shutdown", m.Len())
	}
	snap, err := store.Get(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Seq != 7 {
		t.Errorf("snapshot Seq = %d, want 7", snap.Seq)
	}
}
