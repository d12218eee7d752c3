package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	snap := &Snapshot{
		SessionID: "s-1",
		Markup:    "<div data-raven-id=\"r1\"></div>",
		Tree:      []byte{0x01, 0x02},
		Seq:       7,
	}
	if err := store.Put(ctx, snap); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Markup != snap.Markup || got.Seq != 7 || len(got.Tree) != 2 {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}

	// Mutating the returned copy must not affect the store.
	got.Markup = "changed"
	again, _ := store.Get(ctx, "s-1")
	if again.Markup != snap.Markup {
		t.Error("store returned a shared snapshot")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, &Snapshot{SessionID: "s-1", Seq: 1})
	store.Put(ctx, &Snapshot{SessionID: "s-1", Seq: 2})
	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Seq != 2 {
		t.Errorf("Seq = %d, want 2 (replaced)", got.Seq)
	}

	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "s-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v after delete, want ErrNotFound", err)
	}
	// Double delete is fine.
	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Put(ctx, &Snapshot{SessionID: "old", CreatedAt: time.Now().Add(-2 * time.Hour)})
	store.Put(ctx, &Snapshot{SessionID: "new"})

	if err := store.Cleanup(ctx, time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Error("expired snapshot survived cleanup")
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Errorf("fresh snapshot removed: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestSnapshotCodecRoundTrip(t *testing.T) {
	snap := &Snapshot{Seq: 12, Markup: "<p>x</p>", Tree: []byte{9, 8, 7}}
	got, err := decodeSnapshot(encodeSnapshot(snap))
	if err != nil {
		t.Fatal(err)
	}
	if got.Seq != 12 || got.Markup != snap.Markup || len(got.Tree) != 3 {
		t.Errorf("got %+v", got)
	}
}
