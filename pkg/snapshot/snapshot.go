// Package snapshot persists session render state so a client can
// resume after a disconnect that outlives the live session. A snapshot
// holds the serialized markup of the last cold render and the encoded
// view tree; a resumed session hydrates against the markup and diffs
// against the tree.
package snapshot

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no snapshot exists for a session.
var ErrNotFound = errors.New("snapshot: not found")

// Snapshot is one session's persisted render state.
type Snapshot struct {
	// SessionID names the owning session.
	SessionID string

	// Markup is the serialized markup of the last full render.
	Markup string

	// Tree is the wire-encoded view tree matching Markup.
	Tree []byte

	// Seq is the patch sequence the snapshot corresponds to.
	Seq uint64

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time
}

// Store is the interface for snapshot storage backends.
type Store interface {
	// Put stores a snapshot, replacing any previous one for the same
	// session.
	Put(ctx context.Context, s *Snapshot) error

	// Get returns the snapshot for a session, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (*Snapshot, error)

	// Delete removes a session's snapshot. Deleting a missing
	// snapshot is not an error.
	Delete(ctx context.Context, sessionID string) error

	// Cleanup removes snapshots older than maxAge. Call it
	// periodically.
	Cleanup(ctx context.Context, maxAge time.Duration) error
}
