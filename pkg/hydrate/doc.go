// Package hydrate attaches live behavior to markup that was rendered
// by the serializer, without reproducing its structure.
//
// The hydrator walks a VNode tree and a live tree in lockstep,
// verifying node-by-node agreement: identity markers where present,
// kind and tag consistency otherwise. Verified elements get their
// event bindings attached exactly once through the render target's
// registration calls; no other property is touched. Text content that
// drifted between server and client rendering is overwritten to match
// the tree, which is a repair, not a failure.
//
// Each node moves through Unvisited, Verifying, and then either
// Hydrated (terminal, idempotent) or Mismatched (terminal for that
// subtree only). Mismatches do not abort unrelated subtrees, but any
// mismatch marks the whole pass unsuccessful so the caller can fall
// back to a full reconciliation render.
//
// Three strategies are supported: eager (Hydrate), progressive
// (Progressive, a resumable batch stepper that can be driven by any
// scheduler and abandoned between batches), and selective (Selective,
// hydrating only named node identities, optionally cascading to their
// descendants).
package hydrate
