// Package dom is Raven's render-target adapter: it owns the live node
// tree, the NodeID registry, and the event dispatch table, and applies
// patch lists produced by the reconciler.
//
// A Target corresponds to one render root. All of its methods must be
// called from a single goroutine; live node handles never cross that
// boundary. The registry maps every mounted NodeID to its live node and
// every handler token to the application callback it was attached with.
// Registry entries are created, relocated, and destroyed strictly as a
// side effect of patch application (and of hydration, which adopts
// already-present nodes through the same registration calls).
//
// Event flow: the render surface reports an event carrying an opaque
// HandlerToken; Dispatch looks the token up and forwards to the
// registered callback. Application code never sees tokens.
package dom
