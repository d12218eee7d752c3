// Package server hosts live view sessions over HTTP and WebSocket.
//
// A cold request renders the component tree to markup and embeds a
// session ID in the page. The client then connects to the WebSocket
// endpoint, completes the handshake, and from that point on every
// event it sends is dispatched into the session's component, the tree
// is re-rendered and diffed, and the resulting patches are pushed back
// as binary frames.
//
// Each session keeps a server-side mirror of the client's node tree.
// Applying every patch set to the mirror before sending it keeps the
// two sides aligned and gives handler dispatch a registry to resolve
// tokens against.
package server
