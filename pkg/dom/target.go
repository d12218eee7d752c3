package dom

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/raven-ui/raven/pkg/vdom"
)

// Markup contract attributes shared by the serializer and the
// hydrator. Changing any of these breaks hydration of markup produced
// by earlier versions.
const (
	// MarkerAttr carries a node's stable identity ("r<NodeID>") on
	// every serialized element.
	MarkerAttr = "data-raven-id"

	// KeyAttr carries the application key, present only when set.
	KeyAttr = "data-raven-key"

	// FragmentAttr marks the inert boundary element emitted before a
	// fragment's children.
	FragmentAttr = "data-raven-f"

	// SuspenseAttr marks the placeholder for a suspended subtree in
	// streaming output.
	SuspenseAttr = "data-raven-s"
)

// MarkerFor returns the serialized identity marker for a NodeID.
func MarkerFor(id vdom.NodeID) string {
	return "r" + strconv.FormatUint(uint64(id), 10)
}

// HandlerToken identifies one attached event callback. Tokens are
// opaque: they exist so application callbacks are marshaled into the
// surface's native event representation at most once per node lifetime.
type HandlerToken uint64

// ErrUnknownNode is returned when a patch addresses a NodeID with no
// registry entry. Given correct patch ordering this cannot happen, so
// it is surfaced as a programming-error-class fault rather than
// ignored.
var ErrUnknownNode = errors.New("dom: no registry entry for node")

// ErrUnknownToken is returned by Dispatch for a token that is not (or
// no longer) attached.
var ErrUnknownToken = errors.New("dom: no handler for token")

// Target is the render-target adapter for one render root: the live
// tree, the NodeID registry, and the event dispatch table. A Target is
// confined to a single goroutine.
type Target struct {
	root     *Node
	nodes    map[vdom.NodeID]*Node
	ids      map[*Node]vdom.NodeID // reverse index for subtree teardown
	handlers map[HandlerToken]vdom.Handler
	tokenSeq uint64
}

// NewTarget creates an empty render target with a detached root
// container.
func NewTarget() *Target {
	return NewTargetAt(newElementNode("#root"))
}

// NewTargetAt creates a render target whose root is an existing live
// node, typically parsed from serialized markup for hydration.
func NewTargetAt(root *Node) *Target {
	return &Target{
		root:     root,
		nodes:    make(map[vdom.NodeID]*Node),
		ids:      make(map[*Node]vdom.NodeID),
		handlers: make(map[HandlerToken]vdom.Handler),
	}
}

// Root returns the root container node.
func (t *Target) Root() *Node { return t.root }

// Lookup returns the live node registered for id.
func (t *Target) Lookup(id vdom.NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Size returns the number of registered nodes.
func (t *Target) Size() int { return len(t.nodes) }

// Adopt records an existing live node under id without structural
// change. It is the registration call the hydrator uses to take
// ownership of server-rendered nodes.
func (t *Target) Adopt(id vdom.NodeID, n *Node) {
	t.nodes[id] = n
	t.ids[n] = id
}

// Bind attaches an application callback for one event on a live node
// and returns its fresh token. A previous binding for the same event
// is detached first; callback ownership transfers to the dispatch
// table until detach.
func (t *Target) Bind(n *Node, event string, h vdom.Handler) HandlerToken {
	if old, ok := n.listeners[event]; ok {
		delete(t.handlers, old)
	}
	t.tokenSeq++
	tok := HandlerToken(t.tokenSeq)
	t.handlers[tok] = h
	n.listeners[event] = tok
	return tok
}

// Unbind detaches the callback for one event on a live node.
func (t *Target) Unbind(n *Node, event string) {
	if tok, ok := n.listeners[event]; ok {
		delete(t.handlers, tok)
		delete(n.listeners, event)
	}
}

// SetText overwrites a live text node's content in place. It exists
// for the hydrator's text-drift repair; structural changes always go
// through Apply.
func (t *Target) SetText(n *Node, text string) {
	if n.kind == NodeText {
		n.text = text
	}
}

// Dispatch is the single event entry point: it forwards an event to
// the callback registered under the token.
func (t *Target) Dispatch(tok HandlerToken, ev vdom.Event) error {
	h, ok := t.handlers[tok]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownToken, tok)
	}
	h(ev)
	return nil
}

// HandlerCount returns the number of live callback registrations.
func (t *Target) HandlerCount() int { return len(t.handlers) }
