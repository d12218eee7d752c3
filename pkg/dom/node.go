package dom

import (
	"sort"
	"strings"

	"github.com/raven-ui/raven/pkg/vdom"
)

// NodeKind is the physical node type.
type NodeKind uint8

const (
	NodeElement NodeKind = iota
	NodeText
)

// Node is a live node on the render surface. Nodes are opaque handles:
// only this package mutates them, and they are confined to the
// goroutine that owns their Target.
type Node struct {
	kind      NodeKind
	tag       string
	text      string
	attrs     map[string]string
	bools     map[string]bool
	styles    map[string]string
	parent    *Node
	children  []*Node
	listeners map[string]HandlerToken // event name -> token
}

// Kind returns the physical node kind.
func (n *Node) Kind() NodeKind { return n.kind }

// Tag returns the element tag name, empty for text nodes.
func (n *Node) Tag() string { return n.tag }

// Text returns the text content of a text node.
func (n *Node) Text() string { return n.text }

// Parent returns the parent node, nil at the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the ordered child list. The returned slice must not
// be modified.
func (n *Node) Children() []*Node { return n.children }

// Attr returns the value of an attribute and whether it is set.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// HasBool reports whether a boolean attribute is present.
func (n *Node) HasBool(name string) bool { return n.bools[name] }

// StyleValue returns one style entry's value.
func (n *Node) StyleValue(name string) (string, bool) {
	v, ok := n.styles[name]
	return v, ok
}

// StyleString returns the node's composite style declaration, entries
// sorted by name, matching the serializer's emission.
func (n *Node) StyleString() string {
	if len(n.styles) == 0 {
		return ""
	}
	names := make([]string, 0, len(n.styles))
	for name := range n.styles {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(n.styles[name])
	}
	return b.String()
}

// Listener returns the handler token bound for an event name.
func (n *Node) Listener(event string) (HandlerToken, bool) {
	t, ok := n.listeners[event]
	return t, ok
}

// Marker returns the identity marker carried by the node's markup, if
// any ("r<NodeID>", set by the serializer).
func (n *Node) Marker() string {
	return n.attrs[MarkerAttr]
}

func newElementNode(tag string) *Node {
	return &Node{
		kind:      NodeElement,
		tag:       tag,
		attrs:     make(map[string]string),
		bools:     make(map[string]bool),
		styles:    make(map[string]string),
		listeners: make(map[string]HandlerToken),
	}
}

func newTextNode(text string) *Node {
	return &Node{kind: NodeText, text: text}
}

// indexOf returns the child's position under n, or -1.
func (n *Node) indexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// insertChild places child at index i, appending when i is out of range.
func (n *Node) insertChild(child *Node, i int) {
	child.parent = n
	if i < 0 || i >= len(n.children) {
		n.children = append(n.children, child)
		return
	}
	n.children = append(n.children, nil)
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child
}

// removeChild detaches child from n.
func (n *Node) removeChild(child *Node) {
	i := n.indexOf(child)
	if i < 0 {
		return
	}
	n.children = append(n.children[:i], n.children[i+1:]...)
	child.parent = nil
}

// setProp applies one vdom prop to the live node.
func (n *Node) setProp(p vdom.Prop) {
	switch p.Kind {
	case vdom.PropAttr:
		n.attrs[p.Name] = p.Value
	case vdom.PropBool:
		if p.Bool {
			n.bools[p.Name] = true
		} else {
			delete(n.bools, p.Name)
		}
	case vdom.PropStyle:
		n.styles[p.Name] = p.Value
	}
}

// clearProp removes the prop identified by its vdom prop key.
func (n *Node) clearProp(key string) {
	switch {
	case strings.HasPrefix(key, "style:"):
		delete(n.styles, strings.TrimPrefix(key, "style:"))
	default:
		delete(n.attrs, key)
		delete(n.bools, key)
	}
}
