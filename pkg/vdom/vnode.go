package vdom

import "sync/atomic"

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement   VKind = iota // <div>, <button>, etc.
	KindText                   // Plain text node
	KindFragment               // Grouping without wrapper
	KindComponent              // Component boundary
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	case KindComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// NodeID identifies one VNode instance. IDs are process-unique and
// never reused. During a diff, a matched new node takes over the old
// node's ID so the live render target keeps a stable identity across
// render passes.
type NodeID uint64

// None is the zero NodeID. As an insert/move anchor it means "append".
var idCounter atomic.Uint64

func nextNodeID() NodeID {
	return NodeID(idCounter.Add(1))
}

// VNode is a virtual DOM node. Fields are set at construction and must
// be treated as read-only afterwards; the diff step is the only code
// that writes to an existing node (it transfers the ID of a matched
// old node onto its replacement).
type VNode struct {
	ID       NodeID
	Kind     VKind
	Tag      string   // Element tag name (e.g., "div")
	Key      string   // Reconciliation key, optional
	Props    Props    // Typed attributes, styles, and event bindings
	Children []*VNode // Ordered child nodes
	Text     string   // For KindText
}

// Element creates an element node.
func Element(tag string, props Props, children ...*VNode) *VNode {
	return &VNode{
		ID:       nextNodeID(),
		Kind:     KindElement,
		Tag:      tag,
		Props:    props,
		Children: children,
	}
}

// Text creates a text node.
func Text(text string) *VNode {
	return &VNode{
		ID:   nextNodeID(),
		Kind: KindText,
		Text: text,
	}
}

// Fragment creates a fragment: children rendered with no wrapper
// element of their own.
func Fragment(children ...*VNode) *VNode {
	return &VNode{
		ID:       nextNodeID(),
		Kind:     KindFragment,
		Children: children,
	}
}

// ComponentNode wraps a component's rendered output in a component
// boundary. Like fragments, boundaries contribute no markup.
func ComponentNode(children ...*VNode) *VNode {
	return &VNode{
		ID:       nextNodeID(),
		Kind:     KindComponent,
		Children: children,
	}
}

// WithKey sets the reconciliation key. It returns the receiver so keys
// can be attached at construction sites.
func (v *VNode) WithKey(key string) *VNode {
	v.Key = key
	return v
}

// Component is anything that can render to a VNode. View evaluation is
// external to the core: the engine only ever consumes the trees a
// Component produces.
type Component interface {
	Render() *VNode
}

// FuncComponent wraps a render function.
type FuncComponent struct {
	render func() *VNode
}

// Render implements Component.
func (f *FuncComponent) Render() *VNode {
	return f.render()
}

// Func creates a component from a render function.
func Func(render func() *VNode) Component {
	return &FuncComponent{render: render}
}

// Equal reports structural equality of two trees: kind, tag, key, text,
// props (by printable value), and children, in order. NodeIDs are
// per-instance and never take part in equality.
func Equal(a, b *VNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Tag != b.Tag || a.Key != b.Key {
		return false
	}
	if a.Kind == KindText && a.Text != b.Text {
		return false
	}
	if !a.Props.equal(b.Props) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}
