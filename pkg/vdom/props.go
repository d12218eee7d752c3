package vdom

import (
	"reflect"
	"sort"
	"strings"
)

// PropKind discriminates the closed property union.
type PropKind uint8

const (
	PropAttr  PropKind = iota // Plain string attribute
	PropBool                  // Boolean attribute, present or absent
	PropStyle                 // One style declaration entry
	PropEvent                 // Event binding
)

// String returns the string representation of the PropKind.
func (k PropKind) String() string {
	switch k {
	case PropAttr:
		return "Attr"
	case PropBool:
		return "Bool"
	case PropStyle:
		return "Style"
	case PropEvent:
		return "Event"
	default:
		return "Unknown"
	}
}

// Event is the payload delivered to an event handler.
type Event struct {
	Name   string // "click", "input", ...
	Target NodeID // Node the binding was attached to
	Value  string // Surface-supplied value, if any
}

// Handler is an application event callback. Handlers are retained only
// by the render target's dispatch table; the engine never calls them
// directly.
type Handler func(Event)

// Prop is one settable node property: an attribute, a boolean
// attribute, a style entry, or an event binding.
type Prop struct {
	Kind    PropKind
	Name    string // Attribute/style/event name
	Value   string // For PropAttr and PropStyle
	Bool    bool   // For PropBool
	Handler Handler
}

// Attr creates a string attribute.
func Attr(name, value string) Prop {
	return Prop{Kind: PropAttr, Name: name, Value: value}
}

// BoolAttr creates a boolean attribute. False means absent.
func BoolAttr(name string, on bool) Prop {
	return Prop{Kind: PropBool, Name: name, Bool: on}
}

// Style creates one style declaration entry.
func Style(name, value string) Prop {
	return Prop{Kind: PropStyle, Name: name, Value: value}
}

// On creates an event binding.
func On(event string, h Handler) Prop {
	return Prop{Kind: PropEvent, Name: event, Handler: h}
}

// Key returns the prop's unique key within a node's Props map. Style
// and event entries are namespaced so they never collide with plain
// attributes of the same name.
func (p Prop) Key() string {
	switch p.Kind {
	case PropStyle:
		return "style:" + p.Name
	case PropEvent:
		return "on:" + p.Name
	default:
		return p.Name
	}
}

// display returns the printable representation used for change
// detection. Two props are unchanged only if their representations are
// identical. Event handlers have no printable form; they compare by
// function identity instead (see equal).
func (p Prop) display() string {
	switch p.Kind {
	case PropBool:
		if p.Bool {
			return "true"
		}
		return "false"
	default:
		return p.Value
	}
}

// equal reports whether two props of the same key are unchanged.
func (p Prop) equal(q Prop) bool {
	if p.Kind != q.Kind {
		return false
	}
	if p.Kind == PropEvent {
		return handlerPtr(p.Handler) == handlerPtr(q.Handler)
	}
	return p.display() == q.display()
}

func handlerPtr(h Handler) uintptr {
	if h == nil {
		return 0
	}
	return reflect.ValueOf(h).Pointer()
}

// Props maps a prop key (see Prop.Key) to its value. Iteration order
// carries no meaning; serialization sorts keys before emission.
type Props map[string]Prop

// NewProps builds a Props map from individual props. Later entries win
// on key collision.
func NewProps(props ...Prop) Props {
	if len(props) == 0 {
		return nil
	}
	m := make(Props, len(props))
	for _, p := range props {
		m[p.Key()] = p
	}
	return m
}

// SortedKeys returns the prop keys in ascending order for
// deterministic emission.
func (ps Props) SortedKeys() []string {
	if len(ps) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ps))
	for k := range ps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StyleString collapses all style entries into one composite
// declaration string, sorted by property name, "name: value" pairs
// joined by "; ". Empty when the node has no style entries.
func (ps Props) StyleString() string {
	var names []string
	for _, p := range ps {
		if p.Kind == PropStyle {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(ps["style:"+name].Value)
	}
	return b.String()
}

// equal compares two prop sets by key and printable value.
func (ps Props) equal(qs Props) bool {
	if len(ps) != len(qs) {
		return false
	}
	for k, p := range ps {
		q, ok := qs[k]
		if !ok || !p.equal(q) {
			return false
		}
	}
	return true
}
