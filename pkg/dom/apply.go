package dom

import (
	"fmt"
	"strings"

	"github.com/raven-ui/raven/pkg/vdom"
)

// Apply applies a patch list strictly in order. Each patch is applied
// as one indivisible operation: the live tree and registry are
// consistent between any two patches, never mid-patch.
func (t *Target) Apply(patches []vdom.Patch) error {
	for i := range patches {
		if err := t.applyOne(&patches[i]); err != nil {
			return fmt.Errorf("patch %d (%s): %w", i, patches[i].Op, err)
		}
	}
	return nil
}

func (t *Target) applyOne(p *vdom.Patch) error {
	switch p.Op {
	case vdom.PatchInsert:
		return t.applyInsert(p)
	case vdom.PatchRemove:
		return t.applyRemove(p.NodeID)
	case vdom.PatchReplace:
		return t.applyReplace(p)
	case vdom.PatchMove:
		return t.applyMove(p)
	case vdom.PatchUpdateProps:
		return t.applyUpdateProps(p)
	case vdom.PatchUpdateText:
		return t.applyUpdateText(p)
	default:
		return fmt.Errorf("dom: unknown patch op %d", p.Op)
	}
}

func (t *Target) applyInsert(p *vdom.Patch) error {
	parent := t.root
	if p.ParentID != 0 {
		n, ok := t.nodes[p.ParentID]
		if !ok {
			return fmt.Errorf("%w: parent %d", ErrUnknownNode, p.ParentID)
		}
		parent = n
	}
	idx := len(parent.children)
	if p.BeforeID != 0 {
		anchor, ok := t.nodes[p.BeforeID]
		if !ok {
			return fmt.Errorf("%w: anchor %d", ErrUnknownNode, p.BeforeID)
		}
		idx = parent.indexOf(anchor)
		if idx < 0 {
			return fmt.Errorf("%w: anchor %d not under parent", ErrUnknownNode, p.BeforeID)
		}
	}
	t.mountAt(p.Node, parent, idx)
	return nil
}

func (t *Target) applyRemove(id vdom.NodeID) error {
	n, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	t.unmount(n)
	return nil
}

func (t *Target) applyReplace(p *vdom.Patch) error {
	n, ok := t.nodes[p.NodeID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, p.NodeID)
	}
	parent := n.parent
	if parent == nil {
		parent = t.root
	}
	idx := parent.indexOf(n)
	t.unmount(n)
	t.mountAt(p.Node, parent, idx)
	return nil
}

func (t *Target) applyMove(p *vdom.Patch) error {
	parent := t.root
	if p.ParentID != 0 {
		n, ok := t.nodes[p.ParentID]
		if !ok {
			return fmt.Errorf("%w: parent %d", ErrUnknownNode, p.ParentID)
		}
		parent = n
	}

	// The moved node is detached first, then reinserted with the same
	// handle; no registry entries are created or destroyed. A fragment
	// relocates as one Move per physical node, all sharing one anchor.
	n, ok := t.nodes[p.NodeID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, p.NodeID)
	}
	if n.parent != nil {
		n.parent.removeChild(n)
	}

	idx := len(parent.children)
	if p.BeforeID != 0 {
		anchor, ok := t.nodes[p.BeforeID]
		if !ok {
			return fmt.Errorf("%w: anchor %d", ErrUnknownNode, p.BeforeID)
		}
		if ai := parent.indexOf(anchor); ai >= 0 {
			idx = ai
		}
	}
	parent.insertChild(n, idx)
	return nil
}

func (t *Target) applyUpdateProps(p *vdom.Patch) error {
	n, ok := t.nodes[p.NodeID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, p.NodeID)
	}
	for _, key := range p.Removed {
		if ev, ok := strings.CutPrefix(key, "on:"); ok {
			t.Unbind(n, ev)
			continue
		}
		n.clearProp(key)
	}
	for _, prop := range p.Added {
		t.setOrBind(n, prop)
	}
	for _, prop := range p.Changed {
		t.setOrBind(n, prop)
	}
	return nil
}

func (t *Target) applyUpdateText(p *vdom.Patch) error {
	n, ok := t.nodes[p.NodeID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, p.NodeID)
	}
	n.text = p.Text
	return nil
}

// setOrBind applies one prop, routing event bindings through the
// dispatch table. Rebinding detaches the old callback and issues a
// fresh token.
func (t *Target) setOrBind(n *Node, prop vdom.Prop) {
	if prop.Kind == vdom.PropEvent {
		t.Bind(n, prop.Name, prop.Handler)
		return
	}
	n.setProp(prop)
}

// mountAt creates physical nodes for a VNode subtree and inserts them
// under parent starting at idx. Fragment and component boundaries get
// an inert template anchor; their children are inserted directly at
// the boundary's position. Returns the number of top-level physical
// nodes inserted.
func (t *Target) mountAt(v *vdom.VNode, parent *Node, idx int) int {
	if v == nil {
		return 0
	}
	switch v.Kind {
	case vdom.KindText:
		n := newTextNode(v.Text)
		t.Adopt(v.ID, n)
		parent.insertChild(n, idx)
		return 1

	case vdom.KindElement:
		n := newElementNode(v.Tag)
		n.attrs[MarkerAttr] = MarkerFor(v.ID)
		if v.Key != "" {
			n.attrs[KeyAttr] = v.Key
		}
		for _, k := range v.Props.SortedKeys() {
			t.setOrBind(n, v.Props[k])
		}
		t.Adopt(v.ID, n)
		parent.insertChild(n, idx)
		for _, c := range v.Children {
			t.mountAt(c, n, len(n.children))
		}
		return 1

	case vdom.KindFragment, vdom.KindComponent:
		boundary := newElementNode("template")
		boundary.attrs[FragmentAttr] = MarkerFor(v.ID)
		t.Adopt(v.ID, boundary)
		parent.insertChild(boundary, idx)
		count := 1
		for _, c := range v.Children {
			count += t.mountAt(c, parent, idx+count)
		}
		return count
	}
	return 0
}

// unmount detaches n from its parent and tears down every registry
// entry and event binding under it.
func (t *Target) unmount(n *Node) {
	if n.parent != nil {
		n.parent.removeChild(n)
	}
	t.unregister(n)
}

func (t *Target) unregister(n *Node) {
	for ev, tok := range n.listeners {
		delete(t.handlers, tok)
		delete(n.listeners, ev)
	}
	if id, ok := t.ids[n]; ok {
		delete(t.ids, n)
		delete(t.nodes, id)
	}
	for _, c := range n.children {
		t.unregister(c)
	}
}
