package hydrate

import (
	"errors"
	"fmt"

	"github.com/raven-ui/raven/pkg/dom"
	"github.com/raven-ui/raven/pkg/vdom"
)

// Hydration error classes.
var (
	// ErrStructuralMismatch: the live markup's kind, tag, or boundary
	// marker disagrees with the VNode. Non-fatal to sibling subtrees.
	ErrStructuralMismatch = errors.New("hydrate: structural mismatch")

	// ErrMissingLiveNode: the markup has fewer children than the
	// VNode tree expects. Fatal to that subtree only.
	ErrMissingLiveNode = errors.New("hydrate: missing live node")
)

// State tracks one node through the hydration pass.
type State uint8

const (
	StateUnvisited State = iota
	StateVerifying
	StateHydrated   // Terminal; re-hydration is a no-op
	StateMismatched // Terminal for this subtree only
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateUnvisited:
		return "Unvisited"
	case StateVerifying:
		return "Verifying"
	case StateHydrated:
		return "Hydrated"
	case StateMismatched:
		return "Mismatched"
	default:
		return "Unknown"
	}
}

// Mismatch records one failed subtree.
type Mismatch struct {
	NodeID vdom.NodeID
	Err    error // ErrStructuralMismatch or ErrMissingLiveNode
	Detail string
}

// Result summarizes a hydration pass.
type Result struct {
	Hydrated   int        // Nodes whose behavior was attached
	Repaired   int        // Text nodes overwritten to fix drift
	Mismatches []Mismatch // Failed subtrees
}

// OK reports whether the pass completed with zero mismatches. Callers
// seeing false are expected to fall back to a full reconciliation
// render for safety.
func (r *Result) OK() bool { return len(r.Mismatches) == 0 }

// Hydrator attaches behavior for one render target. It privately owns
// the hydrated membership set; all structural registration goes
// through the target's Adopt/Bind/SetText calls.
type Hydrator struct {
	target   *dom.Target
	hydrated map[vdom.NodeID]struct{}
	states   map[vdom.NodeID]State
}

// New creates a Hydrator bound to a render target.
func New(target *dom.Target) *Hydrator {
	return &Hydrator{
		target:   target,
		hydrated: make(map[vdom.NodeID]struct{}),
		states:   make(map[vdom.NodeID]State),
	}
}

// StateOf returns a node's hydration state.
func (h *Hydrator) StateOf(id vdom.NodeID) State { return h.states[id] }

// Hydrate eagerly hydrates the whole tree against the live root's
// children and returns the pass summary. Hydrating an already-hydrated
// node again is a no-op.
func (h *Hydrator) Hydrate(tree *vdom.VNode, root *dom.Node) *Result {
	w := h.walk(tree, root, 0, nil, false)
	for w.Step() {
	}
	return w.Result()
}

// Progressive returns a resumable stepper that hydrates up to
// batchSize nodes per Step call, yielding control between batches. A
// batch never straddles a single node's mutation, so the walk can be
// abandoned between steps with the target in a consistent state.
func (h *Hydrator) Progressive(tree *vdom.VNode, root *dom.Node, batchSize int) *Walk {
	if batchSize <= 0 {
		batchSize = 64
	}
	return h.walk(tree, root, batchSize, nil, false)
}

// Selective hydrates only the named node identities; with cascade set,
// each named node's descendants are hydrated too. Unnamed nodes are
// paired and traversed but left untouched.
func (h *Hydrator) Selective(tree *vdom.VNode, root *dom.Node, ids []vdom.NodeID, cascade bool) *Result {
	selected := make(map[vdom.NodeID]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}
	w := h.walk(tree, root, 0, selected, cascade)
	for w.Step() {
	}
	return w.Result()
}

// task pairs one VNode with its live counterpart. attach is false for
// nodes a selective pass only traverses.
type task struct {
	v      *vdom.VNode
	live   *dom.Node
	attach bool
}

// Walk is the cooperative hydration stepper.
type Walk struct {
	h        *Hydrator
	queue    []task
	batch    int // 0 means unbounded
	result   *Result
	selected map[vdom.NodeID]struct{} // nil means hydrate everything
	cascade  bool
}

func (h *Hydrator) walk(tree *vdom.VNode, root *dom.Node, batch int, selected map[vdom.NodeID]struct{}, cascade bool) *Walk {
	w := &Walk{
		h:        h,
		batch:    batch,
		result:   &Result{},
		selected: selected,
		cascade:  cascade,
	}
	w.queue = w.pairChildren(root, []*vdom.VNode{tree}, false)
	return w
}

// Result returns the pass summary accumulated so far.
func (w *Walk) Result() *Result { return w.result }

// Done reports whether all work has been processed.
func (w *Walk) Done() bool { return len(w.queue) == 0 }

// Step processes one batch of nodes and reports whether work remains.
func (w *Walk) Step() bool {
	n := len(w.queue)
	if w.batch > 0 && w.batch < n {
		n = w.batch
	}
	for i := 0; i < n; i++ {
		t := w.queue[0]
		w.queue = w.queue[1:]
		w.process(t)
	}
	return len(w.queue) > 0
}

// wants reports whether a node's behavior should be attached, and
// whether that decision cascades to its children.
func (w *Walk) wants(v *vdom.VNode, inherited bool) bool {
	if w.selected == nil {
		return true
	}
	if inherited && w.cascade {
		return true
	}
	_, ok := w.selected[v.ID]
	return ok
}

func (w *Walk) process(t task) {
	if _, done := w.h.hydrated[t.v.ID]; done {
		// Already attached. Still descend so a pass can finish
		// descendants an earlier abandoned walk never reached.
		if t.v.Kind == vdom.KindElement {
			w.queue = append(w.queue, w.pairChildren(t.live, t.v.Children, t.attach)...)
		}
		return
	}
	// Traversal-only nodes in a selective pass never attach, so they
	// stay Unvisited rather than parking in Verifying forever.
	if t.attach {
		w.h.states[t.v.ID] = StateVerifying
	}

	switch t.v.Kind {
	case vdom.KindText:
		if t.live.Kind() != dom.NodeText {
			w.mismatch(t.v, fmt.Sprintf("expected text node, found <%s>", t.live.Tag()))
			return
		}
		if t.attach {
			if t.live.Text() != t.v.Text {
				// Whitespace/formatting drift between server and
				// client text rendering is expected; overwrite
				// rather than fail.
				w.h.target.SetText(t.live, t.v.Text)
				w.result.Repaired++
			}
			w.h.target.Adopt(t.v.ID, t.live)
			w.markHydrated(t.v.ID)
		}

	case vdom.KindElement:
		if !w.verifyElement(t) {
			return
		}
		if t.attach {
			w.h.target.Adopt(t.v.ID, t.live)
			for _, k := range t.v.Props.SortedKeys() {
				if p := t.v.Props[k]; p.Kind == vdom.PropEvent {
					w.h.target.Bind(t.live, p.Name, p.Handler)
				}
			}
			w.markHydrated(t.v.ID)
		}
		w.queue = append(w.queue, w.pairChildren(t.live, t.v.Children, t.attach)...)
	}
}

// verifyElement checks identity marker agreement, falling back to tag
// consistency when markers are absent or foreign (an equivalent tree
// re-rendered with fresh NodeIDs).
func (w *Walk) verifyElement(t task) bool {
	if t.live.Kind() != dom.NodeElement {
		w.mismatch(t.v, fmt.Sprintf("expected <%s>, found text %q", t.v.Tag, t.live.Text()))
		return false
	}
	if marker := t.live.Marker(); marker == dom.MarkerFor(t.v.ID) {
		return true
	}
	if t.live.Tag() != t.v.Tag {
		w.mismatch(t.v, fmt.Sprintf("expected <%s>, found <%s>", t.v.Tag, t.live.Tag()))
		return false
	}
	return true
}

// pairChildren walks parent's live children in lockstep with a VNode
// child list, producing node tasks. Fragment and component boundaries
// are located by marker and consumed in place; their children continue
// in the same live list.
func (w *Walk) pairChildren(parent *dom.Node, vnodes []*vdom.VNode, inherited bool) []task {
	cursor := 0
	return w.pairList(parent, &cursor, vnodes, inherited)
}

func (w *Walk) pairList(parent *dom.Node, cursor *int, vnodes []*vdom.VNode, inherited bool) []task {
	var tasks []task
	live := parent.Children()
	for _, v := range vnodes {
		attach := w.wants(v, inherited)
		switch v.Kind {
		case vdom.KindFragment, vdom.KindComponent:
			if !w.consumeBoundary(parent, cursor, v, attach) {
				continue
			}
			tasks = append(tasks, w.pairList(parent, cursor, v.Children, attach)...)

		default:
			if *cursor >= len(live) {
				w.result.Mismatches = append(w.result.Mismatches, Mismatch{
					NodeID: v.ID,
					Err:    ErrMissingLiveNode,
					Detail: fmt.Sprintf("no live child to pair with %s node %d", v.Kind, v.ID),
				})
				w.h.states[v.ID] = StateMismatched
				return tasks
			}
			tasks = append(tasks, task{v: v, live: live[*cursor], attach: attach})
			*cursor++
		}
	}
	return tasks
}

// consumeBoundary locates a fragment/component boundary anchor by its
// marker, scanning forward from the cursor.
func (w *Walk) consumeBoundary(parent *dom.Node, cursor *int, v *vdom.VNode, attach bool) bool {
	live := parent.Children()
	marker := dom.MarkerFor(v.ID)
	for i := *cursor; i < len(live); i++ {
		if got, ok := live[i].Attr(dom.FragmentAttr); ok && got == marker {
			*cursor = i + 1
			w.adoptBoundary(v, live[i], attach)
			return true
		}
	}
	// A fragment can also hydrate against markup from an equivalent
	// tree whose boundary carries a foreign marker: accept the next
	// unclaimed boundary anchor.
	for i := *cursor; i < len(live); i++ {
		if _, ok := live[i].Attr(dom.FragmentAttr); ok {
			*cursor = i + 1
			w.adoptBoundary(v, live[i], attach)
			return true
		}
	}
	w.mismatch(v, fmt.Sprintf("boundary marker %s absent", marker))
	return false
}

func (w *Walk) adoptBoundary(v *vdom.VNode, anchor *dom.Node, attach bool) {
	if !attach {
		return
	}
	if _, done := w.h.hydrated[v.ID]; done {
		return
	}
	w.h.target.Adopt(v.ID, anchor)
	w.markHydrated(v.ID)
}

func (w *Walk) markHydrated(id vdom.NodeID) {
	w.h.hydrated[id] = struct{}{}
	w.h.states[id] = StateHydrated
	w.result.Hydrated++
}

func (w *Walk) mismatch(v *vdom.VNode, detail string) {
	w.h.states[v.ID] = StateMismatched
	w.result.Mismatches = append(w.result.Mismatches, Mismatch{
		NodeID: v.ID,
		Err:    ErrStructuralMismatch,
		Detail: detail,
	})
}
