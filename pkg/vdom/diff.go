package vdom

import "sort"

// Diff compares two VNode trees and returns the ordered patches that
// transform a render target matching prev into one matching next.
//
// Diff is a total function: it never fails on well-formed trees, and
// diffing a tree against an equal tree yields no patches. Matched new
// nodes take over the NodeID of their old counterpart, so the returned
// patches and all future diffs address live nodes by a stable identity.
func Diff(prev, next *VNode) []Patch {
	var patches []Patch
	switch {
	case prev == nil && next == nil:
		// Nothing to do
	case prev == nil:
		patches = append(patches, Patch{Op: PatchInsert, Node: next})
	case next == nil:
		emitRemove(prev, &patches)
	default:
		diffNode(prev, next, 0, 0, &patches)
	}
	return patches
}

// diffNode compares one node pair depth-first, parent before children.
// parentID is the nearest physical ancestor, needed because fragment
// and component children address that ancestor directly. tailID is the
// identity of the physical node that follows this pair under that
// ancestor, or zero when the pair runs to the ancestor's end; a
// fragment's trailing inserts anchor on it so they land inside the
// fragment's span rather than after the fragment's own siblings.
func diffNode(old, new *VNode, parentID, tailID NodeID, patches *[]Patch) {
	// Cross-kind diffing is disallowed: property sets of different
	// kinds are not comparable, so the whole subtree is replaced.
	if old.Kind != new.Kind || (old.Kind == KindElement && old.Tag != new.Tag) {
		emitReplace(old, new, patches)
		return
	}

	// The new node takes over the old identity.
	new.ID = old.ID

	switch old.Kind {
	case KindText:
		if old.Text != new.Text {
			*patches = append(*patches, Patch{Op: PatchUpdateText, NodeID: old.ID, Text: new.Text})
		}
	case KindElement:
		diffProps(old, new, patches)
		diffChildren(old.Children, new.Children, old.ID, 0, patches)
	case KindFragment, KindComponent:
		// No properties of their own; children live under the
		// enclosing physical parent, bounded by the same tail.
		diffChildren(old.Children, new.Children, parentID, tailID, patches)
	}
}

// emitReplace swaps a whole subtree. A fragment or component owns no
// physical node beyond its boundary anchor, so its children are
// removed explicitly before the boundary itself is replaced.
func emitReplace(old, new *VNode, patches *[]Patch) {
	if old.Kind == KindFragment || old.Kind == KindComponent {
		for _, c := range old.Children {
			emitRemove(c, patches)
		}
	}
	*patches = append(*patches, Patch{Op: PatchReplace, NodeID: old.ID, Node: new})
}

// emitRemove removes a subtree. Fragment and component children are
// separate physical nodes under the enclosing parent, so each gets its
// own Remove alongside the boundary's.
func emitRemove(v *VNode, patches *[]Patch) {
	*patches = append(*patches, Patch{Op: PatchRemove, NodeID: v.ID})
	if v.Kind == KindFragment || v.Kind == KindComponent {
		for _, c := range v.Children {
			emitRemove(c, patches)
		}
	}
}

// emitMove relocates a subtree before the same anchor. For a fragment
// the boundary moves first, then each physical child; moving them in
// order against one anchor reassembles the span in place.
func emitMove(v *VNode, parentID, beforeID NodeID, patches *[]Patch) {
	*patches = append(*patches, Patch{Op: PatchMove, NodeID: v.ID, ParentID: parentID, BeforeID: beforeID})
	if v.Kind == KindFragment || v.Kind == KindComponent {
		for _, c := range v.Children {
			emitMove(c, parentID, beforeID, patches)
		}
	}
}

// diffProps emits a single UpdateProps patch carrying the three
// disjoint sets, or nothing when all sets are empty.
func diffProps(old, new *VNode, patches *[]Patch) {
	var added, changed []Prop
	var removed []string

	for _, k := range old.Props.SortedKeys() {
		op := old.Props[k]
		np, ok := new.Props[k]
		if !ok {
			removed = append(removed, k)
		} else if !op.equal(np) {
			changed = append(changed, np)
		}
	}
	for _, k := range new.Props.SortedKeys() {
		if _, ok := old.Props[k]; !ok {
			added = append(added, new.Props[k])
		}
	}

	if len(added) == 0 && len(removed) == 0 && len(changed) == 0 {
		return
	}
	*patches = append(*patches, Patch{
		Op:      PatchUpdateProps,
		NodeID:  old.ID,
		Added:   added,
		Removed: removed,
		Changed: changed,
	})
}

// diffChildren reconciles the child lists of one parent.
func diffChildren(oldC, newC []*VNode, parentID, tailID NodeID, patches *[]Patch) {
	if hasKeys(oldC) || hasKeys(newC) {
		diffKeyedChildren(oldC, newC, parentID, tailID, patches)
		return
	}
	diffPositionalChildren(oldC, newC, parentID, tailID, patches)
}

// diffPositionalChildren pairs children strictly by index. Inserting or
// removing in the middle of an unkeyed list therefore shows up as a
// change at every following position; this is a documented limitation
// of keyless reconciliation, not a bug.
func diffPositionalChildren(oldC, newC []*VNode, parentID, tailID NodeID, patches *[]Patch) {
	n := len(oldC)
	if len(newC) > n {
		n = len(newC)
	}
	for i := 0; i < n; i++ {
		switch {
		case i >= len(oldC):
			*patches = append(*patches, Patch{Op: PatchInsert, ParentID: parentID, BeforeID: tailID, Node: newC[i]})
		case i >= len(newC):
			emitRemove(oldC[i], patches)
		default:
			// The old right neighbor is still mounted when this
			// position's patches apply, so it bounds any nested
			// fragment's span.
			tail := tailID
			if i+1 < len(oldC) {
				tail = oldC[i+1].ID
			}
			diffNode(oldC[i], newC[i], parentID, tail, patches)
		}
	}
}

// diffKeyedChildren matches keyed children by key and the remaining
// unkeyed children positionally among themselves, preserving their
// relative order. Unmatched old children are removed, unmatched new
// children inserted, and matched children that changed position
// relative to their surviving siblings are moved.
func diffKeyedChildren(oldC, newC []*VNode, parentID, tailID NodeID, patches *[]Patch) {
	oldKeyed := make(map[string]int)
	var oldUnkeyed []int
	for i, c := range oldC {
		if c.Key != "" {
			oldKeyed[c.Key] = i
		} else {
			oldUnkeyed = append(oldUnkeyed, i)
		}
	}

	// matchOf[j] is the old index matched to newC[j], or -1 for a
	// fresh insert.
	matchOf := make([]int, len(newC))
	matchedOld := make([]bool, len(oldC))
	unkeyedUsed := 0
	for j, c := range newC {
		matchOf[j] = -1
		if c.Key != "" {
			if i, ok := oldKeyed[c.Key]; ok {
				matchOf[j] = i
				matchedOld[i] = true
			}
		} else if unkeyedUsed < len(oldUnkeyed) {
			i := oldUnkeyed[unkeyedUsed]
			unkeyedUsed++
			matchOf[j] = i
			matchedOld[i] = true
		}
	}

	// Removals first so anchors only ever name surviving siblings.
	for i, c := range oldC {
		if !matchedOld[i] {
			emitRemove(c, patches)
		}
	}

	// Matched children whose old indices form an increasing
	// subsequence keep their positions; everything else moves.
	stable := stableMatches(matchOf)

	// Walk right-to-left so every anchor is already in its final
	// position when the patch applies. The last position anchors on
	// the list's tail, keeping it inside an enclosing fragment's span.
	for j := len(newC) - 1; j >= 0; j-- {
		c := newC[j]
		beforeID := tailID
		if j+1 < len(newC) {
			beforeID = anchorID(newC, matchOf, oldC, j+1)
		}
		if matchOf[j] < 0 {
			*patches = append(*patches, Patch{
				Op:       PatchInsert,
				ParentID: parentID,
				BeforeID: beforeID,
				Node:     c,
			})
			continue
		}
		old := oldC[matchOf[j]]
		if !stable[j] {
			emitMove(old, parentID, beforeID, patches)
		}
		diffNode(old, c, parentID, beforeID, patches)
	}
}

// anchorID returns the live identity of newC[j]: the adopted old ID for
// a matched child, or the child's own ID for a fresh insert (already
// placed, since children are processed right-to-left).
func anchorID(newC []*VNode, matchOf []int, oldC []*VNode, j int) NodeID {
	if matchOf[j] >= 0 {
		return oldC[matchOf[j]].ID
	}
	return newC[j].ID
}

// stableMatches marks the matched positions whose old indices form a
// longest increasing subsequence. Those children keep their relative
// order and need no Move patch.
func stableMatches(matchOf []int) []bool {
	stable := make([]bool, len(matchOf))

	// Positions with a match, in new-tree order.
	var pos []int
	for j, i := range matchOf {
		if i >= 0 {
			pos = append(pos, j)
		}
	}
	if len(pos) == 0 {
		return stable
	}

	// Patience algorithm over the old indices.
	tails := make([]int, 0, len(pos))   // tails[k]: position holding smallest tail of an LIS of length k+1
	prev := make([]int, len(matchOf))   // back-links by position
	for i := range prev {
		prev[i] = -1
	}
	for _, j := range pos {
		v := matchOf[j]
		k := sort.Search(len(tails), func(k int) bool { return matchOf[tails[k]] >= v })
		if k > 0 {
			prev[j] = tails[k-1]
		}
		if k == len(tails) {
			tails = append(tails, j)
		} else {
			tails[k] = j
		}
	}
	for j := tails[len(tails)-1]; j >= 0; j = prev[j] {
		stable[j] = true
	}
	return stable
}

// hasKeys returns true if any child carries a reconciliation key.
func hasKeys(children []*VNode) bool {
	for _, c := range children {
		if c.Key != "" {
			return true
		}
	}
	return false
}
