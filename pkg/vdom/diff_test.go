package vdom

import "testing"

func countOps(patches []Patch) map[PatchOp]int {
	m := make(map[PatchOp]int)
	for _, p := range patches {
		m[p.Op]++
	}
	return m
}

func TestDiffBothNil(t *testing.T) {
	if patches := Diff(nil, nil); len(patches) != 0 {
		t.Errorf("expected 0 patches, got %d", len(patches))
	}
}

func TestDiffFromNilInsertsWholeSubtree(t *testing.T) {
	next := Element("div", nil, Element("p", nil, Text("hi")))
	patches := Diff(nil, next)

	if len(patches) != 1 {
		t.Fatalf("expected a single Insert for the whole subtree, got %d patches", len(patches))
	}
	if patches[0].Op != PatchInsert {
		t.Errorf("Op = %v, want Insert", patches[0].Op)
	}
	if patches[0].Node != next {
		t.Error("Insert must carry the new subtree")
	}
}

func TestDiffToNilRemoves(t *testing.T) {
	prev := Element("div", nil)
	patches := Diff(prev, nil)

	if len(patches) != 1 || patches[0].Op != PatchRemove {
		t.Fatalf("expected single Remove, got %v", patches)
	}
	if patches[0].NodeID != prev.ID {
		t.Errorf("NodeID = %d, want %d", patches[0].NodeID, prev.ID)
	}
}

func TestDiffIdenticalTreesIsEmpty(t *testing.T) {
	build := func() *VNode {
		return Element("div", NewProps(Attr("class", "card"), Style("color", "red")),
			Element("p", nil, Text("hello")),
			Element("ul", nil,
				Element("li", nil, Text("a")).WithKey("a"),
				Element("li", nil, Text("b")).WithKey("b"),
			),
		)
	}
	patches := Diff(build(), build())
	if len(patches) != 0 {
		t.Errorf("diff(A, A) = %d patches, want 0: %v", len(patches), patches)
	}
}

func TestDiffKindChangeForcesReplace(t *testing.T) {
	prev := Element("div", NewProps(Attr("id", "x")))
	next := Text("x")
	patches := Diff(prev, next)

	if len(patches) != 1 {
		t.Fatalf("expected exactly 1 patch, got %d", len(patches))
	}
	if patches[0].Op != PatchReplace {
		t.Errorf("Op = %v, want Replace", patches[0].Op)
	}
	if patches[0].NodeID != prev.ID {
		t.Errorf("Replace targets %d, want old ID %d", patches[0].NodeID, prev.ID)
	}
	if countOps(patches)[PatchUpdateProps] != 0 {
		t.Error("cross-kind replace must not emit UpdateProps")
	}
}

func TestDiffTagChangeForcesReplace(t *testing.T) {
	prev := Element("div", nil)
	next := Element("span", nil)
	patches := Diff(prev, next)

	if len(patches) != 1 || patches[0].Op != PatchReplace {
		t.Fatalf("expected single Replace for tag change, got %v", patches)
	}
}

func TestDiffTextUpdate(t *testing.T) {
	// div[p("hi")] -> div[p("bye")]
	prevText := Text("hi")
	prev := Element("div", nil, Element("p", nil, prevText))
	next := Element("div", nil, Element("p", nil, Text("bye")))

	patches := Diff(prev, next)

	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d: %v", len(patches), patches)
	}
	p := patches[0]
	if p.Op != PatchUpdateText {
		t.Errorf("Op = %v, want UpdateText", p.Op)
	}
	if p.NodeID != prevText.ID {
		t.Errorf("UpdateText targets %d, want text node %d", p.NodeID, prevText.ID)
	}
	if p.Text != "bye" {
		t.Errorf("Text = %q, want %q", p.Text, "bye")
	}
}

func TestDiffPropsThreeSets(t *testing.T) {
	prev := Element("div", NewProps(
		Attr("id", "x"),
		Attr("class", "old"),
		Style("color", "red"),
	))
	next := Element("div", NewProps(
		Attr("class", "new"),
		Style("color", "red"),
		BoolAttr("disabled", true),
	))

	patches := Diff(prev, next)

	if len(patches) != 1 {
		t.Fatalf("expected 1 UpdateProps, got %d: %v", len(patches), patches)
	}
	p := patches[0]
	if p.Op != PatchUpdateProps {
		t.Fatalf("Op = %v, want UpdateProps", p.Op)
	}
	if len(p.Added) != 1 || p.Added[0].Name != "disabled" {
		t.Errorf("Added = %v, want [disabled]", p.Added)
	}
	if len(p.Removed) != 1 || p.Removed[0] != "id" {
		t.Errorf("Removed = %v, want [id]", p.Removed)
	}
	if len(p.Changed) != 1 || p.Changed[0].Name != "class" || p.Changed[0].Value != "new" {
		t.Errorf("Changed = %v, want [class=new]", p.Changed)
	}
}

func TestDiffUnchangedPropsEmitNothing(t *testing.T) {
	prev := Element("input", NewProps(Attr("type", "text"), BoolAttr("required", true)))
	next := Element("input", NewProps(Attr("type", "text"), BoolAttr("required", true)))

	if patches := Diff(prev, next); len(patches) != 0 {
		t.Errorf("expected no patches, got %v", patches)
	}
}

func TestDiffEventHandlerIdentity(t *testing.T) {
	stable := func(Event) {}
	prev := Element("button", NewProps(On("click", stable)))
	same := Element("button", NewProps(On("click", stable)))

	if patches := Diff(prev, same); len(patches) != 0 {
		t.Errorf("same handler func must not produce patches, got %v", patches)
	}

	prev2 := Element("button", NewProps(On("click", stable)))
	next := Element("button", NewProps(On("click", func(Event) {})))
	patches := Diff(prev2, next)
	if len(patches) != 1 || patches[0].Op != PatchUpdateProps {
		t.Fatalf("expected UpdateProps for rebound handler, got %v", patches)
	}
	if len(patches[0].Changed) != 1 || patches[0].Changed[0].Kind != PropEvent {
		t.Errorf("Changed = %v, want one event prop", patches[0].Changed)
	}
}

func TestDiffKeyedReversalYieldsOnlyMoves(t *testing.T) {
	li := func(key string) *VNode {
		return Element("li", nil, Text(key)).WithKey(key)
	}
	prev := Element("ul", nil, li("a"), li("b"), li("c"))
	next := Element("ul", nil, li("c"), li("b"), li("a"))

	patches := Diff(prev, next)
	ops := countOps(patches)

	if ops[PatchInsert] != 0 || ops[PatchRemove] != 0 || ops[PatchReplace] != 0 {
		t.Errorf("reversal must yield no Insert/Remove/Replace, got %v", ops)
	}
	if ops[PatchMove] == 0 {
		t.Error("reversal must yield Move patches")
	}
	if ops[PatchMove]+ops[PatchUpdateText] != len(patches) {
		t.Errorf("unexpected extra patch kinds: %v", patches)
	}
	// Text content per key is unchanged, so no text patches either.
	if ops[PatchUpdateText] != 0 {
		t.Errorf("expected no text updates, got %d", ops[PatchUpdateText])
	}
}

func TestDiffKeyedRemoveAndInsert(t *testing.T) {
	// ul[li(key:1,"A"), li(key:2,"B")] -> ul[li(key:2,"B"), li(key:3,"C")]
	li1 := Element("li", nil, Text("A")).WithKey("1")
	li2 := Element("li", nil, Text("B")).WithKey("2")
	prev := Element("ul", nil, li1, li2)
	next := Element("ul", nil,
		Element("li", nil, Text("B")).WithKey("2"),
		Element("li", nil, Text("C")).WithKey("3"),
	)

	patches := Diff(prev, next)
	ops := countOps(patches)

	if ops[PatchRemove] != 1 {
		t.Errorf("expected 1 Remove, got %d", ops[PatchRemove])
	}
	if ops[PatchInsert] != 1 {
		t.Errorf("expected 1 Insert, got %d", ops[PatchInsert])
	}
	// li#2's position relative to surviving siblings is unchanged.
	if ops[PatchMove] != 0 {
		t.Errorf("expected 0 Moves, got %d", ops[PatchMove])
	}
	for _, p := range patches {
		switch p.Op {
		case PatchRemove:
			if p.NodeID != li1.ID {
				t.Errorf("Remove targets %d, want li#1 (%d)", p.NodeID, li1.ID)
			}
		case PatchInsert:
			if p.BeforeID != 0 {
				t.Errorf("Insert BeforeID = %d, want append", p.BeforeID)
			}
			if p.ParentID != prev.ID {
				t.Errorf("Insert ParentID = %d, want ul (%d)", p.ParentID, prev.ID)
			}
		}
	}
}

func TestDiffMatchedKeyAdoptsOldID(t *testing.T) {
	old := Element("li", nil, Text("A")).WithKey("a")
	prev := Element("ul", nil, old)
	newLi := Element("li", nil, Text("A")).WithKey("a")
	next := Element("ul", nil, newLi)

	Diff(prev, next)

	if newLi.ID != old.ID {
		t.Errorf("matched node ID = %d, want adopted %d", newLi.ID, old.ID)
	}
	if next.ID != prev.ID {
		t.Errorf("root ID = %d, want adopted %d", next.ID, prev.ID)
	}
}

func TestDiffUnkeyedMiddleInsertDegradesPositionally(t *testing.T) {
	item := func(s string) *VNode { return Element("li", nil, Text(s)) }
	prev := Element("ul", nil, item("a"), item("b"))
	next := Element("ul", nil, item("a"), item("x"), item("b"))

	patches := Diff(prev, next)
	ops := countOps(patches)

	// Position 1 pairs a/x ("b" becomes "x"), position 2 is a fresh
	// append. The keyless fallback is strictly positional.
	if ops[PatchInsert] != 1 {
		t.Errorf("expected 1 tail Insert, got %d", ops[PatchInsert])
	}
	if ops[PatchUpdateText] != 1 {
		t.Errorf("expected 1 positional text update, got %d", ops[PatchUpdateText])
	}
}

func TestDiffMixedKeyedUnkeyed(t *testing.T) {
	keyed := func(k string) *VNode { return Element("li", nil, Text(k)).WithKey(k) }
	plain := func(s string) *VNode { return Element("li", nil, Text(s)) }

	pa, pb := plain("u1"), plain("u2")
	prev := Element("ul", nil, keyed("a"), pa, keyed("b"), pb)
	next := Element("ul", nil, keyed("b"), plain("u1"), keyed("a"), plain("u2"))

	patches := Diff(prev, next)
	ops := countOps(patches)

	// Keyed entries match by key, unkeyed entries match among
	// themselves in order; nothing is created or destroyed.
	if ops[PatchInsert] != 0 || ops[PatchRemove] != 0 || ops[PatchReplace] != 0 {
		t.Errorf("expected reorder only, got %v", ops)
	}
	_ = pa
	_ = pb
}

func TestDiffFragmentChildrenAddressParent(t *testing.T) {
	prev := Element("div", nil, Fragment(Element("p", nil, Text("a"))))
	next := Element("div", nil, Fragment(
		Element("p", nil, Text("a")),
		Element("p", nil, Text("b")),
	))

	patches := Diff(prev, next)

	if len(patches) != 1 || patches[0].Op != PatchInsert {
		t.Fatalf("expected single Insert, got %v", patches)
	}
	if patches[0].ParentID != prev.ID {
		t.Errorf("fragment child Insert ParentID = %d, want enclosing div %d",
			patches[0].ParentID, prev.ID)
	}
}

func TestDiffFragmentTrailingInsertStaysInsideSpan(t *testing.T) {
	// The fragment is followed by a sibling, so a child appended to
	// the fragment must anchor on that sibling, not on the parent's
	// end.
	sib := Element("span", nil)
	prev := Element("div", nil, Fragment(Element("p", nil, Text("a"))), sib)
	next := Element("div", nil, Fragment(
		Element("p", nil, Text("a")),
		Element("p", nil, Text("b")),
	), Element("span", nil))

	patches := Diff(prev, next)

	var inserts []Patch
	for _, p := range patches {
		if p.Op == PatchInsert {
			inserts = append(inserts, p)
		}
	}
	if len(inserts) != 1 {
		t.Fatalf("expected 1 Insert, got %v", patches)
	}
	if inserts[0].ParentID != prev.ID {
		t.Errorf("Insert ParentID = %d, want div %d", inserts[0].ParentID, prev.ID)
	}
	if inserts[0].BeforeID != sib.ID {
		t.Errorf("Insert BeforeID = %d, want following sibling %d", inserts[0].BeforeID, sib.ID)
	}
}

func TestDiffKeyedFragmentTailInsertAnchorsOnSpanBound(t *testing.T) {
	li := func(k string) *VNode { return Element("li", nil, Text(k)).WithKey(k) }
	footer := Element("footer", nil)
	prev := Element("div", nil, Fragment(li("a")), footer)
	next := Element("div", nil, Fragment(li("a"), li("b")), Element("footer", nil))

	patches := Diff(prev, next)

	var inserts []Patch
	for _, p := range patches {
		if p.Op == PatchInsert {
			inserts = append(inserts, p)
		}
	}
	if len(inserts) != 1 {
		t.Fatalf("expected 1 Insert, got %v", patches)
	}
	if inserts[0].BeforeID != footer.ID {
		t.Errorf("keyed tail Insert BeforeID = %d, want span bound %d", inserts[0].BeforeID, footer.ID)
	}
}

func TestDiffFragmentRemoveCoversEachChild(t *testing.T) {
	p1 := Element("p", nil, Text("a"))
	p2 := Element("p", nil, Text("b"))
	frag := Fragment(p1, p2)
	prev := Element("div", nil, frag)
	next := Element("div", nil)

	patches := Diff(prev, next)

	removed := make(map[NodeID]bool)
	for _, p := range patches {
		if p.Op != PatchRemove {
			t.Fatalf("unexpected op %v", p.Op)
		}
		removed[p.NodeID] = true
	}
	for _, id := range []NodeID{frag.ID, p1.ID, p2.ID} {
		if !removed[id] {
			t.Errorf("node %d not removed; fragment children are physical nodes of their own", id)
		}
	}
	if len(patches) != 3 {
		t.Errorf("expected 3 Removes, got %d", len(patches))
	}
}

func TestDiffFragmentMoveCoversEachChild(t *testing.T) {
	item := func(s string) *VNode { return Element("li", nil, Text(s)) }
	fa := Fragment(item("a1"), item("a2")).WithKey("a")
	fb := Fragment(item("b1")).WithKey("b")
	prev := Element("div", nil, fa, fb)
	next := Element("div", nil,
		Fragment(item("b1")).WithKey("b"),
		Fragment(item("a1"), item("a2")).WithKey("a"),
	)

	patches := Diff(prev, next)

	moved := make(map[NodeID]bool)
	for _, p := range patches {
		if p.Op == PatchMove {
			moved[p.NodeID] = true
		}
	}
	if len(moved) == 0 {
		t.Fatalf("reorder must move a fragment, got %v", patches)
	}
	// A relocated fragment takes its whole span: boundary and every
	// child, each with its own Move.
	for _, f := range []*VNode{fa, fb} {
		if !moved[f.ID] {
			continue
		}
		for _, c := range f.Children {
			if !moved[c.ID] {
				t.Errorf("fragment %d moved without child %d", f.ID, c.ID)
			}
		}
	}
}

func TestDiffReplaceOnKindChangeInsideChildren(t *testing.T) {
	prevChild := Element("span", nil, Text("x"))
	prev := Element("div", nil, prevChild)
	next := Element("div", nil, Text("x"))

	patches := Diff(prev, next)

	if len(patches) != 1 || patches[0].Op != PatchReplace {
		t.Fatalf("expected single Replace, got %v", patches)
	}
	if patches[0].NodeID != prevChild.ID {
		t.Errorf("Replace targets %d, want %d", patches[0].NodeID, prevChild.ID)
	}
}
