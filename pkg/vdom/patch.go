package vdom

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchInsert      PatchOp = 0x01 // Insert new subtree
	PatchRemove      PatchOp = 0x02 // Remove one physical node's subtree
	PatchReplace     PatchOp = 0x03 // Replace subtree entirely
	PatchMove        PatchOp = 0x04 // Move one physical node to new parent/position
	PatchUpdateProps PatchOp = 0x05 // Apply added/removed/changed props
	PatchUpdateText  PatchOp = 0x06 // Update text content
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchInsert:
		return "Insert"
	case PatchRemove:
		return "Remove"
	case PatchReplace:
		return "Replace"
	case PatchMove:
		return "Move"
	case PatchUpdateProps:
		return "UpdateProps"
	case PatchUpdateText:
		return "UpdateText"
	default:
		return "Unknown"
	}
}

// Patch is a single tree mutation. Patches are positionally ordered:
// applying a list strictly in sequence reproduces the new tree;
// out-of-order application is undefined.
type Patch struct {
	Op       PatchOp
	NodeID   NodeID // Target: Remove/Move/UpdateProps/UpdateText, old node for Replace
	ParentID NodeID // Insert/Move destination; zero means the render root
	BeforeID NodeID // Insert/Move anchor sibling; zero means append
	Node     *VNode // Subtree for Insert/Replace
	Added    []Prop // UpdateProps: props new tree has and old lacks
	Removed  []string
	Changed  []Prop // UpdateProps: new values for props present in both
	Text     string // UpdateText content
}
