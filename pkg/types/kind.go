package types

// NodeKind identifies the concrete kind of a tree node. The set of kinds is
// closed: structural rules are looked up in tables keyed by kind rather than
// dispatched over a type hierarchy.
type NodeKind string

// Recognized node kinds.
const (
	KindWorkspace NodeKind = "workspace"
	KindFolder    NodeKind = "folder"
	KindItem      NodeKind = "item"
)

// validKinds is the set of recognized node kinds.
var validKinds = map[NodeKind]bool{
	KindWorkspace: true,
	KindFolder:    true,
	KindItem:      true,
}

// Valid reports whether the kind is one of the recognized node kinds.
func (k NodeKind) Valid() bool {
	return validKinds[k]
}

// String returns the kind name.
func (k NodeKind) String() string {
	return string(k)
}

// allowedChildKinds defines, per parent kind, which child kinds may be
// attached. Slice order is significant: it is the order in which child
// partitions appear in a parent's combined child list.
var allowedChildKinds = map[NodeKind][]NodeKind{
	KindWorkspace: {KindFolder, KindItem},
	KindFolder:    {KindFolder, KindItem},
	KindItem:      {},
}

// AllowedChildKinds returns the child kinds a parent of the given kind
// accepts, in partition order. Returns an empty slice for leaf kinds and
// unrecognized kinds.
func AllowedChildKinds(parent NodeKind) []NodeKind {
	kinds := allowedChildKinds[parent]
	out := make([]NodeKind, len(kinds))
	copy(out, kinds)
	return out
}

// IsAllowedChild reports whether a node of kind child may be attached under
// a node of kind parent.
func IsAllowedChild(parent, child NodeKind) bool {
	for _, k := range allowedChildKinds[parent] {
		if k == child {
			return true
		}
	}
	return false
}
