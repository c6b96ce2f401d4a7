package memtree

import (
	"github.com/mesh-intelligence/arbor/pkg/types"
)

// Node is the in-memory implementation of types.Node. Child lists are
// partitioned by kind in types.AllowedChildKinds order.
type Node struct {
	uuid     string
	kind     types.NodeKind
	parent   *Node
	children map[types.NodeKind][]*Node

	// Property storage. Which fields a kind actually uses is decided by the
	// accessor registry; the node itself is just the backing store.
	name      string
	collapsed bool
	content   string
	rank      int64
	done      bool
	reference string
}

// NewNode creates an unattached node of the given kind.
func NewNode(kind types.NodeKind, uuid string) *Node {
	return &Node{
		uuid:     uuid,
		kind:     kind,
		children: make(map[types.NodeKind][]*Node),
	}
}

// UUID returns the node's stable identifier.
func (n *Node) UUID() string { return n.uuid }

// Kind returns the node's kind.
func (n *Node) Kind() types.NodeKind { return n.kind }

// Parent returns the node's parent, or nil for a root or detached node.
func (n *Node) Parent() types.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// Name returns the node's display name.
func (n *Node) Name() string { return n.name }

// SetName sets the node's display name.
func (n *Node) SetName(v string) { n.name = v }

// Collapsed reports whether a folder is collapsed in presentation.
func (n *Node) Collapsed() bool { return n.collapsed }

// SetCollapsed sets the folder collapsed flag.
func (n *Node) SetCollapsed(v bool) { n.collapsed = v }

// Content returns an item's body text.
func (n *Node) Content() string { return n.content }

// SetContent sets an item's body text.
func (n *Node) SetContent(v string) { n.content = v }

// Rank returns an item's ordering weight.
func (n *Node) Rank() int64 { return n.rank }

// SetRank sets an item's ordering weight.
func (n *Node) SetRank(v int64) { n.rank = v }

// Done reports whether an item is completed.
func (n *Node) Done() bool { return n.done }

// SetDone sets an item's completed flag.
func (n *Node) SetDone(v bool) { n.done = v }

// Reference returns the UUID of another node this item points at.
func (n *Node) Reference() string { return n.reference }

// SetReference sets the UUID this item points at.
func (n *Node) SetReference(v string) { n.reference = v }

// hasChildren reports whether the node has any attached children.
func (n *Node) hasChildren() bool {
	for _, part := range n.children {
		if len(part) > 0 {
			return true
		}
	}
	return false
}

// walk visits the node and every descendant.
func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, kind := range types.AllowedChildKinds(n.kind) {
		for _, child := range n.children[kind] {
			child.walk(fn)
		}
	}
}
