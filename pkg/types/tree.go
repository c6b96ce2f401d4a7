package types

import "errors"

// Node is a UUID-addressed entity in a target tree.
type Node interface {
	// UUID returns the node's stable identifier.
	UUID() string

	// Kind returns the node's kind.
	Kind() NodeKind

	// Parent returns the node's parent, or nil for the root.
	Parent() Node
}

// Tree is the contract of the live forest the persistence coordinator
// mutates. Implementations hold an ordered, kind-partitioned child list per
// node: all children of the first allowed kind come before all children of
// the second, and so on, in AllowedChildKinds order.
type Tree interface {
	// Root returns the root node of the tree.
	Root() Node

	// FindByUUID returns the node with the given UUID, or nil if no node
	// in the tree has that UUID.
	FindByUUID(uuid string) Node

	// AddChild attaches child under parent at the given index within the
	// partition of the child's kind.
	// Returns ErrInvalidChildKind if parent does not accept the child's kind.
	AddChild(parent, child Node, index int) error

	// RemoveChild detaches child from parent.
	// Returns ErrHasDependents if the child still has children of its own.
	RemoveChild(parent, child Node) error

	// Children returns the ordered children of parent with the given kind.
	Children(parent Node, kind NodeKind) []Node

	// AllChildren returns all children of parent in combined partition order.
	AllChildren(parent Node) []Node

	// ChildPositionOffset returns the index at which the partition for the
	// given child kind starts within parent's combined child list.
	ChildPositionOffset(parent Node, kind NodeKind) int

	// Begin opens a batching bracket so observers can react to the whole
	// mutation run at once. Brackets nest.
	Begin(label string)

	// Commit closes the innermost batching bracket.
	Commit()
}

// Structural mutation errors.
var (
	ErrInvalidChildKind = errors.New("child kind not allowed under parent")
	ErrHasDependents    = errors.New("node still has dependent children")
)
