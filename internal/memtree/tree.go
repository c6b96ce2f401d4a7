// Package memtree provides the in-memory, UUID-indexed object tree the
// persistence coordinator mutates. A single mutex on the tree serializes
// every structural operation against any other direct mutator.
package memtree

import (
	"fmt"
	"sync"

	"github.com/mesh-intelligence/arbor/pkg/types"
)

// EventType identifies a tree observer notification.
type EventType int

// Observer notification types.
const (
	EventBegin EventType = iota
	EventCommit
	EventChildAdded
	EventChildRemoved
)

// Event describes a structural change or batching bracket on the tree.
// Observers that relay changes elsewhere should consult the originating
// persister's replay flag to suppress echoes of its own commits.
type Event struct {
	Type   EventType
	Label  string
	Parent types.Node
	Child  types.Node
	Index  int
}

// Observer receives tree events. Callbacks run synchronously on the
// mutating goroutine with the tree lock held; they must not mutate the tree.
type Observer func(Event)

// Tree implements types.Tree over an in-memory forest with one workspace
// root.
type Tree struct {
	mu        sync.Mutex
	root      *Node
	index     map[string]*Node
	depth     int // open batching brackets
	observers []Observer
}

// New creates a tree with a workspace root carrying the given UUID.
func New(rootUUID string) *Tree {
	root := NewNode(types.KindWorkspace, rootUUID)
	return &Tree{
		root:  root,
		index: map[string]*Node{rootUUID: root},
	}
}

// Root returns the workspace root.
func (t *Tree) Root() types.Node {
	return t.root
}

// AddObserver registers an observer for structural events and brackets.
func (t *Tree) AddObserver(obs Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, obs)
}

// FindByUUID returns the node with the given UUID, or nil if it is not in
// the tree.
func (t *Tree) FindByUUID(uuid string) types.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.index[uuid]; ok {
		return n
	}
	return nil
}

// AddChild attaches child under parent at the given index within the
// partition for the child's kind. The child's whole subtree becomes
// addressable by UUID.
// Returns types.ErrInvalidChildKind if parent does not accept the child's
// kind, and an error if the index is outside [0, len(partition)].
func (t *Tree) AddChild(parent, child types.Node, index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, c, err := t.resolvePair(parent, child)
	if err != nil {
		return err
	}
	if !types.IsAllowedChild(p.kind, c.kind) {
		return fmt.Errorf("attach %s under %s: %w", c.kind, p.kind, types.ErrInvalidChildKind)
	}
	part := p.children[c.kind]
	if index < 0 || index > len(part) {
		return fmt.Errorf("attach %s at index %d of %d siblings: out of range", c.uuid, index, len(part))
	}

	part = append(part, nil)
	copy(part[index+1:], part[index:])
	part[index] = c
	p.children[c.kind] = part
	c.parent = p
	c.walk(func(n *Node) { t.index[n.uuid] = n })

	t.notify(Event{Type: EventChildAdded, Parent: p, Child: c, Index: index})
	return nil
}

// RemoveChild detaches child from parent and removes its subtree from the
// UUID index.
// Returns types.ErrHasDependents if the child still has children of its own.
func (t *Tree) RemoveChild(parent, child types.Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, c, err := t.resolvePair(parent, child)
	if err != nil {
		return err
	}
	if c.hasChildren() {
		return fmt.Errorf("remove %s: %w", c.uuid, types.ErrHasDependents)
	}

	part := p.children[c.kind]
	at := -1
	for i, n := range part {
		if n == c {
			at = i
			break
		}
	}
	if at < 0 {
		return fmt.Errorf("remove %s: not a child of %s", c.uuid, p.uuid)
	}

	p.children[c.kind] = append(part[:at], part[at+1:]...)
	c.parent = nil
	c.walk(func(n *Node) { delete(t.index, n.uuid) })

	t.notify(Event{Type: EventChildRemoved, Parent: p, Child: c, Index: at})
	return nil
}

// Children returns the ordered children of parent with the given kind.
func (t *Tree) Children(parent types.Node, kind types.NodeKind) []types.Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := parent.(*Node)
	if !ok {
		return nil
	}
	part := p.children[kind]
	out := make([]types.Node, len(part))
	for i, n := range part {
		out[i] = n
	}
	return out
}

// AllChildren returns every child of parent in combined partition order.
func (t *Tree) AllChildren(parent types.Node) []types.Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := parent.(*Node)
	if !ok {
		return nil
	}
	var out []types.Node
	for _, kind := range types.AllowedChildKinds(p.kind) {
		for _, n := range p.children[kind] {
			out = append(out, n)
		}
	}
	return out
}

// ChildPositionOffset returns the index at which the partition for the given
// child kind starts within parent's combined child list.
func (t *Tree) ChildPositionOffset(parent types.Node, kind types.NodeKind) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := parent.(*Node)
	if !ok {
		return 0
	}
	offset := 0
	for _, k := range types.AllowedChildKinds(p.kind) {
		if k == kind {
			break
		}
		offset += len(p.children[k])
	}
	return offset
}

// Begin opens a batching bracket. Brackets nest; only the outermost pair is
// reported to observers.
func (t *Tree) Begin(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.depth++
	if t.depth == 1 {
		t.notify(Event{Type: EventBegin, Label: label})
	}
}

// Commit closes the innermost batching bracket.
func (t *Tree) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.depth == 0 {
		return
	}
	t.depth--
	if t.depth == 0 {
		t.notify(Event{Type: EventCommit})
	}
}

// Size returns the number of UUID-addressable nodes in the tree.
func (t *Tree) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.index)
}

// UUIDs returns the set of all node UUIDs currently in the tree.
func (t *Tree) UUIDs() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.index))
	for id := range t.index {
		out[id] = true
	}
	return out
}

// resolvePair narrows the interface pair to memtree nodes.
func (t *Tree) resolvePair(parent, child types.Node) (*Node, *Node, error) {
	p, ok := parent.(*Node)
	if !ok || p == nil {
		return nil, nil, fmt.Errorf("parent is not a memtree node")
	}
	c, ok := child.(*Node)
	if !ok || c == nil {
		return nil, nil, fmt.Errorf("child is not a memtree node")
	}
	return p, c, nil
}

// notify delivers an event to all observers. Caller holds t.mu.
func (t *Tree) notify(e Event) {
	for _, obs := range t.observers {
		obs(e)
	}
}
