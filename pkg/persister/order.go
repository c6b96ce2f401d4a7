package persister

import (
	"strings"

	"github.com/mesh-intelligence/arbor/pkg/types"
)

// compareCreations orders buffered creations so that a parent is always
// committed before its children and, among objects sharing a parent and
// kind, the one with the smaller declared index goes first. For unrelated
// objects the ancestor chains are walked in lockstep to the first point of
// divergence and the branches compared there, which yields a topological
// order without requiring the buffer to arrive pre-sorted.
func (p *Persister) compareCreations(o1, o2 *PersistedObject) int {
	switch {
	case o1.ParentUUID == "" && o2.ParentUUID == "":
		return 0
	case o1.ParentUUID == "":
		return -1
	case o2.ParentUUID == "":
		return 1
	}
	if o1.ParentUUID == o2.ParentUUID && o1.Kind == o2.Kind {
		return sign(o1.Index - o2.Index)
	}

	chain1 := p.creationAncestors(o1)
	chain2 := p.creationAncestors(o2)

	var prev, anc1, anc2 *PersistedObject
	divergent := false
	for i := 0; i < len(chain1) && i < len(chain2); i++ {
		anc1 = chain1[i]
		anc2 = chain2[i]
		if prev != nil && anc1.UUID != anc2.UUID {
			divergent = true
			break
		}
		prev = anc1
	}

	if !divergent {
		// One chain is a prefix of the other (or they are identical):
		// compare the shallower object against the other's ancestor at the
		// same depth.
		switch {
		case len(chain1) < len(chain2):
			anc1 = o1
			anc2 = chain2[len(chain1)]
		case len(chain1) > len(chain2):
			anc1 = chain1[len(chain2)]
			anc2 = o2
		default:
			anc1 = o1
			anc2 = o2
		}
	}

	var c int
	switch {
	case anc1.UUID == anc2.UUID:
		c = len(chain1) - len(chain2)
	case anc1.Kind == anc2.Kind:
		c = anc1.Index - anc2.Index
	default:
		// Diverging branches of different kinds carry no comparable index;
		// fall back to UUID so the order stays total.
		c = strings.Compare(anc1.UUID, anc2.UUID)
	}
	return sign(c)
}

// creationAncestors builds the ancestor chain of a buffered creation,
// topmost first: buffered parent links are walked until a UUID resolves in
// the live tree, then the live node's real ancestor chain is spliced on.
// The chain excludes the object itself.
func (p *Persister) creationAncestors(child *PersistedObject) []*PersistedObject {
	var chain []*PersistedObject

	uuid := child.ParentUUID
	for {
		pwo := p.findBuffered(uuid)
		if pwo == nil {
			break
		}
		chain = append([]*PersistedObject{pwo}, chain...)
		uuid = pwo.ParentUUID
	}

	if live := p.tree.FindByUUID(uuid); live != nil {
		chain = append([]*PersistedObject{p.describeLive(live)}, chain...)
		for anc := live.Parent(); anc != nil; anc = anc.Parent() {
			chain = append([]*PersistedObject{p.describeLive(anc)}, chain...)
		}
	}
	return chain
}

// describeLive renders a live node in buffered-creation form so both halves
// of a spliced ancestor chain compare uniformly.
func (p *Persister) describeLive(node types.Node) *PersistedObject {
	parentUUID := ""
	index := 0
	if parent := node.Parent(); parent != nil {
		parentUUID = parent.UUID()
		for i, sib := range p.tree.Children(parent, node.Kind()) {
			if sib.UUID() == node.UUID() {
				index = i
				break
			}
		}
	}
	return &PersistedObject{
		ParentUUID: parentUUID,
		Kind:       node.Kind(),
		UUID:       node.UUID(),
		Index:      index,
	}
}

// compareRemovals orders buffered removal targets, resolved against the
// current live tree, so that a deeper or later-indexed node is detached
// before an ancestor or earlier sibling. A UUID with no live node (already
// removed earlier in this run) sorts first so the order stays total.
func (p *Persister) compareRemovals(u1, u2 string) int {
	if u1 == u2 {
		return 0
	}
	n1 := p.tree.FindByUUID(u1)
	n2 := p.tree.FindByUUID(u2)

	switch {
	case n1 == nil && n2 == nil:
		return strings.Compare(u2, u1)
	case n1 == nil:
		return -1
	case n2 == nil:
		return 1
	}

	p1 := n1.Parent()
	p2 := n2.Parent()
	switch {
	case p1 == nil && p2 == nil:
		return 0
	case p1 == nil:
		return 1
	case p2 == nil:
		return -1
	}
	if p1.UUID() == p2.UUID() {
		siblings := p.tree.AllChildren(p1)
		return sign(indexOf(siblings, u2) - indexOf(siblings, u1))
	}

	chain1 := p.liveAncestors(n1)
	chain2 := p.liveAncestors(n2)

	var prev types.Node
	anc1, anc2 := n1, n2
	divergent := false
	for i := 0; i < len(chain1) && i < len(chain2); i++ {
		anc1 = chain1[i]
		anc2 = chain2[i]
		if prev != nil && anc1.UUID() != anc2.UUID() {
			divergent = true
			break
		}
		prev = anc1
	}

	if !divergent {
		switch {
		case len(chain1) < len(chain2):
			anc1 = n1
			anc2 = chain2[len(chain1)]
		case len(chain1) > len(chain2):
			anc1 = chain1[len(chain2)]
			anc2 = n2
		default:
			anc1 = n1
			anc2 = n2
		}
	}

	var c int
	switch {
	case anc1.UUID() == anc2.UUID():
		// Deeper node first.
		c = len(chain2) - len(chain1)
	case prev != nil && anc1.Kind() == anc2.Kind():
		// Reverse sibling position under the last common ancestor.
		siblings := p.tree.AllChildren(prev)
		c = indexOf(siblings, anc2.UUID()) - indexOf(siblings, anc1.UUID())
	default:
		c = strings.Compare(u2, u1)
	}
	return sign(c)
}

// liveAncestors returns a live node's ancestor chain, topmost first,
// excluding the node itself.
func (p *Persister) liveAncestors(node types.Node) []types.Node {
	var chain []types.Node
	for anc := node.Parent(); anc != nil; anc = anc.Parent() {
		chain = append([]types.Node{anc}, chain...)
	}
	return chain
}

// indexOf returns the position of the node with the given UUID, or -1.
func indexOf(nodes []types.Node, uuid string) int {
	for i, n := range nodes {
		if n.UUID() == uuid {
			return i
		}
	}
	return -1
}

func sign(c int) int {
	switch {
	case c < 0:
		return -1
	case c > 0:
		return 1
	default:
		return 0
	}
}
