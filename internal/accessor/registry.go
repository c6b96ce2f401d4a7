// Package accessor implements the property accessor registry: one explicit
// table per node kind mapping property names to get/set logic. The tables
// are built at startup so per-kind dispatch stays in one auditable place,
// with no runtime type inspection.
package accessor

import (
	"fmt"
	"sort"

	"github.com/mesh-intelligence/arbor/internal/memtree"
	"github.com/mesh-intelligence/arbor/pkg/types"
)

// accessor holds the get and set logic for one property of one node kind.
type accessor struct {
	dataType types.DataType
	get      func(*memtree.Node) any
	set      func(*memtree.Node, any) error
}

// Registry implements types.Registry over memtree nodes.
type Registry struct {
	tables map[types.NodeKind]map[string]accessor
}

// New builds the registry with the accessor tables for every node kind.
func New() *Registry {
	name := accessor{
		dataType: types.DataTypeString,
		get:      func(n *memtree.Node) any { return n.Name() },
		set: func(n *memtree.Node, v any) error {
			s, err := asString(v)
			if err != nil {
				return err
			}
			n.SetName(s)
			return nil
		},
	}

	return &Registry{tables: map[types.NodeKind]map[string]accessor{
		types.KindWorkspace: {
			"name": name,
		},
		types.KindFolder: {
			"name": name,
			"collapsed": {
				dataType: types.DataTypeBool,
				get:      func(n *memtree.Node) any { return n.Collapsed() },
				set: func(n *memtree.Node, v any) error {
					b, err := asBool(v)
					if err != nil {
						return err
					}
					n.SetCollapsed(b)
					return nil
				},
			},
		},
		types.KindItem: {
			"name": name,
			"content": {
				dataType: types.DataTypeString,
				get:      func(n *memtree.Node) any { return n.Content() },
				set: func(n *memtree.Node, v any) error {
					s, err := asString(v)
					if err != nil {
						return err
					}
					n.SetContent(s)
					return nil
				},
			},
			"rank": {
				dataType: types.DataTypeInt,
				get:      func(n *memtree.Node) any { return n.Rank() },
				set: func(n *memtree.Node, v any) error {
					i, err := asInt(v)
					if err != nil {
						return err
					}
					n.SetRank(i)
					return nil
				},
			},
			"done": {
				dataType: types.DataTypeBool,
				get:      func(n *memtree.Node) any { return n.Done() },
				set: func(n *memtree.Node, v any) error {
					b, err := asBool(v)
					if err != nil {
						return err
					}
					n.SetDone(b)
					return nil
				},
			},
			"reference": {
				dataType: types.DataTypeReference,
				get:      func(n *memtree.Node) any { return n.Reference() },
				set: func(n *memtree.Node, v any) error {
					s, err := asString(v)
					if err != nil {
						return err
					}
					n.SetReference(s)
					return nil
				},
			},
		},
	}}
}

// ReadProperty returns the current value of the named property on node.
// Returns types.ErrUnknownProperty if the node's kind has no such property.
func (r *Registry) ReadProperty(node types.Node, name string) (any, error) {
	n, acc, err := r.resolve(node, name)
	if err != nil {
		return nil, err
	}
	return acc.get(n), nil
}

// WriteProperty sets the named property on node to value.
// Returns types.ErrUnknownProperty if the node's kind has no such property.
func (r *Registry) WriteProperty(node types.Node, name string, value any) error {
	n, acc, err := r.resolve(node, name)
	if err != nil {
		return err
	}
	return acc.set(n, value)
}

// Instantiate constructs an unattached node of the given kind and applies
// the constructor properties through the kind's accessor table.
// Returns types.ErrUnknownKind for kinds with no table and
// types.ErrUnknownProperty for constructor properties the kind lacks.
func (r *Registry) Instantiate(kind types.NodeKind, uuid string, ctorProps map[string]any) (types.Node, error) {
	table, ok := r.tables[kind]
	if !ok {
		return nil, fmt.Errorf("instantiate %q: %w", kind, types.ErrUnknownKind)
	}
	n := memtree.NewNode(kind, uuid)
	for name, value := range ctorProps {
		acc, ok := table[name]
		if !ok {
			return nil, fmt.Errorf("constructor property %q on kind %s: %w", name, kind, types.ErrUnknownProperty)
		}
		if err := acc.set(n, value); err != nil {
			return nil, fmt.Errorf("constructor property %q on kind %s: %w", name, kind, err)
		}
	}
	return n, nil
}

// PropertyNames returns the sorted property names defined for a kind.
// Returns nil for unrecognized kinds.
func (r *Registry) PropertyNames(kind types.NodeKind) []string {
	table, ok := r.tables[kind]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DataTypeOf returns the declared data type of a property, or
// types.ErrUnknownProperty if the kind has no such property.
func (r *Registry) DataTypeOf(kind types.NodeKind, name string) (types.DataType, error) {
	table, ok := r.tables[kind]
	if !ok {
		return "", fmt.Errorf("kind %q: %w", kind, types.ErrUnknownKind)
	}
	acc, ok := table[name]
	if !ok {
		return "", fmt.Errorf("property %q on kind %s: %w", name, kind, types.ErrUnknownProperty)
	}
	return acc.dataType, nil
}

// resolve narrows node to a memtree node and looks up its accessor.
func (r *Registry) resolve(node types.Node, name string) (*memtree.Node, accessor, error) {
	n, ok := node.(*memtree.Node)
	if !ok || n == nil {
		return nil, accessor{}, fmt.Errorf("property %q: node is not a memtree node", name)
	}
	table, ok := r.tables[n.Kind()]
	if !ok {
		return nil, accessor{}, fmt.Errorf("kind %q: %w", n.Kind(), types.ErrUnknownKind)
	}
	acc, ok := table[name]
	if !ok {
		return nil, accessor{}, fmt.Errorf("property %q on kind %s: %w", name, n.Kind(), types.ErrUnknownProperty)
	}
	return n, acc, nil
}
