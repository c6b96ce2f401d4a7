package types

import "errors"

// Registry resolves (node kind, property name) pairs to explicit get/set
// logic. Accessor tables are built at startup; there is no runtime type
// inspection.
type Registry interface {
	// ReadProperty returns the current value of the named property on node.
	// Returns ErrUnknownProperty if the node's kind has no such property.
	ReadProperty(node Node, name string) (any, error)

	// WriteProperty sets the named property on node to value.
	// Returns ErrUnknownProperty if the node's kind has no such property.
	WriteProperty(node Node, name string, value any) error

	// Instantiate constructs a new, unattached node of the given kind with
	// the given UUID, applying any constructor properties it requires.
	// Returns ErrUnknownKind if the kind has no accessor table.
	Instantiate(kind NodeKind, uuid string, ctorProps map[string]any) (Node, error)
}

// Registry errors.
var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrUnknownKind     = errors.New("unknown node kind")
)
