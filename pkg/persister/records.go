package persister

import (
	"time"

	"github.com/mesh-intelligence/arbor/pkg/types"
)

// PersistedObject is a buffered creation. It is recorded by PersistObject
// and consumed by the commit pipeline, which marks it materialized once the
// node is attached to the tree.
type PersistedObject struct {
	ParentUUID string // empty for a parentless (root) object
	Kind       types.NodeKind
	UUID       string
	Index      int // declared position within the parent's partition for Kind

	materialized bool
}

// PersistedProperty is a buffered property write. Multiple entries may exist
// per UUID; they are kept in insertion order and the last entry for a given
// (uuid, name) is authoritative at commit time.
type PersistedProperty struct {
	UUID          string
	Name          string
	DataType      types.DataType
	OldValue      any
	NewValue      any
	Unconditional bool
}

// RemovedObjectEntry records an applied removal so rollback can reinsert the
// node at its exact prior position. Index is the position within the
// parent's partition for the node's kind.
type RemovedObjectEntry struct {
	ParentUUID string
	Node       types.Node
	Index      int
}

// PersistedObjectEntry records an applied creation so rollback can find and
// detach the node again.
type PersistedObjectEntry struct {
	ParentUUID string `json:"parent_uuid"`
	ChildUUID  string `json:"child_uuid"`
}

// PersistedPropertiesEntry records the value a property write overwrote so
// rollback can restore it.
type PersistedPropertiesEntry struct {
	UUID          string         `json:"uuid"`
	Name          string         `json:"name"`
	DataType      types.DataType `json:"data_type"`
	RollbackValue any            `json:"rollback_value"`
}

// RemovedNodeRecord is the serializable form of a committed removal: enough
// to reinstantiate the node and reinsert it at its prior position.
type RemovedNodeRecord struct {
	ParentUUID string         `json:"parent_uuid"`
	UUID       string         `json:"uuid"`
	Kind       types.NodeKind `json:"kind"`
	Index      int            `json:"index"`
	Properties map[string]any `json:"properties,omitempty"`
}

// CommitRecord is the inverse-operation snapshot of one successfully
// committed transaction. Replaying it through Undo restores the tree to its
// state before that transaction.
type CommitRecord struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"` // persister name, for tracing
	CommittedAt time.Time                  `json:"committed_at"`
	Creations   []PersistedObjectEntry     `json:"creations,omitempty"`
	Properties  []PersistedPropertiesEntry `json:"properties,omitempty"`
	Removals    []RemovedNodeRecord        `json:"removals,omitempty"`
}

// Empty reports whether the record describes a transaction that changed
// nothing.
func (r CommitRecord) Empty() bool {
	return len(r.Creations) == 0 && len(r.Properties) == 0 && len(r.Removals) == 0
}

// Recorder receives the commit record of every successful outermost commit.
// A recorder failure is logged, not propagated: the commit has already been
// applied.
type Recorder interface {
	RecordCommit(rec CommitRecord) error
}
