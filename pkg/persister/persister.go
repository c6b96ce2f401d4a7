package persister

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/mesh-intelligence/arbor/pkg/types"
)

// coordinator states. Rollback is modeled as an explicit state so re-entrant
// rollback triggers observe a no-op instead of racing a boolean flag.
type state int32

const (
	stateIdle state = iota
	stateCommitting
	stateRollingBack
)

// Persister coordinates transactional mutation of a target tree. All entry
// points serialize on one mutex; within an open transaction the first call
// additionally binds the transaction to the calling goroutine.
type Persister struct {
	mu       sync.Mutex
	name     string
	tree     types.Tree
	registry types.Registry
	logger   *slog.Logger
	recorder Recorder

	state      state
	nesting    atomic.Int32 // atomic so observers may read mid-commit
	privileged bool
	bound      uint64 // goroutine id the open transaction is bound to; 0 = unbound

	// Mutation buffers, accumulated between Begin and the outermost Commit.
	creations     []*PersistedObject
	properties    map[string][]PersistedProperty
	propertyOrder []string          // UUIDs in first-buffered order
	removals      map[string]string // UUID -> parent UUID
	removalOrder  []string          // UUIDs in buffered order

	// Rollback logs, recorded as buffered operations are actually applied.
	creationLog []PersistedObjectEntry
	propertyLog []PersistedPropertiesEntry
	removalLog  []RemovedObjectEntry
}

// New creates a persister coordinating the given tree through the given
// accessor registry. The name appears in log lines and commit records.
func New(name string, tree types.Tree, registry types.Registry) *Persister {
	return &Persister{
		name:       name,
		tree:       tree,
		registry:   registry,
		logger:     slog.Default(),
		properties: make(map[string][]PersistedProperty),
		removals:   make(map[string]string),
	}
}

// SetLogger replaces the persister's logger.
func (p *Persister) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetRecorder registers the recorder that receives a CommitRecord after
// every successful outermost commit.
func (p *Persister) SetRecorder(r Recorder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorder = r
}

// SetPrivileged switches privileged (replay) mode. While set, every property
// write is treated as unconditional so conflict checking cannot block a
// replay of saved operations.
func (p *Persister) SetPrivileged(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.privileged = on
}

// InTransaction reports whether a transaction is open. Safe to call from
// tree observers during a commit.
func (p *Persister) InTransaction() bool {
	return p.nesting.Load() > 0
}

// IsUpdatingTree reports whether the persister is currently driving the
// tree (open transaction, committing, or rolling back). Observers relaying
// tree events elsewhere read this to suppress echoes of the persister's own
// structural changes.
func (p *Persister) IsUpdatingTree() bool {
	return p.nesting.Load() > 0
}

// Begin opens a transaction, or deepens the nesting of an already open one.
// Returns types.ErrThreadAffinity if the open transaction is bound to
// another goroutine.
func (p *Persister) Begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enforceAffinity(); err != nil {
		return err
	}
	n := p.nesting.Add(1)
	p.logger.Debug("begin", "persister", p.name, "nesting", n)
	return nil
}

// PersistObject buffers the creation of a node of the given kind under
// parentUUID at the given partition index. An empty parentUUID declares a
// parentless (root) object.
// Returns types.ErrNotInTransaction outside a transaction and
// types.ErrAlreadyExists if the UUID already resolves against the
// buffer+tree union; both trigger an automatic rollback first.
func (p *Persister) PersistObject(parentUUID string, kind types.NodeKind, uuid string, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enforceAffinity(); err != nil {
		return err
	}
	p.logger.Debug("persistObject",
		"persister", p.name, "parent", parentUUID, "kind", kind, "uuid", uuid, "index", index)

	if p.nesting.Load() == 0 {
		p.rollbackLocked()
		return fmt.Errorf("persistObject %s: %w", uuid, types.ErrNotInTransaction)
	}
	// Re-persisting the live root is tolerated: replayed streams open with
	// the parentless workspace object that the tree was constructed around.
	if p.exists(uuid) && uuid != p.tree.Root().UUID() {
		p.rollbackLocked()
		return fmt.Errorf("persistObject %s under %s: %w", uuid, parentUUID, types.ErrAlreadyExists)
	}

	p.creations = append(p.creations, &PersistedObject{
		ParentUUID: parentUUID,
		Kind:       kind,
		UUID:       uuid,
		Index:      index,
	})
	return nil
}

// PersistProperty buffers a conditional property write: at buffering time
// oldValue must match the last value buffered for (uuid, name) in this
// transaction, or, failing that, the live value read through the registry.
// Returns types.ErrPropertyConflict on mismatch, types.ErrUnknownObject if
// the UUID resolves to neither a live node nor a pending creation, and
// types.ErrNotInTransaction outside a transaction; all trigger an automatic
// rollback first.
func (p *Persister) PersistProperty(uuid, name string, dataType types.DataType, oldValue, newValue any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enforceAffinity(); err != nil {
		return err
	}
	p.logger.Debug("persistProperty",
		"persister", p.name, "uuid", uuid, "name", name, "type", dataType, "old", oldValue, "new", newValue)

	if p.nesting.Load() == 0 {
		p.rollbackLocked()
		return fmt.Errorf("persistProperty %s.%s: %w", uuid, name, types.ErrNotInTransaction)
	}
	if err := p.bufferProperty(uuid, name, dataType, oldValue, newValue, p.privileged); err != nil {
		p.rollbackLocked()
		return err
	}
	return nil
}

// PersistPropertyUnconditional buffers a property write that overwrites
// whatever value is present, skipping conflict detection.
// Returns types.ErrUnknownObject or types.ErrNotInTransaction as
// PersistProperty does.
func (p *Persister) PersistPropertyUnconditional(uuid, name string, dataType types.DataType, newValue any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enforceAffinity(); err != nil {
		return err
	}
	p.logger.Debug("persistProperty unconditional",
		"persister", p.name, "uuid", uuid, "name", name, "type", dataType, "new", newValue)

	if p.nesting.Load() == 0 {
		p.rollbackLocked()
		return fmt.Errorf("persistProperty %s.%s: %w", uuid, name, types.ErrNotInTransaction)
	}
	if err := p.bufferProperty(uuid, name, dataType, newValue, newValue, true); err != nil {
		p.rollbackLocked()
		return err
	}
	return nil
}

// RemoveObject buffers the removal of the node with the given UUID from its
// parent.
// Returns types.ErrUnknownObject if the UUID does not resolve against the
// buffer+tree union and types.ErrNotInTransaction outside a transaction;
// both trigger an automatic rollback first.
func (p *Persister) RemoveObject(parentUUID, uuid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enforceAffinity(); err != nil {
		return err
	}
	p.logger.Debug("removeObject", "persister", p.name, "parent", parentUUID, "uuid", uuid)

	if p.nesting.Load() == 0 {
		p.rollbackLocked()
		return fmt.Errorf("removeObject %s: %w", uuid, types.ErrNotInTransaction)
	}
	if !p.exists(uuid) {
		p.rollbackLocked()
		return fmt.Errorf("removeObject %s from %s: %w", uuid, parentUUID, types.ErrUnknownObject)
	}
	if _, buffered := p.removals[uuid]; !buffered {
		p.removalOrder = append(p.removalOrder, uuid)
	}
	p.removals[uuid] = parentUUID
	return nil
}

// Commit closes one nesting level. When the outermost level closes, the
// buffered operations are flushed through the commit pipeline inside one
// tree batching bracket: removals, then creations, then properties, each in
// its sorted order. Any pipeline failure triggers an automatic rollback and
// is returned wrapped in types.ErrCommitFailed.
func (p *Persister) Commit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enforceAffinity(); err != nil {
		return err
	}
	n := p.nesting.Load()
	p.logger.Debug("commit", "persister", p.name, "nesting", n)

	if n == 0 {
		return fmt.Errorf("commit: %w", types.ErrNotInTransaction)
	}
	if n > 1 {
		p.nesting.Add(-1)
		return nil
	}

	p.state = stateCommitting
	p.creationLog = nil
	p.propertyLog = nil
	p.removalLog = nil

	p.logger.Debug("commit phase starting",
		"persister", p.name,
		"creations", len(p.creations),
		"properties", len(p.properties),
		"removals", len(p.removals))

	p.tree.Begin("commit")
	err := p.runCommitPipeline()
	if err != nil {
		p.logger.Error("commit pipeline failed, rolling back", "persister", p.name, "error", err)
		p.rollbackLocked()
		p.tree.Commit()
		return fmt.Errorf("%w: %w", types.ErrCommitFailed, err)
	}

	rec := p.buildCommitRecord()
	p.clearLocked()
	p.state = stateIdle
	p.tree.Commit()

	if p.recorder != nil && !rec.Empty() {
		if rerr := p.recorder.RecordCommit(rec); rerr != nil {
			p.logger.Error("commit recorder failed", "persister", p.name, "error", rerr)
		}
	}
	p.logger.Debug("commit succeeded", "persister", p.name)
	return nil
}

// Rollback discards all buffered operations, undoes any partially applied
// commit work, and resets nesting to zero regardless of depth.
// Returns types.ErrThreadAffinity (after still forcing the rollback) when
// called from a goroutine other than the bound one.
func (p *Persister) Rollback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bound != 0 && p.bound != goid() {
		p.rollbackLocked()
		return fmt.Errorf("rollback: %w", types.ErrThreadAffinity)
	}
	p.rollbackLocked()
	return nil
}

// ForceRollback is Rollback without the goroutine-affinity check. It is the
// entry point for supervisory callers that must reset the coordinator from
// outside the bound goroutine.
func (p *Persister) ForceRollback() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollbackLocked()
}

// bufferProperty validates and buffers one property write. Conflict
// resolution order: the last value already buffered for (uuid, name) wins
// over the live value read through the registry.
func (p *Persister) bufferProperty(uuid, name string, dataType types.DataType, oldValue, newValue any, unconditional bool) error {
	if !p.exists(uuid) {
		return fmt.Errorf("persistProperty %s.%s: %w", uuid, name, types.ErrUnknownObject)
	}

	var lastBuffered any
	found := false
	for _, entry := range p.properties[uuid] {
		if entry.Name == name {
			lastBuffered = entry.NewValue
			found = true
		}
	}

	live := p.tree.FindByUUID(uuid)

	var rollbackValue any
	if found {
		if !unconditional && !equalValues(lastBuffered, oldValue) {
			return fmt.Errorf("property %q on %s: expected %v, buffered value is %v: %w",
				name, uuid, oldValue, lastBuffered, types.ErrPropertyConflict)
		}
		rollbackValue = oldValue
	} else if live != nil {
		liveValue, err := p.registry.ReadProperty(live, name)
		if err != nil {
			return fmt.Errorf("persistProperty %s.%s: %w", uuid, name, err)
		}
		if !unconditional && !equalValues(liveValue, oldValue) {
			return fmt.Errorf("property %q on %s: expected %v, live value is %v: %w",
				name, uuid, oldValue, liveValue, types.ErrPropertyConflict)
		}
		rollbackValue = liveValue
	} else {
		// Pending creation: nothing to conflict with.
		rollbackValue = oldValue
	}

	if _, ok := p.properties[uuid]; !ok {
		p.propertyOrder = append(p.propertyOrder, uuid)
	}
	p.properties[uuid] = append(p.properties[uuid], PersistedProperty{
		UUID:          uuid,
		Name:          name,
		DataType:      dataType,
		OldValue:      rollbackValue,
		NewValue:      newValue,
		Unconditional: unconditional,
	})
	return nil
}

// exists reports whether a UUID resolves against the buffer+tree union: a
// UUID buffered for removal no longer exists, a UUID buffered for creation
// already does.
func (p *Persister) exists(uuid string) bool {
	if _, removed := p.removals[uuid]; removed {
		return false
	}
	for _, pwo := range p.creations {
		if pwo.UUID == uuid {
			return true
		}
	}
	return p.tree.FindByUUID(uuid) != nil
}

// enforceAffinity binds the transaction to the calling goroutine on first
// contact and forces a rollback when a later call arrives from a different
// one. Caller holds p.mu.
func (p *Persister) enforceAffinity() error {
	gid := goid()
	if p.bound == 0 {
		p.bound = gid
		return nil
	}
	if p.bound != gid {
		p.rollbackLocked()
		return fmt.Errorf("call from goroutine %d, transaction bound to %d: %w",
			gid, p.bound, types.ErrThreadAffinity)
	}
	return nil
}

// findBuffered returns the pending creation with the given UUID, or nil.
func (p *Persister) findBuffered(uuid string) *PersistedObject {
	if uuid == "" {
		return nil
	}
	for _, pwo := range p.creations {
		if pwo.UUID == uuid {
			return pwo
		}
	}
	return nil
}

// clearLocked empties every buffer and rollback log and releases the
// transaction. Caller holds p.mu.
func (p *Persister) clearLocked() {
	p.creations = nil
	p.properties = make(map[string][]PersistedProperty)
	p.propertyOrder = nil
	p.removals = make(map[string]string)
	p.removalOrder = nil
	p.creationLog = nil
	p.propertyLog = nil
	p.removalLog = nil
	p.nesting.Store(0)
	p.bound = 0
}

// equalValues compares two property values, treating all numeric types as
// interchangeable so replayed (JSON-decoded) values compare equal to their
// in-memory counterparts.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := asNumber(a); ok {
		fb, ok := asNumber(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func asNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
