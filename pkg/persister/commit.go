package persister

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/arbor/pkg/types"
)

// runCommitPipeline flushes the mutation buffers in the fixed phase order
// removals, creations, properties. Each phase records inverse operations in
// its rollback log as it goes; the first failure aborts the remaining
// phases. Caller holds p.mu and an open tree bracket.
func (p *Persister) runCommitPipeline() error {
	if err := p.commitRemovals(); err != nil {
		return err
	}
	if err := p.commitObjects(); err != nil {
		return err
	}
	return p.commitProperties()
}

// commitRemovals detaches every buffered removal target, deepest and
// latest-indexed first, recording each node's pre-removal partition index.
func (p *Persister) commitRemovals() error {
	order := make([]string, len(p.removalOrder))
	copy(order, p.removalOrder)
	sort.SliceStable(order, func(i, j int) bool {
		return p.compareRemovals(order[i], order[j]) < 0
	})

	for _, id := range order {
		node := p.tree.FindByUUID(id)
		if node == nil {
			return fmt.Errorf("remove %s: %w", id, types.ErrUnknownObject)
		}
		parent := p.tree.FindByUUID(p.removals[id])
		if parent == nil {
			return fmt.Errorf("remove %s: parent %s: %w", id, p.removals[id], types.ErrUnknownObject)
		}

		combined := indexOf(p.tree.AllChildren(parent), id)
		index := combined - p.tree.ChildPositionOffset(parent, node.Kind())

		if err := p.tree.RemoveChild(parent, node); err != nil {
			return fmt.Errorf("remove %s: %w", id, err)
		}
		p.removalLog = append(p.removalLog, RemovedObjectEntry{
			ParentUUID: parent.UUID(),
			Node:       node,
			Index:      index,
		})
	}

	p.removals = make(map[string]string)
	p.removalOrder = nil
	return nil
}

// commitObjects materializes every buffered creation in ancestor order:
// parents before children, same-partition siblings by declared index. The
// registry instantiates each node with its buffered properties as
// constructor properties, which consumes them from the property buffer.
func (p *Persister) commitObjects() error {
	sort.SliceStable(p.creations, func(i, j int) bool {
		return p.compareCreations(p.creations[i], p.creations[j]) < 0
	})

	for _, pwo := range p.creations {
		if pwo.materialized {
			continue
		}
		if pwo.ParentUUID == "" {
			// A parentless object can only (re)declare the tree's root.
			if pwo.UUID == p.tree.Root().UUID() {
				pwo.materialized = true
				continue
			}
			return fmt.Errorf("create parentless %s: tree root is %s: %w",
				pwo.UUID, p.tree.Root().UUID(), types.ErrUnknownObject)
		}

		parent := p.tree.FindByUUID(pwo.ParentUUID)
		if parent == nil {
			return fmt.Errorf("create %s: parent %s: %w", pwo.UUID, pwo.ParentUUID, types.ErrUnknownObject)
		}

		node, err := p.registry.Instantiate(pwo.Kind, pwo.UUID, p.takeBufferedProperties(pwo.UUID))
		if err != nil {
			return fmt.Errorf("create %s: %w", pwo.UUID, err)
		}

		// Clamp against index drift from removals earlier in this run.
		index := pwo.Index
		if n := len(p.tree.Children(parent, pwo.Kind)); index > n {
			index = n
		}
		if index < 0 {
			index = 0
		}
		if err := p.tree.AddChild(parent, node, index); err != nil {
			return fmt.Errorf("create %s under %s: %w", pwo.UUID, pwo.ParentUUID, err)
		}

		p.creationLog = append(p.creationLog, PersistedObjectEntry{
			ParentUUID: parent.UUID(),
			ChildUUID:  pwo.UUID,
		})
		pwo.materialized = true
	}

	p.creations = nil
	return nil
}

// takeBufferedProperties drains the buffered writes for a UUID into a
// last-write-wins map of constructor properties.
func (p *Persister) takeBufferedProperties(uuid string) map[string]any {
	entries := p.properties[uuid]
	if len(entries) == 0 {
		return nil
	}
	props := make(map[string]any, len(entries))
	for _, entry := range entries {
		props[entry.Name] = entry.NewValue
	}
	delete(p.properties, uuid)
	for i, id := range p.propertyOrder {
		if id == uuid {
			p.propertyOrder = append(p.propertyOrder[:i], p.propertyOrder[i+1:]...)
			break
		}
	}
	return props
}

// commitProperties applies the remaining buffered property writes,
// last-write-wins per (uuid, name), recording the value each write
// overwrites.
func (p *Persister) commitProperties() error {
	for _, id := range p.propertyOrder {
		node := p.tree.FindByUUID(id)
		if node == nil {
			return fmt.Errorf("apply properties to %s: %w", id, types.ErrUnknownObject)
		}

		for _, entry := range lastWriteWins(p.properties[id]) {
			p.logger.Debug("applying property",
				"persister", p.name, "uuid", id, "name", entry.Name, "value", entry.NewValue)

			overwritten, err := p.registry.ReadProperty(node, entry.Name)
			if err != nil {
				return fmt.Errorf("apply %s.%s: %w", id, entry.Name, err)
			}
			if err := p.registry.WriteProperty(node, entry.Name, entry.NewValue); err != nil {
				return fmt.Errorf("apply %s.%s: %w", id, entry.Name, err)
			}
			p.propertyLog = append(p.propertyLog, PersistedPropertiesEntry{
				UUID:          id,
				Name:          entry.Name,
				DataType:      entry.DataType,
				RollbackValue: overwritten,
			})
		}
	}

	p.properties = make(map[string][]PersistedProperty)
	p.propertyOrder = nil
	return nil
}

// lastWriteWins reduces buffered writes to the final entry per property
// name, preserving first-buffered name order.
func lastWriteWins(entries []PersistedProperty) []PersistedProperty {
	var names []string
	last := make(map[string]PersistedProperty, len(entries))
	for _, entry := range entries {
		if _, seen := last[entry.Name]; !seen {
			names = append(names, entry.Name)
		}
		last[entry.Name] = entry
	}
	out := make([]PersistedProperty, 0, len(names))
	for _, name := range names {
		out = append(out, last[name])
	}
	return out
}

// buildCommitRecord snapshots the rollback logs of a just-committed
// transaction in serializable form. Caller holds p.mu.
func (p *Persister) buildCommitRecord() CommitRecord {
	rec := CommitRecord{
		ID:          newRecordID(),
		Name:        p.name,
		CommittedAt: time.Now().UTC(),
		Creations:   append([]PersistedObjectEntry(nil), p.creationLog...),
		Properties:  append([]PersistedPropertiesEntry(nil), p.propertyLog...),
	}
	for _, entry := range p.removalLog {
		rec.Removals = append(rec.Removals, RemovedNodeRecord{
			ParentUUID: entry.ParentUUID,
			UUID:       entry.Node.UUID(),
			Kind:       entry.Node.Kind(),
			Index:      entry.Index,
			Properties: p.snapshotProperties(entry.Node),
		})
	}
	return rec
}

// propertyLister is the optional registry extension used to snapshot all
// properties of a removed node into its commit record.
type propertyLister interface {
	PropertyNames(kind types.NodeKind) []string
}

// snapshotProperties reads every property of a node the registry can
// enumerate. Returns nil when the registry cannot enumerate properties.
func (p *Persister) snapshotProperties(node types.Node) map[string]any {
	lister, ok := p.registry.(propertyLister)
	if !ok {
		return nil
	}
	names := lister.PropertyNames(node.Kind())
	if len(names) == 0 {
		return nil
	}
	props := make(map[string]any, len(names))
	for _, name := range names {
		value, err := p.registry.ReadProperty(node, name)
		if err != nil {
			continue
		}
		props[name] = value
	}
	return props
}

// newRecordID returns a v7 UUID, falling back to v4 if v7 generation fails.
func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
