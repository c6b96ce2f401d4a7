package persister

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/arbor/pkg/types"
)

// rollbackLocked replays the rollback logs in the exact reverse of the
// commit phase order, each log most-recent-first, then discards all buffers
// and releases the transaction. Recovery is best-effort: a failing entry is
// logged and skipped so the remaining entries still get their chance.
// Re-entrant calls while a rollback is in progress are no-ops.
// Caller holds p.mu.
func (p *Persister) rollbackLocked() {
	if p.state == stateRollingBack {
		return
	}
	p.state = stateRollingBack

	defer func() {
		p.clearLocked()
		p.state = stateIdle
		p.logger.Debug("rollback finished, all transactions discarded", "persister", p.name)
	}()

	p.tree.Begin("rollback")
	p.rollbackProperties()
	p.rollbackCreations()
	p.rollbackRemovals()
	p.tree.Commit()
}

// rollbackProperties restores overwritten property values.
func (p *Persister) rollbackProperties() {
	for i := len(p.propertyLog) - 1; i >= 0; i-- {
		entry := p.propertyLog[i]
		node := p.tree.FindByUUID(entry.UUID)
		if node == nil {
			continue
		}
		if err := p.registry.WriteProperty(node, entry.Name, entry.RollbackValue); err != nil {
			p.logger.Error("cannot roll back property write",
				"persister", p.name, "uuid", entry.UUID, "name", entry.Name, "error", err)
		}
	}
}

// rollbackCreations detaches nodes the commit pipeline attached.
func (p *Persister) rollbackCreations() {
	for i := len(p.creationLog) - 1; i >= 0; i-- {
		entry := p.creationLog[i]
		if entry.ParentUUID == "" {
			// Parentless objects were never attached; nothing to detach.
			continue
		}
		parent := p.tree.FindByUUID(entry.ParentUUID)
		child := p.tree.FindByUUID(entry.ChildUUID)
		if parent == nil || child == nil {
			continue
		}
		if err := p.tree.RemoveChild(parent, child); err != nil {
			p.logger.Error("cannot roll back creation",
				"persister", p.name, "uuid", entry.ChildUUID, "error", err)
		}
	}
}

// rollbackRemovals reinserts removed nodes at their recorded indices.
func (p *Persister) rollbackRemovals() {
	for i := len(p.removalLog) - 1; i >= 0; i-- {
		entry := p.removalLog[i]
		parent := p.tree.FindByUUID(entry.ParentUUID)
		if parent == nil {
			p.logger.Error("cannot roll back removal, parent gone",
				"persister", p.name, "uuid", entry.Node.UUID(), "parent", entry.ParentUUID)
			continue
		}
		if err := p.tree.AddChild(parent, entry.Node, entry.Index); err != nil {
			p.logger.Error("cannot roll back removal",
				"persister", p.name, "uuid", entry.Node.UUID(), "error", err)
		}
	}
}

// Undo replays a commit record's inverse operations onto a tree, restoring
// the state from before that transaction: overwritten property values are
// written back, created nodes are detached, and removed nodes are
// reinstantiated from their snapshots and reinserted at their prior
// indices. Undo drives a privileged persister through its forced-rollback
// path, so conflict checking cannot block the replay and recovery is
// best-effort.
func Undo(tree types.Tree, registry types.Registry, rec CommitRecord, logger *slog.Logger) error {
	p := New("undo", tree, registry)
	p.SetLogger(logger)
	p.SetPrivileged(true)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.creationLog = rec.Creations
	p.propertyLog = rec.Properties
	for _, rem := range rec.Removals {
		node, err := registry.Instantiate(rem.Kind, rem.UUID, rem.Properties)
		if err != nil {
			return fmt.Errorf("undo: reinstantiate %s: %w", rem.UUID, err)
		}
		p.removalLog = append(p.removalLog, RemovedObjectEntry{
			ParentUUID: rem.ParentUUID,
			Node:       node,
			Index:      rem.Index,
		})
	}

	p.rollbackLocked()
	return nil
}
