// Package persister implements the transactional persistence coordinator
// for an in-memory, UUID-addressed object tree.
//
// Callers bracket a batch of buffered mutations between Begin and Commit:
//
//	p.Begin()
//	p.PersistObject("", types.KindWorkspace, rootID, 0)
//	p.PersistPropertyUnconditional(rootID, "name", types.DataTypeString, "Foo")
//	p.Commit()
//
// Nothing touches the tree until the outermost Commit, which applies the
// buffers in a fixed phase order (removals, creations, properties), each
// phase sorted into a structurally valid order: parents before children,
// siblings by index, dependents detached before their ancestors. Inverse
// operations are recorded as each buffered operation is applied; any
// mid-commit failure triggers an automatic best-effort rollback that replays
// those records in reverse, so the caller never observes a half-committed
// tree.
//
// The coordinator is a single-writer actor: the first call of an open
// transaction binds it to the calling goroutine, and a mutating call from
// any other goroutine forces a rollback and fails.
package persister
