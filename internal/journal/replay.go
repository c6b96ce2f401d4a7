package journal

import (
	"fmt"

	"github.com/mesh-intelligence/arbor/pkg/persister"
)

// Replay drives a persister through a decoded operation stream. The
// persister is switched into privileged mode for the duration so conflict
// checking cannot block the replay of saved operations; the previous mode
// is not restored because replay persisters are single-purpose.
// The first failing operation aborts the replay; the persister has already
// rolled itself back by the time the error returns.
func Replay(ops []Op, p *persister.Persister) error {
	p.SetPrivileged(true)

	for i, op := range ops {
		var err error
		switch op.Type {
		case OpBegin:
			err = p.Begin()
		case OpCommit:
			err = p.Commit()
		case OpRollback:
			err = p.Rollback()
		case OpPersistObject:
			err = p.PersistObject(op.ParentUUID, op.Kind, op.UUID, op.Index)
		case OpPersistProperty:
			if op.Conditional {
				err = p.PersistProperty(op.UUID, op.Name, op.DataType, op.OldValue, op.NewValue)
			} else {
				err = p.PersistPropertyUnconditional(op.UUID, op.Name, op.DataType, op.NewValue)
			}
		case OpRemoveObject:
			err = p.RemoveObject(op.ParentUUID, op.UUID)
		default:
			err = fmt.Errorf("unknown operation %q", op.Type)
		}
		if err != nil {
			return fmt.Errorf("replay op %d (%s): %w", i, op.Type, err)
		}
	}
	return nil
}
