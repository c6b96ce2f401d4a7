// Package journal serializes the persistence operation stream as JSONL,
// one operation per line, and replays saved streams through a persister.
// The coordinated tree itself is never serialized; only the operations that
// built it are.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/arbor/pkg/types"
)

// Operation names used in the "op" field.
const (
	OpBegin           = "begin"
	OpCommit          = "commit"
	OpRollback        = "rollback"
	OpPersistObject   = "persistObject"
	OpPersistProperty = "persistProperty"
	OpRemoveObject    = "removeObject"
)

// Op is one line of a serialized operation stream. Fields beyond Type are
// populated per operation kind.
type Op struct {
	Type       string         `json:"op"`
	ParentUUID string         `json:"parent_uuid,omitempty"`
	Kind       types.NodeKind `json:"kind,omitempty"`
	UUID       string         `json:"uuid,omitempty"`
	Index      int            `json:"index,omitempty"`
	Name       string         `json:"name,omitempty"`
	DataType   types.DataType `json:"data_type,omitempty"`
	OldValue   any            `json:"old_value,omitempty"`
	NewValue   any            `json:"new_value,omitempty"`

	// Conditional marks a persistProperty op whose OldValue must be
	// verified on replay when the replaying persister is not privileged.
	Conditional bool `json:"conditional,omitempty"`
}

// ReadStream decodes a JSONL operation stream. Empty and malformed lines
// are skipped.
func ReadStream(r io.Reader) ([]Op, error) {
	var ops []Op
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var op Op
		if err := json.Unmarshal(line, &op); err != nil {
			continue
		}
		if op.Type == "" {
			continue
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning stream: %w", err)
	}
	return ops, nil
}

// ReadStreamFile decodes the JSONL operation stream at path.
func ReadStreamFile(path string) ([]Op, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadStream(f)
}

// WriteStream encodes ops as JSONL to w.
func WriteStream(w io.Writer, ops []Op) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, op := range ops {
		if err := enc.Encode(op); err != nil {
			return fmt.Errorf("encoding op %q: %w", op.Type, err)
		}
	}
	return bw.Flush()
}

// WriteStreamFile atomically writes ops to a JSONL file using the
// temp-file, fsync, rename pattern.
func WriteStreamFile(path string, ops []Op) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".stream-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := WriteStream(tmp, ops); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// RootUUID returns the UUID of the first parentless persistObject in the
// stream, which identifies the workspace the stream was recorded against.
func RootUUID(ops []Op) (string, bool) {
	for _, op := range ops {
		if op.Type == OpPersistObject && op.ParentUUID == "" {
			return op.UUID, true
		}
	}
	return "", false
}
