package types

import "errors"

// Coordinator protocol and referential errors. Every error raised while a
// transaction is open triggers an automatic rollback before it propagates,
// so callers never observe a half-committed tree.
var (
	// ErrNotInTransaction is returned by buffering calls and Commit when no
	// transaction is open.
	ErrNotInTransaction = errors.New("not in a transaction")

	// ErrAlreadyExists is returned by PersistObject when the target UUID
	// already resolves against the buffer+tree union.
	ErrAlreadyExists = errors.New("object already exists")

	// ErrUnknownObject is returned when a referenced UUID resolves to
	// neither a live node nor a pending creation.
	ErrUnknownObject = errors.New("unknown object")

	// ErrPropertyConflict is returned by a conditional property write whose
	// expected old value does not match the buffered or live value.
	ErrPropertyConflict = errors.New("property value conflict")

	// ErrThreadAffinity is returned when a mutating call arrives from a
	// goroutine other than the one the open transaction is bound to.
	ErrThreadAffinity = errors.New("transaction bound to another goroutine")

	// ErrCommitFailed wraps any lower-level failure surfaced during the
	// commit pipeline.
	ErrCommitFailed = errors.New("commit failed")
)
