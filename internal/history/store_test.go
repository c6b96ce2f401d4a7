package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/arbor/pkg/persister"
	"github.com/mesh-intelligence/arbor/pkg/types"
)

func attachedStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Attach(t.TempDir()))
	t.Cleanup(func() { s.Detach() })
	return s
}

func sampleRecord(id string, at time.Time) persister.CommitRecord {
	return persister.CommitRecord{
		ID:          id,
		Name:        "session",
		CommittedAt: at,
		Creations: []persister.PersistedObjectEntry{
			{ParentUUID: "root", ChildUUID: "f1"},
		},
		Properties: []persister.PersistedPropertiesEntry{
			{UUID: "i1", Name: "name", DataType: types.DataTypeString, RollbackValue: "old"},
		},
		Removals: []persister.RemovedNodeRecord{
			{ParentUUID: "root", UUID: "i2", Kind: types.KindItem, Index: 0,
				Properties: map[string]any{"name": "gone"}},
		},
	}
}

func TestAttachCreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	require.NoError(t, s.Attach(dir))
	defer s.Detach()

	_, err := os.Stat(filepath.Join(dir, dbFileName))
	assert.NoError(t, err)
}

func TestAttachTwiceRejected(t *testing.T) {
	s := attachedStore(t)
	assert.ErrorIs(t, s.Attach(t.TempDir()), ErrAlreadyAttached)
}

func TestDetachIsIdempotent(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Attach(t.TempDir()))
	require.NoError(t, s.Detach())
	require.NoError(t, s.Detach())

	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrDetached)
	assert.ErrorIs(t, s.RecordCommit(persister.CommitRecord{}), ErrDetached)
}

func TestRecordAndGet(t *testing.T) {
	s := attachedStore(t)
	rec := sampleRecord("rec-1", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, s.RecordCommit(rec))

	got, err := s.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Name, got.Name)
	assert.True(t, rec.CommittedAt.Equal(got.CommittedAt))
	require.Len(t, got.Creations, 1)
	assert.Equal(t, "f1", got.Creations[0].ChildUUID)
	require.Len(t, got.Removals, 1)
	assert.Equal(t, "gone", got.Removals[0].Properties["name"])
}

func TestGetMissing(t *testing.T) {
	s := attachedStore(t)
	_, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndLatest(t *testing.T) {
	s := attachedStore(t)
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"rec-1", "rec-2", "rec-3"} {
		require.NoError(t, s.RecordCommit(sampleRecord(id, base.Add(time.Duration(i)*time.Minute))))
	}

	entries, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "rec-3", entries[0].ID)
	assert.Equal(t, "rec-1", entries[2].ID)
	assert.Equal(t, 1, entries[0].Creations)
	assert.Equal(t, 1, entries[0].Properties)
	assert.Equal(t, 1, entries[0].Removals)

	limited, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Equal(t, "rec-3", latest.ID)
}

func TestLatestEmpty(t *testing.T) {
	s := attachedStore(t)
	_, err := s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := attachedStore(t)
	require.NoError(t, s.RecordCommit(sampleRecord("rec-1", time.Now().UTC())))

	require.NoError(t, s.Delete("rec-1"))
	_, err := s.Get("rec-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete("rec-1"), ErrNotFound)
}

func TestReattachSeesExistingRecords(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	require.NoError(t, s.Attach(dir))
	require.NoError(t, s.RecordCommit(sampleRecord("rec-1", time.Now().UTC())))
	require.NoError(t, s.Detach())

	require.NoError(t, s.Attach(dir))
	defer s.Detach()
	got, err := s.Get("rec-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", got.ID)
}
