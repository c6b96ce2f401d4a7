package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/arbor/internal/journal"
	"github.com/mesh-intelligence/arbor/pkg/types"
)

// runCLI executes the root command with the given arguments and returns the
// captured output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flags = rootFlags{}
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// writeSampleStream writes a stream that builds one workspace with a folder
// holding one named item, and returns its path.
func writeSampleStream(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.jsonl")
	ops := []journal.Op{
		{Type: journal.OpBegin},
		{Type: journal.OpPersistObject, ParentUUID: "", Kind: types.KindWorkspace, UUID: "w1"},
		{Type: journal.OpPersistObject, ParentUUID: "w1", Kind: types.KindFolder, UUID: "f1"},
		{Type: journal.OpPersistObject, ParentUUID: "f1", Kind: types.KindItem, UUID: "i1"},
		{Type: journal.OpPersistProperty, UUID: "i1", Name: "name",
			DataType: types.DataTypeString, NewValue: "task"},
		{Type: journal.OpCommit},
	}
	require.NoError(t, journal.WriteStreamFile(path, ops))
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "arbor")
}

func TestInitCommand(t *testing.T) {
	configDir := t.TempDir()
	dataDir := t.TempDir()

	out, err := runCLI(t, "init", "--config-dir", configDir, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "config:")

	_, statErr := os.Stat(filepath.Join(configDir, "config.yaml"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(dataDir, "history.db"))
	assert.NoError(t, statErr)
}

func TestReplayCommandJSONOutput(t *testing.T) {
	stream := writeSampleStream(t)

	out, err := runCLI(t, "replay", stream, "--json", "--config-dir", t.TempDir())
	require.NoError(t, err)

	var root treeNode
	require.NoError(t, json.Unmarshal([]byte(out), &root))
	assert.Equal(t, "w1", root.UUID)
	assert.Equal(t, types.KindWorkspace, root.Kind)
	require.Len(t, root.Children, 1)
	require.Len(t, root.Children[0].Children, 1)
	item := root.Children[0].Children[0]
	assert.Equal(t, "i1", item.UUID)
	assert.Equal(t, "task", item.Properties["name"])
}

func TestReplayCommandTextOutput(t *testing.T) {
	stream := writeSampleStream(t)

	out, err := runCLI(t, "replay", stream, "--config-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "workspace w1")
	assert.Contains(t, out, "task (i1)")
}

func TestReplayMissingStream(t *testing.T) {
	_, err := runCLI(t, "replay", filepath.Join(t.TempDir(), "absent.jsonl"),
		"--config-dir", t.TempDir())
	assert.Error(t, err)
}

func TestRecordHistoryAndUndo(t *testing.T) {
	stream := writeSampleStream(t)
	configDir := t.TempDir()
	dataDir := t.TempDir()

	_, err := runCLI(t, "replay", stream, "--record",
		"--config-dir", configDir, "--data-dir", dataDir)
	require.NoError(t, err)

	out, err := runCLI(t, "history", "--config-dir", configDir, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "replay")

	out, err = runCLI(t, "undo", stream, "--config-dir", configDir, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "undid")
	// The undone tree is back to the bare workspace.
	assert.NotContains(t, out, "i1")

	out, err = runCLI(t, "history", "--config-dir", configDir, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "no recorded transactions")
}

func TestUndoWithoutRecords(t *testing.T) {
	stream := writeSampleStream(t)
	_, err := runCLI(t, "undo", stream,
		"--config-dir", t.TempDir(), "--data-dir", t.TempDir())
	assert.Error(t, err)
}
