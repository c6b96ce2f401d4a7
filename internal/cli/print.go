package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/arbor/internal/accessor"
	"github.com/mesh-intelligence/arbor/internal/memtree"
	"github.com/mesh-intelligence/arbor/pkg/types"
)

// treeNode is the JSON shape of one node in printed output.
type treeNode struct {
	UUID       string         `json:"uuid"`
	Kind       types.NodeKind `json:"kind"`
	Properties map[string]any `json:"properties,omitempty"`
	Children   []treeNode     `json:"children,omitempty"`
}

// printTree renders the tree rooted at tree.Root() to w, either as indented
// text or as a JSON document.
func printTree(w io.Writer, tree *memtree.Tree, registry *accessor.Registry, jsonMode bool) error {
	root := snapshotNode(tree, registry, tree.Root())
	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(root)
	}
	return printText(w, root, 0)
}

// snapshotNode captures a node and its subtree in combined partition order.
func snapshotNode(tree *memtree.Tree, registry *accessor.Registry, node types.Node) treeNode {
	out := treeNode{
		UUID: node.UUID(),
		Kind: node.Kind(),
	}
	for _, name := range registry.PropertyNames(node.Kind()) {
		value, err := registry.ReadProperty(node, name)
		if err != nil {
			continue
		}
		if out.Properties == nil {
			out.Properties = make(map[string]any)
		}
		out.Properties[name] = value
	}
	for _, child := range tree.AllChildren(node) {
		out.Children = append(out.Children, snapshotNode(tree, registry, child))
	}
	return out
}

func printText(w io.Writer, node treeNode, depth int) error {
	indent := strings.Repeat("  ", depth)
	label := node.UUID
	if name, ok := node.Properties["name"].(string); ok && name != "" {
		label = fmt.Sprintf("%s (%s)", name, node.UUID)
	}
	if _, err := fmt.Fprintf(w, "%s%s %s\n", indent, node.Kind, label); err != nil {
		return err
	}
	for _, child := range node.Children {
		if err := printText(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
