package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/tree"
)

// Outline draws the tree as indented text with box-drawing guides.
// Ids in mark are suffixed with " *".
func Outline(root *domain.Node, mark map[domain.NodeID]bool) string {
	if root == nil {
		return "(empty tree)\n"
	}
	var sb strings.Builder
	writeNode(&sb, root, "", "", mark)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *domain.Node, prefix, branch string, mark map[domain.NodeID]bool) {
	sb.WriteString(prefix)
	sb.WriteString(branch)
	sb.WriteString(SanitizeLabel(string(n.ID)))
	if n.Tooltip != nil {
		sb.WriteString(" ")
		sb.WriteString(tooltipText(n.Tooltip))
	}
	if mark[n.ID] {
		sb.WriteString(" *")
	}
	sb.WriteString("\n")

	childPrefix := prefix
	switch branch {
	case "├── ":
		childPrefix += "│   "
	case "└── ":
		childPrefix += "    "
	}
	for i, c := range n.Children {
		if i == len(n.Children)-1 {
			writeNode(sb, c, childPrefix, "└── ", mark)
		} else {
			writeNode(sb, c, childPrefix, "├── ", mark)
		}
	}
}

func tooltipText(t *domain.Tooltip) string {
	action, state := SanitizeLabel(t.Action), SanitizeLabel(t.State)
	switch {
	case action != "" && state != "":
		return fmt.Sprintf("[%s | %s]", action, state)
	case action != "":
		return "[" + action + "]"
	case state != "":
		return "[" + state + "]"
	}
	return ""
}

// Markdown describes a snapshot as a Markdown document for glamour.
func Markdown(snap *domain.Snapshot) string {
	stats := tree.Measure(snap.Root)
	gate := string(snap.Gate.Status)
	if !snap.Gate.Connected {
		gate += " (disconnected)"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run `%s`\n\n", snap.RunID)
	sb.WriteString("| version | nodes | leaves | depth | gate |\n")
	sb.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %s |\n\n", snap.Version, stats.Nodes, stats.Leaves, stats.Depth, gate)
	sb.WriteString("```\n")
	sb.WriteString(Outline(snap.Root, nil))
	sb.WriteString("```\n")
	return sb.String()
}
