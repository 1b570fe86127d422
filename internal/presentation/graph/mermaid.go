package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/tree"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// Paused marks the whole graph as waiting for a continue.
	Paused bool
	// Highlight lists nodes to emphasize, typically the ids added by the last edit.
	Highlight []domain.NodeID
	// Selected is the node the operator is looking at.
	Selected domain.NodeID
}

// OverlayFor builds the overlay of snap, highlighting what changed since prev.
func OverlayFor(prev, snap *domain.Snapshot) *GraphOverlay {
	o := &GraphOverlay{Paused: snap.Gate.Status == domain.GatePaused}
	if prev != nil {
		if d := domain.Diff(prev, snap); d != nil {
			o.Highlight = d.Added
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the tree rooted at root.
// It applies semantic styling:
// - Root: ((Circle))
// - Inner node: [[Subroutine]]
// - Leaf: [Rectangle]
// Tooltip actions are appended to the label. Overlay styles are applied if provided.
func GenerateMermaid(root *domain.Node, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	if root == nil {
		sb.WriteString("    empty[\"(empty tree)\"]\n")
		return sb.String()
	}

	ids := newIDMap()
	tree.Walk(root, func(n *domain.Node, depth int) bool {
		safeID := ids.get(n.ID)

		opener, closer := "[", "]"
		switch {
		case depth == 0:
			opener, closer = "((", "))"
		case !n.IsLeaf():
			opener, closer = "[[", "]]"
		}

		label := escapeLabel(string(n.ID))
		if n.Tooltip != nil && n.Tooltip.Action != "" {
			label = fmt.Sprintf("%s <br/> %s", label, escapeLabel(n.Tooltip.Action))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		for _, c := range n.Children {
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, ids.get(c.ID))
		}
		return true
	})

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef changed fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef selected fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef paused fill:#fde2e4,stroke:#c62828,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Highlight {
			safeID, ok := ids.lookup(id)
			if ok && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s changed;\n", safeID)
			}
		}
		if safeID, ok := ids.lookup(overlay.Selected); ok {
			fmt.Fprintf(&sb, "    class %s selected;\n", safeID)
		}
		if overlay.Paused {
			fmt.Fprintf(&sb, "    class %s paused;\n", ids.get(root.ID))
		}
	}

	return sb.String()
}

// idMap assigns each node id a unique Mermaid-safe identifier.
type idMap struct {
	byID  map[domain.NodeID]string
	taken map[string]bool
}

func newIDMap() *idMap {
	return &idMap{byID: map[domain.NodeID]string{}, taken: map[string]bool{}}
}

func (m *idMap) lookup(id domain.NodeID) (string, bool) {
	s, ok := m.byID[id]
	return s, ok
}

func (m *idMap) get(id domain.NodeID) string {
	if s, ok := m.byID[id]; ok {
		return s
	}
	base := sanitizeMermaidID(string(id))
	s := base
	for i := 2; m.taken[s]; i++ {
		s = fmt.Sprintf("%s_%d", base, i)
	}
	m.byID[id] = s
	m.taken[s] = true
	return s
}

// sanitizeMermaidID keeps letters, digits and underscores. The n_ prefix
// avoids clashes with Mermaid keywords such as "end".
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	sb.WriteString("n_")
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
