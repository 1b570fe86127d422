package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/argview/internal/presentation/graph"
	"github.com/aretw0/argview/pkg/domain"
)

func leaf(id string) *domain.Node {
	return &domain.Node{ID: domain.NodeID(id)}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		root     *domain.Node
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name:     "Empty Tree",
			root:     nil,
			contains: []string{"graph TD", `empty["(empty tree)"]`},
		},
		{
			name: "Node Shapes",
			root: &domain.Node{ID: "root", Children: []*domain.Node{
				{ID: "inner", Children: []*domain.Node{leaf("x")}},
				leaf("y"),
			}},
			contains: []string{
				`n_root(("root"))`,
				`n_inner[["inner"]]`,
				`n_x["x"]`,
				"n_root --> n_inner",
				"n_root --> n_y",
				"n_inner --> n_x",
			},
			excludes: []string{"classDef"},
		},
		{
			name: "ID Sanitization",
			root: &domain.Node{ID: "path/to/file.md", Children: []*domain.Node{leaf("a-b"), leaf("a_b")}},
			contains: []string{
				`n_path_to_file_md(("path/to/file.md"))`,
				`n_a_b["a-b"]`,
				`n_a_b_2["a_b"]`,
			},
		},
		{
			name: "Tooltip Action And Escaping",
			root: &domain.Node{ID: "r", Tooltip: &domain.Tooltip{Action: `say "hi"`}},
			contains: []string{
				`n_r(("r <br/> say 'hi'"))`,
			},
		},
		{
			name: "Overlay",
			root: &domain.Node{ID: "r", Children: []*domain.Node{leaf("a"), leaf("b")}},
			overlay: &graph.GraphOverlay{
				Paused:    true,
				Highlight: []domain.NodeID{"a", "a", "ghost"},
				Selected:  "b",
			},
			contains: []string{
				"class n_a changed;",
				"class n_b selected;",
				"class n_r paused;",
			},
			excludes: []string{"ghost"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.root, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(got, unwanted) {
					t.Errorf("GenerateMermaid() = \n%v\nUnexpected substring: %v", got, unwanted)
				}
			}
			if strings.Count(got, "class n_a changed;") > 1 {
				t.Errorf("highlight must be deduplicated:\n%v", got)
			}
		})
	}
}

func TestOverlayFor(t *testing.T) {
	prev := &domain.Snapshot{Version: 1, Root: leaf("r"), NodeCount: 1}
	next := &domain.Snapshot{
		Version:   2,
		Root:      &domain.Node{ID: "r", Children: []*domain.Node{leaf("a")}},
		NodeCount: 2,
		Gate:      domain.Gate{Status: domain.GatePaused, Connected: true},
	}

	o := graph.OverlayFor(prev, next)
	if !o.Paused {
		t.Error("expected paused overlay")
	}
	if len(o.Highlight) != 1 || o.Highlight[0] != "a" {
		t.Errorf("Highlight = %v, want [a]", o.Highlight)
	}

	if o := graph.OverlayFor(nil, next); len(o.Highlight) != 0 {
		t.Errorf("no previous snapshot must not highlight, got %v", o.Highlight)
	}
}
