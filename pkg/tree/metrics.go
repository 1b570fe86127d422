package tree

import "github.com/aretw0/argview/pkg/domain"

// Stats summarizes a tree for renderers and metrics.
type Stats struct {
	Nodes  int `json:"nodes"`
	Leaves int `json:"leaves"`
	Depth  int `json:"depth"`
}

// CountNodes returns the number of nodes reachable from root. An empty tree counts 0.
func CountNodes(root *domain.Node) int {
	return Measure(root).Nodes
}

// CountLeaves returns the number of nodes without children.
func CountLeaves(root *domain.Node) int {
	return Measure(root).Leaves
}

// Depth returns the number of levels in the tree; a single root has depth 1.
func Depth(root *domain.Node) int {
	return Measure(root).Depth
}

// Measure computes all stats in one pass.
func Measure(root *domain.Node) Stats {
	var s Stats
	Walk(root, func(n *domain.Node, depth int) bool {
		s.Nodes++
		if n.IsLeaf() {
			s.Leaves++
		}
		if depth+1 > s.Depth {
			s.Depth = depth + 1
		}
		return true
	})
	return s
}
