package tree

import (
	"fmt"
	"slices"

	"github.com/aretw0/argview/pkg/domain"
)

// FindByID returns the first node with the given id in depth-first pre-order.
func FindByID(root *domain.Node, id domain.NodeID) (*domain.Node, bool) {
	path := findPath(root, id, nil)
	if path == nil {
		return nil, false
	}
	return path[len(path)-1], true
}

// Walk visits every node in depth-first pre-order, passing its depth (root is 0).
// Returning false from fn stops the walk.
func Walk(root *domain.Node, fn func(n *domain.Node, depth int) bool) {
	walk(root, 0, fn)
}

func walk(n *domain.Node, depth int, fn func(*domain.Node, int) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n, depth) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, depth+1, fn) {
			return false
		}
	}
	return true
}

// AddChild returns a new tree in which a copy of child is appended to the
// children of parentID.
func AddChild(root *domain.Node, parentID domain.NodeID, child *domain.Node) (*domain.Node, error) {
	if child == nil {
		return root, fmt.Errorf("%w: nil child", domain.ErrInvalidNode)
	}
	if err := Validate(child); err != nil {
		return root, err
	}

	path := findPath(root, parentID, nil)
	if path == nil {
		return root, fmt.Errorf("%w: %q", domain.ErrParentNotFound, parentID)
	}

	var collision error
	Walk(child, func(n *domain.Node, _ int) bool {
		if _, exists := FindByID(root, n.ID); exists {
			collision = fmt.Errorf("%w: %q", domain.ErrDuplicateID, n.ID)
			return false
		}
		return true
	})
	if collision != nil {
		return root, collision
	}

	parent := shallowCopy(path[len(path)-1])
	parent.Children = append(slices.Clip(parent.Children), Clone(child))
	return rewritePath(path, parent), nil
}

// RemoveChild returns a new tree without the node childID among the direct
// children of parentID.
//
// Both ids must exist somewhere in the tree. When childID is not a direct
// child of parentID the input root is returned unchanged with removed=false.
func RemoveChild(root *domain.Node, parentID, childID domain.NodeID) (*domain.Node, bool, error) {
	path := findPath(root, parentID, nil)
	if path == nil {
		return root, false, fmt.Errorf("%w: %q", domain.ErrParentNotFound, parentID)
	}
	target, ok := FindByID(root, childID)
	if !ok {
		return root, false, fmt.Errorf("%w: %q", domain.ErrChildNotFound, childID)
	}

	old := path[len(path)-1]
	idx := slices.Index(old.Children, target)
	if idx < 0 {
		return root, false, nil
	}

	parent := shallowCopy(old)
	children := make([]*domain.Node, 0, len(old.Children)-1)
	children = append(children, old.Children[:idx]...)
	parent.Children = append(children, old.Children[idx+1:]...)
	return rewritePath(path, parent), true, nil
}

// Replace discards the current tree and returns a private copy of newRoot.
// A nil newRoot yields the empty tree.
func Replace(_ *domain.Node, newRoot *domain.Node) (*domain.Node, error) {
	if newRoot == nil {
		return nil, nil
	}
	if err := Validate(newRoot); err != nil {
		return nil, err
	}
	return Clone(newRoot), nil
}

// Validate checks that every node has a non-empty, unique id and that no
// node is reachable twice.
func Validate(root *domain.Node) error {
	ids := make(map[domain.NodeID]struct{})
	seen := make(map[*domain.Node]struct{})
	var err error
	Walk(root, func(n *domain.Node, _ int) bool {
		if _, dup := seen[n]; dup {
			err = fmt.Errorf("%w: node %q is referenced twice", domain.ErrInvalidNode, n.ID)
			return false
		}
		seen[n] = struct{}{}
		if n.ID == "" {
			err = fmt.Errorf("%w: empty id", domain.ErrInvalidNode)
			return false
		}
		if _, dup := ids[n.ID]; dup {
			err = fmt.Errorf("%w: %q", domain.ErrDuplicateID, n.ID)
			return false
		}
		ids[n.ID] = struct{}{}
		for _, c := range n.Children {
			if c == nil {
				err = fmt.Errorf("%w: nil child under %q", domain.ErrInvalidNode, n.ID)
				return false
			}
		}
		return true
	})
	return err
}

// Clone returns a deep copy of the subtree. Attribute payloads are shared
// since they are never modified.
func Clone(n *domain.Node) *domain.Node {
	if n == nil {
		return nil
	}
	cp := shallowCopy(n)
	if n.Children != nil {
		cp.Children = make([]*domain.Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = Clone(c)
		}
	}
	return cp
}

// findPath returns the nodes from root to the node with the given id, or nil.
func findPath(n *domain.Node, id domain.NodeID, acc []*domain.Node) []*domain.Node {
	if n == nil {
		return nil
	}
	acc = append(acc, n)
	if n.ID == id {
		return acc
	}
	for _, c := range n.Children {
		if p := findPath(c, id, acc); p != nil {
			return p
		}
	}
	return nil
}

// rewritePath rebuilds the ancestors along path so that they lead to
// replacement instead of the last element of path. It returns the new root.
func rewritePath(path []*domain.Node, replacement *domain.Node) *domain.Node {
	current := replacement
	for i := len(path) - 2; i >= 0; i-- {
		old := path[i]
		cp := shallowCopy(old)
		cp.Children = slices.Clone(old.Children)
		for j, c := range old.Children {
			if c == path[i+1] {
				cp.Children[j] = current
				break
			}
		}
		current = cp
	}
	return current
}

func shallowCopy(n *domain.Node) *domain.Node {
	cp := *n
	if n.Tooltip != nil {
		tip := *n.Tooltip
		cp.Tooltip = &tip
	}
	return &cp
}
