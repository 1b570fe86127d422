package domain

// SnapshotDiff represents the changes between two snapshots.
// It is designed to be serialized to JSON for partial updates on the client.
type SnapshotDiff struct {
	// RunID and Version are always present to identify the target.
	RunID   string `json:"run_id"`
	Version uint64 `json:"version"`

	// NodeCount is set when the count changed.
	NodeCount *int `json:"node_count,omitempty"`

	// Gate is set when the gate changed.
	Gate *Gate `json:"gate,omitempty"`

	// Added and Removed list ids that appeared or disappeared, in tree order.
	Added   []NodeID `json:"added,omitempty"`
	Removed []NodeID `json:"removed,omitempty"`

	// Replaced is true when the root id changed (typically a create).
	Replaced bool `json:"replaced,omitempty"`
}

// Diff calculates the difference between oldSnap and newSnap.
// If oldSnap is nil, it returns a diff representing the entire newSnap (initial load).
// It returns nil when nothing observable changed.
func Diff(oldSnap, newSnap *Snapshot) *SnapshotDiff {
	if newSnap == nil {
		return nil
	}

	diff := &SnapshotDiff{
		RunID:   newSnap.RunID,
		Version: newSnap.Version,
	}

	if oldSnap == nil || oldSnap.NodeCount != newSnap.NodeCount {
		diff.NodeCount = &newSnap.NodeCount
	}
	if oldSnap == nil || oldSnap.Gate != newSnap.Gate {
		diff.Gate = &newSnap.Gate
	}

	var oldRoot *Node
	if oldSnap != nil {
		oldRoot = oldSnap.Root
	}
	diff.Replaced = rootID(oldRoot) != rootID(newSnap.Root)

	// Shared subtrees are identical, so identity short-circuits most of the walk.
	if oldRoot != newSnap.Root {
		oldIDs := collectIDs(oldRoot, nil)
		newIDs := collectIDs(newSnap.Root, nil)
		oldSet := toSet(oldIDs)
		newSet := toSet(newIDs)
		for _, id := range newIDs {
			if _, ok := oldSet[id]; !ok {
				diff.Added = append(diff.Added, id)
			}
		}
		for _, id := range oldIDs {
			if _, ok := newSet[id]; !ok {
				diff.Removed = append(diff.Removed, id)
			}
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.NodeCount == nil &&
		d.Gate == nil &&
		len(d.Added) == 0 &&
		len(d.Removed) == 0 &&
		!d.Replaced
}

func rootID(n *Node) NodeID {
	if n == nil {
		return ""
	}
	return n.ID
}

func collectIDs(n *Node, acc []NodeID) []NodeID {
	if n == nil {
		return acc
	}
	acc = append(acc, n.ID)
	for _, c := range n.Children {
		acc = collectIDs(c, acc)
	}
	return acc
}

func toSet(ids []NodeID) map[NodeID]struct{} {
	set := make(map[NodeID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
