package domain

import (
	"bytes"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
)

// NodeID identifies a node in the tree. Ids are assigned by the remote process;
// the engine never generates them.
type NodeID string

// UnmarshalJSON accepts both string and numeric ids. Numeric ids keep their
// literal text, so 7 and "7" address the same node.
func (id *NodeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = NodeID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("node id must be a string or a number, got %s", data)
	}
	*id = NodeID(data)
	return nil
}

// Tooltip holds descriptive strings the remote attaches to a node.
// It is informational only and never drives structural decisions.
type Tooltip struct {
	Action string `json:"action,omitempty"`
	State  string `json:"state,omitempty"`
}

// Node is one element of the mirrored tree.
//
// Children is nil for a node that was received without a children key and an
// empty slice for one received with "children": []. Both are leaves.
// Nodes reachable from a published Snapshot are never mutated.
type Node struct {
	ID       NodeID
	Children []*Node
	Tooltip  *Tooltip

	// Attributes holds every other field of the remote payload, passed through verbatim.
	Attributes map[string]json.RawMessage
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Attribute decodes an opaque payload field into dest.
func (n *Node) Attribute(key string, dest any) (bool, error) {
	raw, ok := n.Attributes[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

const (
	fieldID       = "id"
	fieldChildren = "children"
	fieldTooltip  = "tooltip"
)

// UnmarshalJSON splits the known fields from the opaque payload.
func (n *Node) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("node must be a JSON object: %w", err)
	}

	*n = Node{}
	if raw, ok := fields[fieldID]; ok {
		if err := n.ID.UnmarshalJSON(raw); err != nil {
			return err
		}
		delete(fields, fieldID)
	}
	if raw, ok := fields[fieldChildren]; ok {
		if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			children := []*Node{}
			if err := json.Unmarshal(raw, &children); err != nil {
				return fmt.Errorf("node %q: children: %w", n.ID, err)
			}
			n.Children = children
		}
		delete(fields, fieldChildren)
	}
	if raw, ok := fields[fieldTooltip]; ok {
		if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			var tip Tooltip
			if err := json.Unmarshal(raw, &tip); err != nil {
				return fmt.Errorf("node %q: tooltip: %w", n.ID, err)
			}
			n.Tooltip = &tip
		}
		delete(fields, fieldTooltip)
	}
	if len(fields) > 0 {
		n.Attributes = fields
	}
	return nil
}

// MarshalJSON re-flattens the opaque payload next to the known fields.
func (n Node) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(n.Attributes)+3)
	for k, v := range n.Attributes {
		fields[k] = v
	}
	fields[fieldID] = string(n.ID)
	if n.Tooltip != nil {
		fields[fieldTooltip] = n.Tooltip
	}
	if n.Children != nil {
		fields[fieldChildren] = n.Children
	}
	return json.Marshal(fields)
}
