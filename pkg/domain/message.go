package domain

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// Method names the kind of an inbound message.
type Method string

const (
	// MethodAdd appends a child node under a parent.
	MethodAdd Method = "add"
	// MethodDelete removes a direct child from a parent.
	MethodDelete Method = "delete"
	// MethodCreate replaces the whole tree.
	MethodCreate Method = "create"
	// MethodWait pauses the remote process until the operator continues.
	MethodWait Method = "wait"
)

// Message is a decoded edit or control message from the remote process.
// Unknown methods decode successfully and are ignored by the engine.
type Message struct {
	Method Method

	// Parent is set for add and delete.
	Parent NodeID
	// Child is the node to append (add).
	Child *Node
	// ChildID is the id of the node to remove (delete).
	ChildID NodeID
	// Root is the replacement tree (create). Nil means an empty tree.
	Root *Node
}

type wireMessage struct {
	Method Method          `json:"method"`
	Parent json.RawMessage `json:"parent"`
	Child  json.RawMessage `json:"child"`
	Node   json.RawMessage `json:"node"`
}

// DecodeMessage parses an inbound payload. The payload may be the message
// object itself or a JSON string that encodes it, as socket-style transports
// deliver it.
// A create whose node is an array is normalized to its first element.
func DecodeMessage(data []byte) (*Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedMessage)
	}

	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msg := &Message{Method: wire.Method}
	switch wire.Method {
	case MethodAdd:
		parent, err := decodeID("parent", wire.Parent)
		if err != nil {
			return nil, err
		}
		child, err := decodeNode("child", wire.Child)
		if err != nil {
			return nil, err
		}
		msg.Parent, msg.Child = parent, child
	case MethodDelete:
		parent, err := decodeID("parent", wire.Parent)
		if err != nil {
			return nil, err
		}
		child, err := decodeID("child", wire.Child)
		if err != nil {
			return nil, err
		}
		msg.Parent, msg.ChildID = parent, child
	case MethodCreate:
		root, err := decodeRoot(wire.Node)
		if err != nil {
			return nil, err
		}
		msg.Root = root
	}
	return msg, nil
}

func decodeID(field string, raw json.RawMessage) (NodeID, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing %q", ErrMalformedMessage, field)
	}
	var id NodeID
	if err := id.UnmarshalJSON(raw); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedMessage, field, err)
	}
	if id == "" {
		return "", fmt.Errorf("%w: empty %q", ErrMalformedMessage, field)
	}
	return id, nil
}

func decodeNode(field string, raw json.RawMessage) (*Node, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("%w: %q must be an object", ErrMalformedMessage, field)
	}
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, field, err)
	}
	return &n, nil
}

// decodeRoot accepts either a single node or an array whose first element is the root.
func decodeRoot(raw json.RawMessage) (*Node, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: missing \"node\"", ErrMalformedMessage)
	}
	if raw[0] == '[' {
		var roots []json.RawMessage
		if err := json.Unmarshal(raw, &roots); err != nil {
			return nil, fmt.Errorf("%w: node: %v", ErrMalformedMessage, err)
		}
		if len(roots) == 0 {
			return nil, nil
		}
		return decodeNode("node[0]", roots[0])
	}
	return decodeNode("node", raw)
}
