package middleware

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
	json "github.com/goccy/go-json"
)

// Mask replaces every redacted value.
const Mask = "***"

var maskJSON = json.RawMessage(`"` + Mask + `"`)

type redactionMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks node attributes whose
// key matches one of the patterns, at any depth of the attribute value.
// The published snapshot is never modified; only the retained copy is masked.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, runID string, snap *domain.Snapshot) error {
	masked := *snap
	masked.Root = m.maskNode(snap.Root)
	return m.next.Save(ctx, runID, &masked)
}

func (m *redactionMiddleware) Load(ctx context.Context, runID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, runID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// maskNode copies n and its subtree with masked attributes.
func (m *redactionMiddleware) maskNode(n *domain.Node) *domain.Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Attributes != nil {
		cp.Attributes = make(map[string]json.RawMessage, len(n.Attributes))
		for k, v := range n.Attributes {
			cp.Attributes[k] = m.maskValue(k, v)
		}
	}
	if n.Children != nil {
		cp.Children = make([]*domain.Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = m.maskNode(c)
		}
	}
	return &cp
}

func (m *redactionMiddleware) maskValue(key string, raw json.RawMessage) json.RawMessage {
	if m.matches(key) {
		return maskJSON
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}

	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return raw
	}
	if !m.maskMap(obj) {
		return raw
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return maskJSON
	}
	return out
}

// maskMap masks obj in place and reports whether anything changed.
func (m *redactionMiddleware) maskMap(obj map[string]any) bool {
	changed := false
	for k, v := range obj {
		if m.matches(k) {
			obj[k] = Mask
			changed = true
			continue
		}
		if sub, ok := v.(map[string]any); ok && m.maskMap(sub) {
			changed = true
		}
	}
	return changed
}

func (m *redactionMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
