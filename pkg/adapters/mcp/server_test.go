package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/argview"
	"github.com/aretw0/argview/pkg/adapters/memory"
	"github.com/aretw0/argview/pkg/domain"
	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*Server, *argview.Engine, *memory.End) {
	t.Helper()
	client, remote := memory.NewPipe(16)
	eng, err := argview.New(argview.WithDialer(memory.NewDialer(client)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.NoError(t, eng.Connect(context.Background(), "mem://remote"))
	return NewServer(eng), eng, remote
}

func send(t *testing.T, eng *argview.Engine, remote *memory.End, payload string) {
	t.Helper()
	v := eng.Snapshot().Version
	require.NoError(t, remote.Emit(context.Background(), domain.ChannelEvent{Name: domain.EventMessage, Data: json.RawMessage(payload)}))
	require.Eventually(t, func() bool { return eng.Snapshot().Version > v }, 2*time.Second, 5*time.Millisecond)
}

// call runs a registered tool the way the protocol server does.
func call(t *testing.T, s *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.MCPServer().GetTool(name)
	require.NotNil(t, tool, "tool %s not registered", name)
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := tool.Handler(context.Background(), req)
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestServer_Tools(t *testing.T) {
	s, _, _ := newServer(t)
	tools := s.MCPServer().ListTools()
	for _, name := range []string{"get_tree", "find_node", "get_graph", "get_gate", "continue_run", "add_child", "remove_child"} {
		assert.Contains(t, tools, name)
	}
}

func TestServer_ReadTools(t *testing.T) {
	s, eng, remote := newServer(t)
	send(t, eng, remote, `{"method":"create","node":{"id":"root","children":[{"id":"a"}]}}`)

	assert.Contains(t, text(t, call(t, s, "get_tree", nil)), `"node_count":2`)
	assert.JSONEq(t, `{"id":"a"}`, text(t, call(t, s, "find_node", map[string]any{"id": "a"})))

	res := call(t, s, "find_node", map[string]any{"id": "nope"})
	assert.True(t, res.IsError)

	assert.Contains(t, text(t, call(t, s, "get_graph", nil)), "n_root --> n_a")
}

func TestServer_GateAndContinue(t *testing.T) {
	s, eng, remote := newServer(t)

	res := call(t, s, "continue_run", nil)
	assert.Equal(t, ContinueResponse{Sent: false}, res.StructuredContent)

	send(t, eng, remote, `{"method":"wait"}`)
	res = call(t, s, "get_gate", nil)
	assert.Equal(t, GateResponse{Status: "paused", Connected: true}, res.StructuredContent)

	res = call(t, s, "continue_run", nil)
	assert.Equal(t, ContinueResponse{Sent: true}, res.StructuredContent)
}

func TestServer_Edits(t *testing.T) {
	s, eng, remote := newServer(t)
	send(t, eng, remote, `{"method":"create","node":{"id":"root"}}`)

	res := call(t, s, "add_child", map[string]any{"parent": "root", "node": `{"id":"x","tooltip":{"action":"hint"}}`})
	require.False(t, res.IsError, text(t, res))
	assert.Equal(t, 2, eng.Snapshot().NodeCount)

	res = call(t, s, "add_child", map[string]any{"parent": "root", "node": `{"id":"x"}`})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "duplicate")

	res = call(t, s, "add_child", map[string]any{"parent": "root", "node": `not json`})
	assert.True(t, res.IsError)

	res = call(t, s, "remove_child", map[string]any{"parent": "root", "child": "x"})
	require.False(t, res.IsError, text(t, res))
	edit, ok := res.StructuredContent.(EditResponse)
	require.True(t, ok)
	assert.True(t, edit.Changed)
	assert.Equal(t, 1, eng.Snapshot().NodeCount)

	res = call(t, s, "remove_child", map[string]any{"parent": "root"})
	assert.True(t, res.IsError)
}

func TestServer_Resources(t *testing.T) {
	s, eng, remote := newServer(t)
	send(t, eng, remote, `{"method":"create","node":{"id":"root"}}`)

	contents, err := s.readTree(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, treeURI, tc.URI)
	assert.Contains(t, tc.Text, `"root"`)
}
