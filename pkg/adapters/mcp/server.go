// Package mcp exposes a running engine to AI agents over the Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/argview"
	"github.com/aretw0/argview/internal/presentation/graph"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/tree"
	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	treeURI  = "argview://tree"
	graphURI = "argview://graph"
)

// GateResponse aligns with the HTTP API gate schema.
type GateResponse struct {
	Status    string `json:"status" jsonschema_description:"running or paused"`
	Connected bool   `json:"connected" jsonschema_description:"Whether the remote process is connected"`
}

// ContinueResponse reports the outcome of continue_run.
type ContinueResponse struct {
	Sent bool `json:"sent" jsonschema_description:"True when a continue event was sent to the paused remote"`
}

// EditResponse reports the outcome of a local edit.
type EditResponse struct {
	Changed bool   `json:"changed" jsonschema_description:"Whether the tree changed"`
	Version uint64 `json:"version" jsonschema_description:"Snapshot version after the edit"`
}

type nodeArgs struct {
	ID string `json:"id"`
}

type addChildArgs struct {
	Parent string `json:"parent"`
	Node   string `json:"node"`
}

type removeChildArgs struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// Engine is the agent-facing side of argview.Engine.
type Engine interface {
	Snapshot() *domain.Snapshot
	Gate() domain.Gate
	AddChild(ctx context.Context, parent domain.NodeID, child *domain.Node) error
	RemoveChild(ctx context.Context, parent, child domain.NodeID) (bool, error)
	Continue(ctx context.Context) (bool, error)
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("argview-mcp", argview.Version),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: get_tree
	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get the latest snapshot of the mirrored tree as JSON."),
	), s.handleGetTree)

	// TOOL: find_node
	s.mcpServer.AddTool(mcp.NewTool("find_node",
		mcp.WithDescription("Get the subtree rooted at a node."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node ID")),
	), mcp.NewTypedToolHandler(s.handleFindNode))

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the tree as a Mermaid flowchart."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap := s.engine.Snapshot()
		return mcp.NewToolResultText(graph.GenerateMermaid(snap.Root, graph.OverlayFor(nil, snap))), nil
	})

	// TOOL: get_gate
	s.mcpServer.AddTool(mcp.NewTool("get_gate",
		mcp.WithDescription("Tell whether the remote process is paused waiting for a continue."),
		mcp.WithOutputSchema[GateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetGate))

	// TOOL: continue_run
	s.mcpServer.AddTool(mcp.NewTool("continue_run",
		mcp.WithDescription("Release a paused remote process. Does nothing unless it is paused."),
		mcp.WithOutputSchema[ContinueResponse](),
	), mcp.NewStructuredToolHandler(s.handleContinue))

	// TOOL: add_child
	s.mcpServer.AddTool(mcp.NewTool("add_child",
		mcp.WithDescription("Append a node under a parent in the local view."),
		mcp.WithString("parent", mcp.Required(), mcp.Description("Parent node ID")),
		mcp.WithString("node", mcp.Required(), mcp.Description(`JSON object of the new node, e.g. {"id":"x"}`)),
		mcp.WithOutputSchema[EditResponse](),
	), mcp.NewStructuredToolHandler(s.handleAddChild))

	// TOOL: remove_child
	s.mcpServer.AddTool(mcp.NewTool("remove_child",
		mcp.WithDescription("Remove a direct child of a parent from the local view."),
		mcp.WithString("parent", mcp.Required(), mcp.Description("Parent node ID")),
		mcp.WithString("child", mcp.Required(), mcp.Description("Child node ID")),
		mcp.WithOutputSchema[EditResponse](),
	), mcp.NewStructuredToolHandler(s.handleRemoveChild))
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(s.engine.Snapshot())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleFindNode(ctx context.Context, request mcp.CallToolRequest, args nodeArgs) (*mcp.CallToolResult, error) {
	n, ok := tree.FindByID(s.engine.Snapshot().Root, domain.NodeID(args.ID))
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("node %q not found", args.ID)), nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetGate(ctx context.Context, request mcp.CallToolRequest, _ map[string]any) (GateResponse, error) {
	g := s.engine.Gate()
	return GateResponse{Status: string(g.Status), Connected: g.Connected}, nil
}

func (s *Server) handleContinue(ctx context.Context, request mcp.CallToolRequest, _ map[string]any) (ContinueResponse, error) {
	sent, err := s.engine.Continue(ctx)
	if err != nil {
		return ContinueResponse{}, fmt.Errorf("continue failed: %w", err)
	}
	return ContinueResponse{Sent: sent}, nil
}

func (s *Server) handleAddChild(ctx context.Context, request mcp.CallToolRequest, args addChildArgs) (EditResponse, error) {
	var child domain.Node
	if err := json.Unmarshal([]byte(args.Node), &child); err != nil {
		return EditResponse{}, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if err := s.engine.AddChild(ctx, domain.NodeID(args.Parent), &child); err != nil {
		return EditResponse{}, err
	}
	return EditResponse{Changed: true, Version: s.engine.Snapshot().Version}, nil
}

func (s *Server) handleRemoveChild(ctx context.Context, request mcp.CallToolRequest, args removeChildArgs) (EditResponse, error) {
	if args.Parent == "" || args.Child == "" {
		return EditResponse{}, errors.New("parent and child are required")
	}
	removed, err := s.engine.RemoveChild(ctx, domain.NodeID(args.Parent), domain.NodeID(args.Child))
	if err != nil {
		return EditResponse{}, err
	}
	return EditResponse{Changed: removed, Version: s.engine.Snapshot().Version}, nil
}

func (s *Server) registerResources() {
	// EXPOSE: argview://tree
	s.mcpServer.AddResource(mcp.NewResource(treeURI, "Mirrored Tree",
		mcp.WithMIMEType("application/json"),
	), s.readTree)

	// EXPOSE: argview://graph
	s.mcpServer.AddResource(mcp.NewResource(graphURI, "Mirrored Tree (Mermaid)",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		snap := s.engine.Snapshot()
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphURI,
				MIMEType: "text/plain",
				Text:     graph.GenerateMermaid(snap.Root, graph.OverlayFor(nil, snap)),
			},
		}, nil
	})
}

func (s *Server) readTree(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.engine.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      treeURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
