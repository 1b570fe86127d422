package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/argview/internal/config"
	"github.com/aretw0/argview/pkg/adapters/mcp"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// MCPOptions configures RunMCP.
type MCPOptions struct {
	Config    config.Config
	Transport string
	// Addr and BaseURL configure the SSE transport.
	Addr    string
	BaseURL string
	Logger  *slog.Logger
}

// RunMCP connects to the remote process and exposes the mirrored tree to MCP
// clients. A failed dial is logged and the server starts anyway with an
// empty tree, so agents can still inspect the gate.
func RunMCP(ctx context.Context, opts MCPOptions) error {
	logger := opts.Logger
	engine, res, err := NewEngine(opts.Config, logger)
	if err != nil {
		return err
	}
	defer func() { _ = res.Close() }()
	defer func() { _ = engine.Close() }()

	sc := NewSignalContext(ctx)
	defer sc.Cancel()

	if err := engine.Connect(sc, opts.Config.URL); err != nil {
		logger.Warn("serving without a remote connection", "url", opts.Config.URL, "err", err)
	}

	srv := mcp.NewServer(engine)
	switch opts.Transport {
	case TransportStdio, "":
		logger.Info("starting MCP server", "transport", TransportStdio, "run_id", engine.RunID())
		return handleExecutionError(srv.ServeStdio())
	case TransportSSE:
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost" + opts.Addr
		}
		logger.Info("starting MCP server", "transport", TransportSSE, "addr", opts.Addr, "run_id", engine.RunID())
		return handleExecutionError(srv.ServeSSE(sc, opts.Addr, baseURL))
	default:
		return fmt.Errorf("unknown transport %q", opts.Transport)
	}
}
