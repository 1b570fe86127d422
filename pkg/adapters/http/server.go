// Package http exposes a running engine to renderers over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/argview"
	"github.com/aretw0/argview/internal/presentation/graph"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/tree"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
)

// Engine is the renderer-facing side of argview.Engine.
type Engine interface {
	RunID() string
	Snapshot() *domain.Snapshot
	Gate() domain.Gate
	Subscribe() (<-chan *domain.Snapshot, func())
	AddChild(ctx context.Context, parent domain.NodeID, child *domain.Node) error
	RemoveChild(ctx context.Context, parent, child domain.NodeID) (bool, error)
	Continue(ctx context.Context) (bool, error)
	Tooltip(id domain.NodeID) (domain.Tooltip, bool)
}

// Server implements ServerInterface on top of an Engine.
type Server struct {
	Engine Engine
	Logger *slog.Logger
}

// Ensure Server implements ServerInterface
var _ ServerInterface = (*Server)(nil)

// Option configures the handler.
type Option func(*handlerConfig)

type handlerConfig struct {
	logger  *slog.Logger
	metrics http.Handler
}

// WithLogger sets the logger for request failures. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *handlerConfig) {
		c.logger = logger
	}
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(c *handlerConfig) {
		c.metrics = h
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	cfg := handlerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	server := &Server{Engine: engine, Logger: cfg.logger}
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if cfg.metrics != nil {
		r.Handle("/metrics", cfg.metrics)
	}

	handler := HandlerFromMux(server, r)
	return enableCORS(handler)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>argview API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

type errorBody struct {
	Error string `json:"error"`
}

type editResult struct {
	Changed bool   `json:"changed"`
	Version uint64 `json:"version"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "err", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrParentNotFound), errors.Is(err, domain.ErrChildNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidNode), errors.Is(err, domain.ErrMalformedMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrChannel):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error(op+" failed", "err", err)
	} else {
		s.Logger.Warn(op+" rejected", "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "argview-http",
		"version":     argview.Version,
		"api_version": apiVersion,
		"run_id":      s.Engine.RunID(),
	})
}

// GetTree handles the GET /tree request.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Snapshot())
}

// GetNode handles the GET /nodes/{id} request.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request, id string) {
	n, ok := tree.FindByID(s.Engine.Snapshot().Root, domain.NodeID(id))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("node %q not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// GetTooltip handles the GET /nodes/{id}/tooltip request.
func (s *Server) GetTooltip(w http.ResponseWriter, r *http.Request, id string) {
	tip, ok := s.Engine.Tooltip(domain.NodeID(id))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("node %q has no tooltip", id)})
		return
	}
	writeJSON(w, http.StatusOK, tip)
}

// AddChild handles the POST /nodes/{id}/children request.
func (s *Server) AddChild(w http.ResponseWriter, r *http.Request, parent string) {
	var child domain.Node
	if err := json.NewDecoder(r.Body).Decode(&child); err != nil {
		s.fail(w, "AddChild", fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err))
		return
	}
	if err := s.Engine.AddChild(r.Context(), domain.NodeID(parent), &child); err != nil {
		s.fail(w, "AddChild", err)
		return
	}
	writeJSON(w, http.StatusCreated, editResult{Changed: true, Version: s.Engine.Snapshot().Version})
}

// RemoveChild handles the DELETE /nodes/{id}/children/{child} request.
func (s *Server) RemoveChild(w http.ResponseWriter, r *http.Request, parent string, child string) {
	removed, err := s.Engine.RemoveChild(r.Context(), domain.NodeID(parent), domain.NodeID(child))
	if err != nil {
		s.fail(w, "RemoveChild", err)
		return
	}
	writeJSON(w, http.StatusOK, editResult{Changed: removed, Version: s.Engine.Snapshot().Version})
}

// GetGate handles the GET /gate request.
func (s *Server) GetGate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Gate())
}

// PostContinue handles the POST /continue request.
func (s *Server) PostContinue(w http.ResponseWriter, r *http.Request) {
	sent, err := s.Engine.Continue(r.Context())
	if err != nil {
		s.fail(w, "Continue", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": sent})
}

// GetGraph handles the GET /graph request.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request, params GetGraphParams) {
	snap := s.Engine.Snapshot()
	overlay := graph.OverlayFor(nil, snap)
	if params.Selected != nil {
		overlay.Selected = domain.NodeID(*params.Selected)
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(snap.Root, overlay)))
}

// SubscribeEvents handles the GET /events request (SSE).
// Every published snapshot is sent as a diff against the previously sent one.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request, params SubscribeEventsParams) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := s.Engine.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var last *domain.Snapshot
	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE client disconnected")
			return
		case snap, ok := <-updates:
			if !ok {
				fmt.Fprintf(w, "event: close\ndata: engine closed\n\n")
				flusher.Flush()
				return
			}
			if params.Since != nil && snap.Version <= *params.Since {
				continue
			}
			diff := domain.Diff(last, snap)
			last = snap
			if diff == nil {
				continue
			}
			data, err := json.Marshal(diff)
			if err != nil {
				s.Logger.Error("SSE diff encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: diff\ndata: %s\n\n", snap.Version, data)
			flusher.Flush()
		}
	}
}
