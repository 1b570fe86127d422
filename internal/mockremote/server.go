package mockremote

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/argview/internal/logging"
	"github.com/aretw0/argview/pkg/adapters/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server plays the script to every viewer that connects.
type Server struct {
	player *Player
	logger *slog.Logger
	// Hold keeps the connection open after the last step until the viewer leaves.
	Hold bool
}

// NewServer creates a Server for script.
func NewServer(script *Script, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		player: NewPlayer(script, logger),
		logger: logger,
		Hold:   true,
	}
}

// Router mounts the socket.io endpoint on websocket.DefaultSocketIOPath and
// the envelope endpoint on websocket.DefaultPath.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get(websocket.DefaultSocketIOPath, s.serveSocketIO)
	r.Get(websocket.DefaultPath, s.ServeHTTP)
	return r
}

// ServeHTTP upgrades the request to an envelope channel and plays the script on it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.serve(r, conn)
}

func (s *Server) serveSocketIO(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.AcceptSocketIO(w, r, nil)
	if err != nil {
		s.logger.Warn("socket.io handshake failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	s.serve(r, conn)
}

func (s *Server) serve(r *http.Request, conn *websocket.Conn) {
	defer conn.Close()

	ctx := r.Context()
	s.logger.Info("viewer connected", "remote", r.RemoteAddr, "protocol", conn.Protocol())
	if err := s.player.Play(ctx, conn); err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("script aborted", "remote", r.RemoteAddr, "err", err)
		}
		return
	}
	s.logger.Info("script finished", "remote", r.RemoteAddr)

	if s.Hold {
		for {
			if _, err := conn.Receive(ctx); err != nil {
				return
			}
		}
	}
}
