package websocket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/argview/pkg/domain"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Heartbeat settings announced by AcceptSocketIO, in line with socket.io's defaults.
const (
	serverPingInterval = 25 * time.Second
	serverPingTimeout  = 20 * time.Second
	serverMaxPayload   = 1_000_000
)

// DefaultHandshakeTimeout bounds the Socket.IO handshake of AcceptSocketIO.
const DefaultHandshakeTimeout = 10 * time.Second

// clientHandshake waits for the Engine.IO open packet, joins c.namespace
// and waits for the server to acknowledge it.
func (c *Conn) clientHandshake(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()
	if d, ok := ctx.Deadline(); ok {
		_ = c.ws.SetReadDeadline(d)
	}

	data, err := c.read(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 || data[0] != eioOpen {
		return fmt.Errorf("%w: expected an engine.io open packet, got %q", domain.ErrChannel, data)
	}
	var open openPacket
	if err := json.Unmarshal(data[1:], &open); err != nil {
		return fmt.Errorf("%w: engine.io open packet: %w", domain.ErrChannel, err)
	}
	if open.PingInterval > 0 {
		c.heartbeat = time.Duration(open.PingInterval+open.PingTimeout) * time.Millisecond
	}

	if err := c.writeFrame(ctx, encodeSocketIO(sioConnect, c.namespace, "", nil)); err != nil {
		return err
	}

	for {
		data, err := c.read(ctx)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			continue
		}
		switch data[0] {
		case eioPing:
			if err := c.writeFrame(ctx, append([]byte{eioPong}, data[1:]...)); err != nil {
				return err
			}
			continue
		case eioClose:
			return fmt.Errorf("%w: closed during handshake", domain.ErrChannel)
		case eioMessage:
		default:
			continue
		}

		p, err := parseSocketIO(data[1:])
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrChannel, err)
		}
		if p.namespace != c.namespace {
			continue
		}
		switch p.kind {
		case sioConnect:
			return c.ws.SetReadDeadline(time.Time{})
		case sioConnectError:
			return fmt.Errorf("%w: namespace %s refused: %s", domain.ErrChannel, c.namespace, p.payload)
		}
	}
}

// AcceptSocketIO upgrades a request from a socket.io client and completes
// the Engine.IO open and namespace connect exchange. It is the server side
// used by mock remotes and tests; it answers no long-polling requests.
func AcceptSocketIO(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader) (*Conn, error) {
	if r.URL.Query().Get("transport") == "polling" {
		http.Error(w, "only the websocket transport is supported", http.StatusBadRequest)
		return nil, fmt.Errorf("%w: polling transport requested", domain.ErrChannel)
	}
	ws, err := upgrade(w, r, upgrader)
	if err != nil {
		return nil, err
	}
	c := newConn(ws, SocketIO)

	ctx, cancel := context.WithTimeout(r.Context(), DefaultHandshakeTimeout)
	defer cancel()
	if err := c.serverHandshake(ctx); err != nil {
		_ = ws.Close()
		return nil, err
	}
	go c.pingLoop(serverPingInterval)
	return c, nil
}

func (c *Conn) serverHandshake(ctx context.Context) error {
	open, err := json.Marshal(openPacket{
		SID:          uuid.NewString(),
		Upgrades:     []string{},
		PingInterval: int(serverPingInterval / time.Millisecond),
		PingTimeout:  int(serverPingTimeout / time.Millisecond),
		MaxPayload:   serverMaxPayload,
	})
	if err != nil {
		return err
	}
	if err := c.writeFrame(ctx, append([]byte{eioOpen}, open...)); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		data, err := c.read(ctx)
		if err != nil {
			return err
		}
		if len(data) < 2 || data[0] != eioMessage {
			continue
		}
		p, err := parseSocketIO(data[1:])
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrChannel, err)
		}
		if p.kind != sioConnect {
			return fmt.Errorf("%w: expected a socket.io connect packet, got %q", domain.ErrChannel, data)
		}
		c.namespace = p.namespace

		ack, err := json.Marshal(map[string]string{"sid": uuid.NewString()})
		if err != nil {
			return err
		}
		if err := c.writeFrame(ctx, encodeSocketIO(sioConnect, c.namespace, "", ack)); err != nil {
			return err
		}
		return nil
	}
}

// pingLoop keeps a server connection alive until it is closed.
func (c *Conn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if err := c.writeFrame(context.Background(), []byte{eioPing}); err != nil {
				return
			}
		}
	}
}
