// Package websocket carries the message channel over gorilla/websocket.
//
// Two framings are spoken. SocketIO, the default, is the Engine.IO v4 /
// Socket.IO v5 protocol used by socket.io servers: events travel as
// 42["name",payload] packets and server pings are answered. Envelope is a
// plain JSON framing, {"event": name, "data": payload}; frames that are not
// an envelope are delivered as a "message" event whose data is the whole
// frame, so bare edit messages are accepted too.
package websocket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/argview/pkg/domain"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// DefaultWriteTimeout bounds a write when the caller's context has no deadline.
const DefaultWriteTimeout = 10 * time.Second

// Conn is one websocket connection. It implements ports.Channel.
type Conn struct {
	ws        *websocket.Conn
	protocol  Protocol
	namespace string

	writeTimeout time.Duration
	// heartbeat is how long the peer may stay silent; zero disables the check.
	heartbeat time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// NewConn wraps an established websocket connection speaking Envelope.
func NewConn(ws *websocket.Conn) *Conn {
	return newConn(ws, Envelope)
}

func newConn(ws *websocket.Conn, protocol Protocol) *Conn {
	return &Conn{
		ws:           ws,
		protocol:     protocol,
		namespace:    rootNamespace,
		writeTimeout: DefaultWriteTimeout,
		closed:       make(chan struct{}),
	}
}

// Accept upgrades an HTTP request to an Envelope channel. It is the server
// side used by mock remotes and tests.
func Accept(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader) (*Conn, error) {
	ws, err := upgrade(w, r, upgrader)
	if err != nil {
		return nil, err
	}
	return NewConn(ws), nil
}

func upgrade(w http.ResponseWriter, r *http.Request, upgrader *websocket.Upgrader) (*websocket.Conn, error) {
	if upgrader == nil {
		upgrader = &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		}
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: upgrade: %w", domain.ErrChannel, err)
	}
	return ws, nil
}

// Protocol reports the framing of the connection.
func (c *Conn) Protocol() Protocol {
	return c.protocol
}

// Receive reads the next event. Cancelling ctx interrupts the read; the
// connection is unusable afterwards. An orderly close by the peer is io.EOF.
// Socket.IO control packets are handled here and never returned.
func (c *Conn) Receive(ctx context.Context) (domain.ChannelEvent, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		if c.heartbeat > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.heartbeat))
		}
		// Checked after the deadline is set, so a concurrent cancel is never overwritten.
		if err := ctx.Err(); err != nil {
			return domain.ChannelEvent{}, err
		}

		data, err := c.read(ctx)
		if err != nil {
			return domain.ChannelEvent{}, err
		}
		if c.protocol == Envelope {
			return decodeEnvelope(data), nil
		}

		ev, ok, err := c.handlePacket(ctx, data)
		if err != nil {
			return domain.ChannelEvent{}, err
		}
		if ok {
			return ev, nil
		}
	}
}

func (c *Conn) read(ctx context.Context) ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err == nil {
		return data, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil, io.EOF
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return nil, fmt.Errorf("%w: no heartbeat from peer within %s", domain.ErrChannel, c.heartbeat)
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrChannel, err)
}

// handlePacket interprets one Engine.IO frame. ok reports an event for the caller.
func (c *Conn) handlePacket(ctx context.Context, data []byte) (ev domain.ChannelEvent, ok bool, err error) {
	if len(data) == 0 {
		return ev, false, nil
	}
	switch data[0] {
	case eioPing:
		return ev, false, c.writeFrame(ctx, append([]byte{eioPong}, data[1:]...))
	case eioClose:
		return ev, false, io.EOF
	case eioMessage:
	default:
		// open, pong, upgrade and noop carry nothing for the channel.
		return ev, false, nil
	}

	p, err := parseSocketIO(data[1:])
	if err != nil {
		return ev, false, fmt.Errorf("%w: %w", domain.ErrChannel, err)
	}
	if p.namespace != c.namespace {
		return ev, false, nil
	}
	switch p.kind {
	case sioEvent:
		name, payload, err := p.event()
		if err != nil {
			return ev, false, fmt.Errorf("%w: %w", domain.ErrChannel, err)
		}
		if p.ackID != "" {
			if err := c.writeFrame(ctx, encodeSocketIO(sioAck, c.namespace, p.ackID, []byte("[]"))); err != nil {
				return ev, false, err
			}
		}
		return domain.ChannelEvent{Name: name, Data: payload}, true, nil
	case sioDisconnect:
		return ev, false, io.EOF
	case sioConnectError:
		return ev, false, fmt.Errorf("%w: namespace %s refused: %s", domain.ErrChannel, c.namespace, p.payload)
	default:
		return ev, false, nil
	}
}

// Emit writes one event. Concurrent calls are serialized. The write is
// bounded by ctx and by the connection's write timeout, whichever ends first.
func (c *Conn) Emit(ctx context.Context, ev domain.ChannelEvent) error {
	var (
		frame []byte
		err   error
	)
	if c.protocol == Envelope {
		frame, err = json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode %s event: %w", ev.Name, err)
		}
	} else {
		frame, err = encodeEvent(c.namespace, ev.Name, ev.Data)
		if err != nil {
			return err
		}
	}
	return c.writeFrame(ctx, frame)
}

func (c *Conn) writeFrame(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrChannel, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.ws.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrChannel, ctxErr)
		}
		return fmt.Errorf("%w: %w", domain.ErrChannel, err)
	}
	return nil
}

// Close leaves the namespace when speaking SocketIO, sends a close frame and
// releases the connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		deadline := time.Now().Add(closeGracePeriod)
		if c.protocol == SocketIO {
			_ = c.ws.SetWriteDeadline(deadline)
			_ = c.ws.WriteMessage(websocket.TextMessage, encodeSocketIO(sioDisconnect, c.namespace, "", nil))
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		c.writeMu.Unlock()

		if err := c.ws.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.closeErr = err
		}
	})
	return c.closeErr
}

type envelope struct {
	Event *string         `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func decodeEnvelope(data []byte) domain.ChannelEvent {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err == nil && env.Event != nil {
			return domain.ChannelEvent{Name: *env.Event, Data: env.Data}
		}
	}
	return domain.ChannelEvent{Name: domain.EventMessage, Data: trimmed}
}
