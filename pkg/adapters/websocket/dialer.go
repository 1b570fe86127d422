package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
	"github.com/gorilla/websocket"
)

const (
	// DefaultURL is where the remote process listens unless told otherwise.
	DefaultURL = "http://localhost:8080"
	// DefaultPath is the Envelope endpoint used when the URL has no path.
	DefaultPath = "/ws"
	// DefaultSocketIOPath is where socket.io servers mount Engine.IO.
	DefaultSocketIOPath = "/socket.io/"
)

// Dialer opens websocket channels. It implements ports.Dialer.
type Dialer struct {
	dialer       *websocket.Dialer
	header       http.Header
	protocol     Protocol
	path         string
	writeTimeout time.Duration
}

// DialerOption configures the Dialer.
type DialerOption func(*Dialer)

// WithHeader adds a header to the handshake request.
func WithHeader(key, value string) DialerOption {
	return func(d *Dialer) {
		d.header.Add(key, value)
	}
}

// WithHandshakeTimeout bounds the opening handshake, including the
// Socket.IO namespace connect.
func WithHandshakeTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) {
		d.dialer.HandshakeTimeout = timeout
	}
}

// WithProtocol selects the framing. SocketIO is the default.
func WithProtocol(p Protocol) DialerOption {
	return func(d *Dialer) {
		d.protocol = p
	}
}

// WithPath overrides DefaultSocketIOPath, like the socket.io client's path option.
func WithPath(path string) DialerOption {
	return func(d *Dialer) {
		if path != "" {
			d.path = path
		}
	}
}

// WithWriteTimeout overrides DefaultWriteTimeout for dialed connections.
func WithWriteTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) {
		d.writeTimeout = timeout
	}
}

// NewDialer creates a socket.io Dialer with gorilla's defaults.
func NewDialer(opts ...DialerOption) *Dialer {
	base := *websocket.DefaultDialer
	d := &Dialer{
		dialer:       &base,
		header:       http.Header{},
		protocol:     SocketIO,
		path:         DefaultSocketIOPath,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ ports.Dialer = (*Dialer)(nil)

// Dial connects to rawURL. With SocketIO the URL path names the namespace,
// as with the socket.io client, and the handshake completes before Dial
// returns. With Envelope the URL is normalized with NormalizeURL.
func (d *Dialer) Dial(ctx context.Context, rawURL string) (ports.Channel, error) {
	var (
		target    string
		namespace = rootNamespace
		err       error
	)
	if d.protocol == Envelope {
		target, err = NormalizeURL(rawURL)
	} else {
		target, namespace, err = SocketIOURL(rawURL, d.path)
	}
	if err != nil {
		return nil, err
	}

	ws, resp, err := d.dialer.DialContext(ctx, target, d.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", domain.ErrChannel, target, err)
	}

	c := newConn(ws, d.protocol)
	c.namespace = namespace
	c.writeTimeout = d.writeTimeout
	if d.protocol == Envelope {
		return c, nil
	}

	hsCtx := ctx
	if d.dialer.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		hsCtx, cancel = context.WithTimeout(ctx, d.dialer.HandshakeTimeout)
		defer cancel()
	}
	if err := c.clientHandshake(hsCtx); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("%w: socket.io handshake with %s: %w", domain.ErrChannel, target, err)
	}
	return c, nil
}

// NormalizeURL maps http(s) to ws(s), adds a scheme to bare host:port
// values and fills in DefaultPath. The empty string yields DefaultURL.
func NormalizeURL(raw string) (string, error) {
	u, err := parseRemoteURL(raw)
	if err != nil {
		return "", err
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = DefaultPath
	}
	return u.String(), nil
}

// SocketIOURL builds the Engine.IO websocket endpoint for raw. The path of
// raw is the namespace ("/" when empty); the endpoint lives at enginePath
// with EIO=4 and transport=websocket added to the query.
func SocketIOURL(raw, enginePath string) (target, namespace string, err error) {
	u, err := parseRemoteURL(raw)
	if err != nil {
		return "", "", err
	}
	namespace = strings.TrimSuffix(u.Path, "/")
	if namespace == "" {
		namespace = rootNamespace
	}
	if enginePath == "" {
		enginePath = DefaultSocketIOPath
	}
	u.Path = enginePath
	u.RawPath = ""

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), namespace, nil
}

func parseRemoteURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultURL
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid remote url %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported remote url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("remote url %q has no host", raw)
	}
	return u, nil
}
