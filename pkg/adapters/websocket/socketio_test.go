package websocket_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/argview/pkg/adapters/websocket"
	"github.com/aretw0/argview/pkg/domain"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openFrame = `0{"sid":"s1","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`

// socketIOServer runs script on the raw websocket of every request and
// reports the request URL.
func socketIOServer(t *testing.T, script func(ws *gorilla.Conn)) (*httptest.Server, <-chan string) {
	t.Helper()
	urls := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urls <- r.URL.String()
		up := gorilla.Upgrader{}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		script(ws)
	}))
	t.Cleanup(srv.Close)
	return srv, urls
}

func write(t *testing.T, ws *gorilla.Conn, frame string) {
	t.Helper()
	if err := ws.WriteMessage(gorilla.TextMessage, []byte(frame)); err != nil {
		t.Errorf("write %s: %v", frame, err)
	}
}

func read(t *testing.T, ws *gorilla.Conn) string {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Errorf("read: %v", err)
	}
	return string(data)
}

func TestSocketIO_Exchange(t *testing.T) {
	frames := make(chan string, 4)
	srv, urls := socketIOServer(t, func(ws *gorilla.Conn) {
		write(t, ws, openFrame)
		frames <- read(t, ws) // namespace connect
		write(t, ws, `40{"sid":"n1"}`)

		write(t, ws, "2")
		write(t, ws, `42["message","{\"method\":\"wait\"}"]`)
		frames <- read(t, ws) // pong
		frames <- read(t, ws) // continue
		write(t, ws, "41")
	})

	ch, err := websocket.NewDialer().Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer ch.Close()

	assert.Equal(t, "/socket.io/?EIO=4&transport=websocket", <-urls)
	assert.Equal(t, "40", <-frames)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev, err := ch.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventMessage, ev.Name)
	msg, err := domain.DecodeMessage(ev.Data)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodWait, msg.Method)
	assert.Equal(t, "3", <-frames)

	require.NoError(t, ch.Emit(ctx, domain.ChannelEvent{Name: domain.EventContinue, Data: domain.ContinuePayload}))
	assert.Equal(t, `42["continue","continue"]`, <-frames)

	_, err = ch.Receive(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSocketIO_Namespace(t *testing.T) {
	frames := make(chan string, 2)
	srv, urls := socketIOServer(t, func(ws *gorilla.Conn) {
		write(t, ws, openFrame)
		frames <- read(t, ws)
		write(t, ws, `40/arg,{"sid":"n1"}`)

		write(t, ws, `42["message","root namespace"]`)
		write(t, ws, `42/arg,7["message",{"method":"wait"}]`)
		frames <- read(t, ws) // ack
		_, _, _ = ws.ReadMessage()
	})

	ch, err := websocket.NewDialer().Dial(context.Background(), srv.URL+"/arg?token=abc")
	require.NoError(t, err)
	defer ch.Close()

	assert.Equal(t, "/socket.io/?EIO=4&token=abc&transport=websocket", <-urls)
	assert.Equal(t, "40/arg,", <-frames)

	ev, err := ch.Receive(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"wait"}`, string(ev.Data), "events of other namespaces are skipped")
	assert.Equal(t, "43/arg,7[]", <-frames)
}

func TestSocketIO_HandshakeFailures(t *testing.T) {
	tests := []struct {
		name   string
		script func(ws *gorilla.Conn)
		errMsg string
	}{
		{
			name: "refused namespace",
			script: func(ws *gorilla.Conn) {
				write(t, ws, openFrame)
				_, _, _ = ws.ReadMessage()
				write(t, ws, `44{"message":"nope"}`)
			},
			errMsg: "refused",
		},
		{
			name:   "not engine.io",
			script: func(ws *gorilla.Conn) { write(t, ws, `{"event":"message"}`) },
			errMsg: "open packet",
		},
		{
			name:   "silent server",
			script: func(ws *gorilla.Conn) { _, _, _ = ws.ReadMessage() },
			errMsg: "handshake",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := socketIOServer(t, tt.script)
			d := websocket.NewDialer(websocket.WithHandshakeTimeout(300 * time.Millisecond))
			_, err := d.Dial(context.Background(), srv.URL)
			assert.ErrorIs(t, err, domain.ErrChannel)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestSocketIO_BinaryEventIsAnError(t *testing.T) {
	srv, _ := socketIOServer(t, func(ws *gorilla.Conn) {
		write(t, ws, openFrame)
		_, _, _ = ws.ReadMessage()
		write(t, ws, "40")
		write(t, ws, `451-["message",{"_placeholder":true,"num":0}]`)
		_, _, _ = ws.ReadMessage()
	})

	ch, err := websocket.NewDialer().Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer ch.Close()

	_, err = ch.Receive(context.Background())
	assert.ErrorIs(t, err, domain.ErrChannel)
}

func TestSocketIOURL(t *testing.T) {
	tests := []struct {
		in, path  string
		target    string
		namespace string
	}{
		{in: "", target: "ws://localhost:8080/socket.io/?EIO=4&transport=websocket", namespace: "/"},
		{in: "https://arg.example/", target: "wss://arg.example/socket.io/?EIO=4&transport=websocket", namespace: "/"},
		{in: "http://h:1/admin", path: "/io/", target: "ws://h:1/io/?EIO=4&transport=websocket", namespace: "/admin"},
	}
	for _, tt := range tests {
		target, ns, err := websocket.SocketIOURL(tt.in, tt.path)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.target, target, tt.in)
		assert.Equal(t, tt.namespace, ns, tt.in)
	}

	_, _, err := websocket.SocketIOURL("ftp://host", "")
	assert.Error(t, err)
}
