package websocket_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/argview/pkg/adapters/websocket"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
	"github.com/aretw0/argview/pkg/ports/tests"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envelope = websocket.WithProtocol(websocket.Envelope)

// serve starts a server whose accepted connections are delivered on the returned channel.
func serve(t *testing.T, protocol websocket.Protocol) (*httptest.Server, <-chan ports.Channel) {
	t.Helper()
	accepted := make(chan ports.Channel, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept := websocket.Accept
		if protocol == websocket.SocketIO {
			accept = websocket.AcceptSocketIO
		}
		conn, err := accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)
	return srv, accepted
}

func TestConn_Contract(t *testing.T) {
	for _, protocol := range []websocket.Protocol{websocket.SocketIO, websocket.Envelope} {
		t.Run(protocol.String(), func(t *testing.T) {
			tests.ChannelContractTest(t, func(t *testing.T) (ports.Channel, ports.Channel) {
				srv, accepted := serve(t, protocol)
				client, err := websocket.NewDialer(websocket.WithProtocol(protocol)).Dial(context.Background(), srv.URL)
				require.NoError(t, err)
				select {
				case server := <-accepted:
					return client, server
				case <-time.After(5 * time.Second):
					t.Fatal("server did not accept")
					return nil, nil
				}
			})
		})
	}
}

func TestConn_BareFrameIsAMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := gorilla.Upgrader{}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(gorilla.TextMessage, []byte(`{"method":"wait"}`))
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	ch, err := websocket.NewDialer(envelope).Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer ch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := ch.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.EventMessage, ev.Name)
	assert.JSONEq(t, `{"method":"wait"}`, string(ev.Data))
}

func TestConn_StringPayloadIsKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := gorilla.Upgrader{}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(gorilla.TextMessage, []byte(`{"event":"message","data":"{\"method\":\"wait\"}"}`))
		_, _, _ = ws.ReadMessage()
	}))
	defer srv.Close()

	ch, err := websocket.NewDialer(envelope).Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer ch.Close()

	ev, err := ch.Receive(context.Background())
	require.NoError(t, err)
	msg, err := domain.DecodeMessage(ev.Data)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodWait, msg.Method)
}

func TestDialer_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := websocket.NewDialer(websocket.WithHandshakeTimeout(time.Second)).Dial(context.Background(), srv.URL)
	assert.ErrorIs(t, err, domain.ErrChannel)
}

func TestDialer_SendsHeaders(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Run")
		conn, err := websocket.Accept(w, r, nil)
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	ch, err := websocket.NewDialer(envelope, websocket.WithHeader("X-Run", "r1")).Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer ch.Close()
	assert.Equal(t, "r1", <-got)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "ws://localhost:8080/ws"},
		{in: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{in: "https://arg.example/", want: "wss://arg.example/ws"},
		{in: "ws://host:1/socket", want: "ws://host:1/socket"},
		{in: "localhost:9000", want: "ws://localhost:9000/ws"},
		{in: "http://h:1/run?token=abc", want: "ws://h:1/run?token=abc"},
	}
	for _, tt := range tests {
		got, err := websocket.NormalizeURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"ftp://host", "http://", "http://bad host"} {
		_, err := websocket.NormalizeURL(bad)
		assert.Error(t, err, bad)
	}
	assert.True(t, strings.HasPrefix(websocket.DefaultURL, "http://"))
}

func TestConn_OrderlyCloseIsEOF(t *testing.T) {
	for _, protocol := range []websocket.Protocol{websocket.SocketIO, websocket.Envelope} {
		t.Run(protocol.String(), func(t *testing.T) {
			srv, accepted := serve(t, protocol)
			ch, err := websocket.NewDialer(websocket.WithProtocol(protocol)).Dial(context.Background(), srv.URL)
			require.NoError(t, err)
			defer ch.Close()

			server := <-accepted
			require.NoError(t, server.Close())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err = ch.Receive(ctx)
			assert.ErrorIs(t, err, io.EOF)
			assert.NotErrorIs(t, err, domain.ErrChannel)
		})
	}
}

func TestConn_EmitHonoursCancelledContext(t *testing.T) {
	srv, accepted := serve(t, websocket.Envelope)
	ch, err := websocket.NewDialer(envelope).Dial(context.Background(), srv.URL)
	require.NoError(t, err)
	defer ch.Close()
	defer (<-accepted).Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ch.Emit(ctx, domain.ChannelEvent{Name: domain.EventContinue, Data: domain.ContinuePayload})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseProtocol(t *testing.T) {
	for in, want := range map[string]websocket.Protocol{
		"":          websocket.SocketIO,
		"socketio":  websocket.SocketIO,
		"Socket.IO": websocket.SocketIO,
		"envelope":  websocket.Envelope,
	} {
		got, err := websocket.ParseProtocol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := websocket.ParseProtocol("grpc")
	assert.Error(t, err)
}
