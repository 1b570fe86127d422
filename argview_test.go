package argview_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/argview"
	"github.com/aretw0/argview/internal/logging"
	"github.com/aretw0/argview/pkg/adapters/memory"
	"github.com/aretw0/argview/pkg/domain"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// remote is the far end of an in-process channel, standing in for the ARG process.
type remote struct {
	t   *testing.T
	end *memory.End
}

func (r *remote) send(payload string) {
	r.t.Helper()
	require.NoError(r.t, r.end.Emit(context.Background(), domain.ChannelEvent{
		Name: domain.EventMessage,
		Data: json.RawMessage(payload),
	}))
}

// sendString delivers the message as a JSON string, as socket-style servers do.
func (r *remote) sendString(payload string) {
	r.t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(r.t, err)
	require.NoError(r.t, r.end.Emit(context.Background(), domain.ChannelEvent{Name: domain.EventMessage, Data: data}))
}

func (r *remote) expectContinue() {
	r.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ev, err := r.end.Receive(ctx)
	require.NoError(r.t, err)
	assert.Equal(r.t, domain.EventContinue, ev.Name)
	assert.Equal(r.t, `"continue"`, string(ev.Data))
}

func connect(t *testing.T, opts ...argview.Option) (*argview.Engine, *remote) {
	t.Helper()
	client, server := memory.NewPipe(64)
	opts = append([]argview.Option{argview.WithDialer(memory.NewDialer(client))}, opts...)
	eng, err := argview.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	require.NoError(t, eng.Connect(context.Background(), "mem://remote"))
	return eng, &remote{t: t, end: server}
}

func waitVersion(t *testing.T, eng *argview.Engine, v uint64) *domain.Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return eng.Snapshot().Version >= v }, timeout, tick)
	return eng.Snapshot()
}

func TestEngine_RootScenario(t *testing.T) {
	eng, rem := connect(t)
	base := eng.Snapshot().Version

	rem.send(`{"method":"create","node":{"id":"root","children":[]}}`)
	rem.sendString(`{"method":"add","parent":"root","child":{"id":"a","tooltip":{"action":"probe","state":"s1"}}}`)
	snap := waitVersion(t, eng, base+2)
	assert.Equal(t, 2, snap.NodeCount)

	tip, ok := eng.Tooltip("a")
	require.True(t, ok)
	assert.Equal(t, "probe", tip.Action)

	rem.send(`{"method":"delete","parent":"root","child":"a"}`)
	snap = waitVersion(t, eng, base+3)
	assert.Equal(t, 1, snap.NodeCount)
	assert.NotNil(t, snap.Root.Children)
	assert.Empty(t, snap.Root.Children)
}

func TestEngine_WaitContinue(t *testing.T) {
	eng, rem := connect(t)

	ok, err := eng.Continue(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "nothing to continue while running")

	rem.send(`{"method":"wait"}`)
	require.Eventually(t, func() bool { return eng.Gate().CanContinue() }, timeout, tick)

	ok, err = eng.Continue(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	rem.expectContinue()

	ok, err = eng.Continue(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "a single wait releases a single continue")
}

func TestEngine_BadMessagesDoNotStopTheStream(t *testing.T) {
	var mu sync.Mutex
	var failures []error
	eng, rem := connect(t, argview.WithHooks(domain.Hooks{
		OnError: func(_ context.Context, ev *domain.ErrorEvent) {
			mu.Lock()
			failures = append(failures, ev.Err)
			mu.Unlock()
		},
	}))

	rem.send(`{"method":"create","node":{"id":"r"}}`)
	rem.send(`{"method":"add","parent":"ghost","child":{"id":"x"}}`)
	rem.send(`garbage`)
	rem.send(`{"method":"add","parent":"r","child":{"id":"x"}}`)

	require.Eventually(t, func() bool { return eng.Snapshot().NodeCount == 2 }, timeout, tick)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], domain.ErrParentNotFound)
	assert.ErrorIs(t, failures[1], domain.ErrMalformedMessage)
}

func TestEngine_DisconnectKeepsTree(t *testing.T) {
	var mu sync.Mutex
	var kinds []domain.ConnectionEventKind
	eng, rem := connect(t, argview.WithHooks(domain.Hooks{
		OnConnection: func(_ context.Context, ev *domain.ConnectionEvent) {
			mu.Lock()
			kinds = append(kinds, ev.Kind)
			mu.Unlock()
		},
	}))

	rem.send(`{"method":"create","node":{"id":"r"}}`)
	rem.send(`{"method":"wait"}`)
	require.Eventually(t, func() bool { return eng.Gate().Status == domain.GatePaused }, timeout, tick)

	require.NoError(t, rem.end.Close())
	select {
	case <-eng.Done():
	case <-time.After(timeout):
		t.Fatal("reader did not stop")
	}

	snap := eng.Snapshot()
	assert.Equal(t, 1, snap.NodeCount)
	assert.Equal(t, domain.Gate{Status: domain.GateRunning, Connected: false}, snap.Gate)
	assert.ErrorIs(t, eng.Err(), memory.ErrClosed)

	_, err := eng.Continue(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotConnected)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.ConnectionEventKind{domain.ConnectionOpened, domain.ConnectionFailed, domain.ConnectionClosed}, kinds)
}

func TestEngine_ConnectTwice(t *testing.T) {
	eng, _ := connect(t)
	assert.ErrorIs(t, eng.Connect(context.Background(), "mem://again"), domain.ErrAlreadyConnected)
}

func TestEngine_ReconnectAfterDisconnect(t *testing.T) {
	first, _ := memory.NewPipe(8)
	second, secondServer := memory.NewPipe(8)
	eng, err := argview.New(argview.WithDialer(memory.NewDialer(first, second)))
	require.NoError(t, err)
	defer eng.Close()

	ctx := context.Background()
	require.NoError(t, eng.Connect(ctx, "mem://1"))
	require.NoError(t, eng.Disconnect())
	assert.NoError(t, eng.Err(), "a local disconnect is not a failure")
	assert.False(t, eng.Gate().Connected)

	require.NoError(t, eng.Connect(ctx, "mem://2"))
	assert.True(t, eng.Gate().Connected)
	require.NoError(t, secondServer.Emit(ctx, domain.ChannelEvent{Name: domain.EventMessage, Data: json.RawMessage(`{"method":"create","node":{"id":"again"}}`)}))
	require.Eventually(t, func() bool { return eng.Snapshot().NodeCount == 1 }, timeout, tick)
}

func TestEngine_ContinueBoundedByCallerDeadline(t *testing.T) {
	// One slot each way: a continue the remote never reads fills the pipe.
	client, server := memory.NewPipe(1)
	spare, spareServer := memory.NewPipe(1)
	eng, err := argview.New(argview.WithDialer(memory.NewDialer(client, spare)))
	require.NoError(t, err)
	defer eng.Close()
	require.NoError(t, eng.Connect(context.Background(), "mem://stalled"))
	rem := &remote{t: t, end: server}

	rem.send(`{"method":"create","node":{"id":"r"}}`)
	rem.send(`{"method":"wait"}`)
	require.Eventually(t, func() bool { return eng.Gate().CanContinue() }, timeout, tick)
	ok, err := eng.Continue(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	rem.send(`{"method":"wait"}`)
	require.Eventually(t, func() bool { return eng.Gate().CanContinue() }, timeout, tick)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	ok, err = eng.Continue(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrChannel)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "a stalled emit must not outlive the caller's deadline")

	// The sequencer is free again.
	editCtx, editCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer editCancel()
	require.NoError(t, eng.AddChild(editCtx, "r", &domain.Node{ID: "after"}))
	assert.Equal(t, 2, eng.Snapshot().NodeCount)

	// The failed emit drops the connection so the operator can dial again.
	select {
	case <-eng.Done():
	case <-time.After(timeout):
		t.Fatal("connection not dropped after failed continue")
	}
	assert.ErrorIs(t, eng.Err(), domain.ErrChannel)
	assert.False(t, eng.Gate().Connected)
	_, err = server.Receive(context.Background())
	require.NoError(t, err, "the buffered continue is still delivered")
	_, err = server.Receive(context.Background())
	assert.ErrorIs(t, err, memory.ErrClosed)

	require.NoError(t, eng.Connect(context.Background(), "mem://again"))
	assert.True(t, eng.Gate().Connected)
	require.NoError(t, spareServer.Emit(context.Background(), domain.ChannelEvent{Name: domain.EventMessage, Data: json.RawMessage(`{"method":"wait"}`)}))
	require.Eventually(t, func() bool { return eng.Gate().CanContinue() }, timeout, tick)
}

// syncBuffer is a bytes.Buffer safe for the engine's goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEngine_MessageDroppedOnDisconnectIsLogged(t *testing.T) {
	var logs syncBuffer
	entered := make(chan struct{})
	release := make(chan struct{})
	eng, rem := connect(t,
		argview.WithLogger(logging.NewWithWriter(&logs, slog.LevelDebug)),
		argview.WithHooks(domain.Hooks{
			OnApply: func(_ context.Context, ev *domain.ApplyEvent) {
				if ev.Origin == domain.OriginLocal {
					close(entered)
					<-release
				}
			},
		}),
	)
	rem.send(`{"method":"create","node":{"id":"r"}}`)
	waitVersion(t, eng, 2)

	// A local edit holds the sequencer while the next remote message queues behind it.
	edited := make(chan error, 1)
	go func() { edited <- eng.AddChild(context.Background(), "r", &domain.Node{ID: "local"}) }()
	<-entered
	rem.send(`{"method":"add","parent":"r","child":{"id":"late"}}`)

	disconnected := make(chan error, 1)
	go func() { disconnected <- eng.Disconnect() }()
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "message dropped on disconnect")
	}, timeout, tick)

	close(release)
	require.NoError(t, <-edited)
	require.NoError(t, <-disconnected)
	assert.Equal(t, 2, eng.Snapshot().NodeCount, "the queued remote add was never applied")
}

func TestEngine_DialFailure(t *testing.T) {
	var failed *domain.ConnectionEvent
	eng, err := argview.New(
		argview.WithDialer(memory.NewDialer()),
		argview.WithHooks(domain.Hooks{OnConnection: func(_ context.Context, ev *domain.ConnectionEvent) { failed = ev }}),
	)
	require.NoError(t, err)

	err = eng.Connect(context.Background(), "mem://nowhere")
	assert.ErrorIs(t, err, domain.ErrChannel)
	require.NotNil(t, failed)
	assert.Equal(t, domain.ConnectionFailed, failed.Kind)
	assert.ErrorIs(t, eng.Err(), domain.ErrChannel)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	client, _ := memory.NewPipe(1)
	eng, err := argview.New(argview.WithDialer(memory.NewDialer(client)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- eng.Run(ctx, "mem://run") }()

	require.Eventually(t, func() bool { return eng.Gate().Connected }, timeout, tick)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(timeout):
		t.Fatal("Run did not return")
	}
}

func TestEngine_Subscribe(t *testing.T) {
	eng, rem := connect(t, argview.WithSubscriberBuffer(2))
	updates, cancel := eng.Subscribe()
	defer cancel()

	first := <-updates
	assert.Equal(t, eng.Snapshot().Version, first.Version, "subscription starts with the current snapshot")

	rem.send(`{"method":"create","node":{"id":"r"}}`)
	for i := 0; i < 5; i++ {
		rem.send(`{"method":"add","parent":"r","child":{"id":"c` + string(rune('0'+i)) + `"}}`)
	}
	final := first.Version + 6
	waitVersion(t, eng, final)

	// Only the newest snapshots survive in a two-slot buffer.
	var last *domain.Snapshot
	require.Eventually(t, func() bool {
		select {
		case s := <-updates:
			last = s
		default:
		}
		return last != nil && last.Version == final
	}, timeout, tick)
	assert.Equal(t, 6, last.NodeCount)

	cancel()
	_, open := <-updates
	assert.False(t, open)
}

func TestEngine_LocalEdits(t *testing.T) {
	eng, rem := connect(t)
	rem.send(`{"method":"create","node":{"id":"r"}}`)
	waitVersion(t, eng, 2)

	ctx := context.Background()
	require.NoError(t, eng.AddChild(ctx, "r", &domain.Node{ID: "mine"}))
	assert.Equal(t, 2, eng.Snapshot().NodeCount)

	removed, err := eng.RemoveChild(ctx, "r", "mine")
	require.NoError(t, err)
	assert.True(t, removed)

	err = eng.AddChild(ctx, "nope", &domain.Node{ID: "x"})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestEngine_RetentionAndJournal(t *testing.T) {
	store := memory.NewStore()
	journal := memory.NewJournal()
	eng, rem := connect(t,
		argview.WithRunID("run-42"),
		argview.WithSnapshotStore(store),
		argview.WithJournal(journal),
	)
	assert.Equal(t, "run-42", eng.RunID())

	rem.send(`{"method":"create","node":{"id":"r"}}`)
	rem.send(`{"method":"wait"}`)
	require.Eventually(t, func() bool {
		saved, err := store.Load(context.Background(), "run-42")
		return err == nil && saved.Gate.Status == domain.GatePaused
	}, timeout, tick)

	entries, err := journal.Entries(context.Background(), "run-42")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(1), entries[0].Seq)
	assert.JSONEq(t, `{"method":"wait"}`, string(entries[1].Payload))
}

func TestNew_InvalidBuffer(t *testing.T) {
	_, err := argview.New(argview.WithSubscriberBuffer(0))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, argview.Version)
}
