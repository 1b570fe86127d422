package argview

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/argview/internal/logging"
	"github.com/aretw0/argview/internal/runtime"
	"github.com/aretw0/argview/pkg/adapters/websocket"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
	"github.com/aretw0/argview/pkg/sequencer"
	"github.com/google/uuid"
)

// DefaultSubscriberBuffer is the number of snapshots a subscriber may lag behind.
const DefaultSubscriberBuffer = 16

// Engine is the high-level entry point for the argview library.
// It owns the connection to the remote process and wraps the internal
// runtime that mirrors its tree.
type Engine struct {
	runtime   *runtime.Engine
	dialer    ports.Dialer
	store     ports.SnapshotStore
	journal   ports.Journal
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	hooks     domain.Hooks
	logger    *slog.Logger
	runID     string
	bufSize   int
	broadcast *broadcaster

	dialMu  sync.Mutex // serializes Connect and Disconnect
	mu      sync.Mutex
	conn    *connection
	lastErr error

	journalSeq atomic.Uint64
}

// connection is one dial of the remote process.
type connection struct {
	ch     ports.Channel
	url    string
	cancel context.CancelFunc
	done   chan struct{}
	err    error // read failure, set before done is closed

	failMu  sync.Mutex
	failure error // emit failure that dropped the connection
}

// drop records err and closes the channel, which ends the reader.
func (c *connection) drop(err error) {
	c.failMu.Lock()
	if c.failure == nil {
		c.failure = err
	}
	c.failMu.Unlock()
	c.cancel()
	_ = c.ch.Close()
}

func (c *connection) failed() error {
	c.failMu.Lock()
	defer c.failMu.Unlock()
	return c.failure
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithDialer replaces the default websocket dialer.
func WithDialer(d ports.Dialer) Option {
	return func(e *Engine) {
		e.dialer = d
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithSnapshotStore retains the latest snapshot of the run after every publication.
func WithSnapshotStore(store ports.SnapshotStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithJournal records every inbound channel event.
func WithJournal(j ports.Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithLocker serializes mutations with other processes observing the same run.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

// WithRunID names the run. By default a random UUID is used.
func WithRunID(id string) Option {
	return func(e *Engine) {
		e.runID = id
	}
}

// WithSubscriberBuffer sets how many snapshots each subscriber may queue.
func WithSubscriberBuffer(n int) Option {
	return func(e *Engine) {
		e.bufSize = n
	}
}

// New initializes a new Engine holding an empty tree.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		bufSize: DefaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.runID == "" {
		eng.runID = uuid.NewString()
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.dialer == nil {
		eng.dialer = websocket.NewDialer()
	}
	if eng.bufSize < 1 {
		return nil, errors.New("subscriber buffer must be at least 1")
	}
	eng.broadcast = newBroadcaster(eng.bufSize)

	seqOpts := []sequencer.Option{sequencer.WithLogger(eng.logger)}
	if eng.locker != nil {
		seqOpts = append(seqOpts,
			sequencer.WithLocker(eng.locker, eng.runID),
			sequencer.WithLockTTL(eng.lockTTL),
		)
	}

	runtimeOpts := []runtime.EngineOption{
		runtime.WithSequencer(sequencer.New(seqOpts...)),
		runtime.WithHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
		runtime.WithPublisher(eng.broadcast.publish),
	}
	if eng.store != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithSnapshotStore(eng.store))
	}
	eng.runtime = runtime.NewEngine(eng.runID, runtimeOpts...)

	return eng, nil
}

// RunID returns the id of the observed run.
func (e *Engine) RunID() string {
	return e.runID
}

// Connect dials the remote process and starts applying its messages in the
// background. ctx bounds the dial only; use Disconnect or Close to stop.
func (e *Engine) Connect(ctx context.Context, url string) error {
	e.dialMu.Lock()
	defer e.dialMu.Unlock()

	select {
	case <-e.Done():
	default:
		return domain.ErrAlreadyConnected
	}

	ch, err := e.dialer.Dial(ctx, url)
	if err != nil {
		e.setConn(nil, err)
		e.logger.Error("failed to connect to remote", "url", url, "err", err)
		e.connectionEvent(ctx, url, domain.ConnectionFailed, err)
		return err
	}

	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &connection{
		ch:     ch,
		url:    url,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	// Publish the connection before the gate reports it, so Continue can use it.
	e.setConn(c, nil)
	if err := e.runtime.SetConnected(ctx, true); err != nil {
		cancel()
		_ = ch.Close()
		c.err = err
		close(c.done)
		return err
	}

	e.logger.Info("connected to remote", "url", url, "run_id", e.runID)
	e.connectionEvent(ctx, url, domain.ConnectionOpened, nil)

	go e.readLoop(readCtx, c)
	return nil
}

func (e *Engine) setConn(c *connection, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conn = c
	e.lastErr = err
}

// Run connects and blocks until the connection ends or ctx is cancelled.
// It returns nil when ctx ends the run and the read error otherwise.
func (e *Engine) Run(ctx context.Context, url string) error {
	if err := e.Connect(ctx, url); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return e.Disconnect()
	case <-e.Done():
		return e.Err()
	}
}

// Done is closed when the current connection ends. Without a connection it
// returns a closed channel.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.conn.done
}

// Err returns the failure that ended the last connection, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil {
		select {
		case <-e.conn.done:
			return e.conn.err
		default:
			return nil
		}
	}
	return e.lastErr
}

// Disconnect closes the current connection and waits for the reader to stop.
// The tree is kept; the gate becomes running and disconnected.
func (e *Engine) Disconnect() error {
	e.dialMu.Lock()
	defer e.dialMu.Unlock()

	e.mu.Lock()
	c := e.conn
	e.mu.Unlock()
	if c == nil {
		return nil
	}

	c.cancel()
	err := c.ch.Close()
	<-c.done
	return err
}

// Close disconnects and ends every subscription.
func (e *Engine) Close() error {
	err := e.Disconnect()
	e.broadcast.close()
	return err
}

// Continue releases a paused remote process. It reports whether a continue
// event was emitted; nothing is sent unless the gate is paused. ctx bounds
// the emission. When it fails the connection is dropped: Done is closed and
// Connect may dial again.
func (e *Engine) Continue(ctx context.Context) (bool, error) {
	var used *connection
	emitted, err := e.runtime.Continue(ctx, func(ctx context.Context) error {
		e.mu.Lock()
		c := e.conn
		e.mu.Unlock()
		if c == nil {
			return domain.ErrNotConnected
		}
		used = c
		return c.ch.Emit(ctx, domain.ChannelEvent{Name: domain.EventContinue, Data: domain.ContinuePayload})
	})
	if err != nil && used != nil && errors.Is(err, domain.ErrChannel) {
		e.logger.Warn("dropping connection after failed continue", "url", used.url, "err", err)
		used.drop(err)
	}
	return emitted, err
}

// Snapshot returns the latest published snapshot without blocking.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.runtime.Snapshot()
}

// Gate returns the current wait/continue gate.
func (e *Engine) Gate() domain.Gate {
	return e.runtime.Gate()
}

// Subscribe returns a channel that receives the current snapshot followed by
// every later publication, and a function that ends the subscription.
// Consumers that fall behind lose the oldest queued snapshots.
func (e *Engine) Subscribe() (<-chan *domain.Snapshot, func()) {
	return e.broadcast.subscribe(e.Snapshot())
}

// AddChild applies a local add, ordered with the remote's messages.
func (e *Engine) AddChild(ctx context.Context, parent domain.NodeID, child *domain.Node) error {
	return e.runtime.AddChild(ctx, parent, child)
}

// RemoveChild applies a local delete. It reports whether the tree changed.
func (e *Engine) RemoveChild(ctx context.Context, parent, child domain.NodeID) (bool, error) {
	return e.runtime.RemoveChild(ctx, parent, child)
}

// Tooltip returns the tooltip of a node in the latest snapshot.
func (e *Engine) Tooltip(id domain.NodeID) (domain.Tooltip, bool) {
	return e.runtime.Tooltip(id)
}

func (e *Engine) readLoop(ctx context.Context, c *connection) {
	defer close(c.done)

	for {
		ev, err := c.ch.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				c.err = err
			}
			break
		}
		e.record(ctx, ev)

		switch ev.Name {
		case domain.EventMessage:
			// Rejected messages are logged and reported by the runtime.
			if err := e.runtime.Apply(ctx, ev.Data); errors.Is(err, context.Canceled) {
				e.logger.Warn("message dropped on disconnect", "url", c.url, "err", err)
			}
		default:
			e.logger.Debug("ignoring channel event", "event", ev.Name)
		}
	}

	if c.err == nil {
		c.err = c.failed()
	}
	_ = c.ch.Close()
	bg := context.WithoutCancel(ctx)
	if err := e.runtime.SetConnected(bg, false); err != nil {
		e.logger.Warn("failed to record disconnect", "err", err)
	}
	if c.err != nil {
		e.logger.Warn("remote connection lost", "url", c.url, "err", c.err)
		e.connectionEvent(bg, c.url, domain.ConnectionFailed, c.err)
	} else {
		e.logger.Info("disconnected from remote", "url", c.url)
	}
	e.connectionEvent(bg, c.url, domain.ConnectionClosed, c.err)
}

func (e *Engine) record(ctx context.Context, ev domain.ChannelEvent) {
	if e.journal == nil {
		return
	}
	entry := domain.JournalEntry{
		RunID:      e.runID,
		Seq:        e.journalSeq.Add(1),
		Event:      ev.Name,
		Payload:    ev.Data,
		ReceivedAt: time.Now(),
	}
	if err := e.journal.Append(ctx, entry); err != nil {
		e.logger.Warn("failed to journal event", "seq", entry.Seq, "err", err)
	}
}

func (e *Engine) connectionEvent(ctx context.Context, url string, kind domain.ConnectionEventKind, err error) {
	if e.hooks.OnConnection != nil {
		e.hooks.OnConnection(ctx, &domain.ConnectionEvent{RunID: e.runID, URL: url, Kind: kind, Err: err})
	}
}
