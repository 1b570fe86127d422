package runtime

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aretw0/argview/internal/logging"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/flow"
	"github.com/aretw0/argview/pkg/ports"
	"github.com/aretw0/argview/pkg/sequencer"
	"github.com/aretw0/argview/pkg/tree"
)

// Engine mirrors the remote tree of one run.
type Engine struct {
	runID  string
	seq    *sequencer.Sequencer
	flow   *flow.Controller
	store  ports.SnapshotStore
	hooks  domain.Hooks
	logger *slog.Logger
	notify func(*domain.Snapshot)
	now    func() time.Time

	// Guarded by seq.
	root    *domain.Node
	version uint64

	ops  atomic.Uint64
	snap atomic.Pointer[domain.Snapshot]
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithSequencer replaces the default local sequencer, e.g. with one that also
// takes a distributed lock.
func WithSequencer(s *sequencer.Sequencer) EngineOption {
	return func(e *Engine) {
		e.seq = s
	}
}

// WithSnapshotStore retains every published snapshot.
func WithSnapshotStore(store ports.SnapshotStore) EngineOption {
	return func(e *Engine) {
		e.store = store
	}
}

// WithHooks registers observability hooks.
func WithHooks(hooks domain.Hooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithPublisher is called with every published snapshot, inside the critical section.
func WithPublisher(fn func(*domain.Snapshot)) EngineOption {
	return func(e *Engine) {
		e.notify = fn
	}
}

// WithClock overrides time.Now for PublishedAt and durations.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine holding the empty tree at version 0.
func NewEngine(runID string, opts ...EngineOption) *Engine {
	e := &Engine{
		runID:  runID,
		flow:   flow.New(),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seq == nil {
		e.seq = sequencer.New(sequencer.WithLogger(e.logger))
	}
	e.snap.Store(e.buildSnapshot())
	return e
}

// RunID returns the run this engine mirrors.
func (e *Engine) RunID() string {
	return e.runID
}

// Snapshot returns the latest published snapshot. It never blocks.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.snap.Load()
}

// Gate returns the current gate without waiting for pending mutations.
func (e *Engine) Gate() domain.Gate {
	return e.flow.Gate()
}

// Pending returns the number of critical sections queued or running.
func (e *Engine) Pending() int {
	return e.seq.Pending()
}

// Tooltip returns a copy of the tooltip of node id in the latest snapshot.
func (e *Engine) Tooltip(id domain.NodeID) (domain.Tooltip, bool) {
	n, ok := tree.FindByID(e.Snapshot().Root, id)
	if !ok || n.Tooltip == nil {
		return domain.Tooltip{}, false
	}
	return *n.Tooltip, true
}

// Apply decodes and applies one inbound message payload.
//
// Failures leave the tree unchanged; they are logged, reported through
// OnError and returned as *domain.MessageError.
func (e *Engine) Apply(ctx context.Context, payload []byte) error {
	return e.section(ctx, domain.OriginRemote, func(ctx context.Context, op *operation) error {
		msg, err := domain.DecodeMessage(payload)
		if err != nil {
			return err
		}
		op.method = msg.Method
		return e.dispatch(ctx, op, msg)
	})
}

// AddChild applies a local add.
func (e *Engine) AddChild(ctx context.Context, parent domain.NodeID, child *domain.Node) error {
	return e.section(ctx, domain.OriginLocal, func(ctx context.Context, op *operation) error {
		op.method = domain.MethodAdd
		return e.dispatch(ctx, op, &domain.Message{Method: domain.MethodAdd, Parent: parent, Child: child})
	})
}

// RemoveChild applies a local delete. It reports whether the tree changed.
func (e *Engine) RemoveChild(ctx context.Context, parent, child domain.NodeID) (bool, error) {
	var removed bool
	err := e.section(ctx, domain.OriginLocal, func(ctx context.Context, op *operation) error {
		op.method = domain.MethodDelete
		err := e.dispatch(ctx, op, &domain.Message{Method: domain.MethodDelete, Parent: parent, ChildID: child})
		removed = op.changed
		return err
	})
	return removed, err
}

// Continue releases a paused remote by calling emit once, after every
// message received before it has been applied. emit runs with the caller's
// ctx, so its deadline bounds the write while the section holds the lock.
func (e *Engine) Continue(ctx context.Context, emit func(context.Context) error) (bool, error) {
	callerCtx := ctx
	return sequencer.WithExclusiveAccess(ctx, e.seq, func(ctx context.Context) (bool, error) {
		before := e.flow.Gate()
		emitted, err := e.flow.Continue(callerCtx, emit)
		if e.flow.Gate() != before {
			e.commit(ctx, e.root)
			e.gateChanged(ctx, emitted)
		}
		if err != nil {
			e.logger.Warn("continue failed", "run_id", e.runID, "err", err)
		}
		return emitted, err
	})
}

// SetConnected records that the message channel opened or closed.
// Closing forces the gate back to running; the tree is kept.
func (e *Engine) SetConnected(ctx context.Context, connected bool) error {
	return e.seq.Do(ctx, func(ctx context.Context) error {
		before := e.flow.Gate()
		if connected {
			e.flow.Connect()
		} else {
			e.flow.Disconnect()
		}
		if e.flow.Gate() != before {
			e.commit(ctx, e.root)
			e.gateChanged(ctx, false)
		}
		return nil
	})
}

// operation carries the bookkeeping of one critical section.
type operation struct {
	seq     uint64
	method  domain.Method
	origin  domain.Origin
	changed bool
}

// section runs fn as one critical section and reports its outcome.
func (e *Engine) section(ctx context.Context, origin domain.Origin, fn func(context.Context, *operation) error) error {
	op := &operation{seq: e.ops.Add(1), origin: origin}
	err := e.seq.Do(ctx, func(ctx context.Context) error {
		start := e.now()
		if err := fn(ctx, op); err != nil {
			merr := &domain.MessageError{Seq: op.seq, Method: op.method, Err: err}
			e.logger.Warn("message rejected",
				"run_id", e.runID,
				"seq", op.seq,
				"method", op.method,
				"origin", op.origin,
				"err", err,
			)
			if e.hooks.OnError != nil {
				e.hooks.OnError(ctx, &domain.ErrorEvent{
					RunID:  e.runID,
					Seq:    op.seq,
					Method: op.method,
					Origin: op.origin,
					Err:    err,
				})
			}
			return merr
		}
		if e.hooks.OnApply != nil {
			snap := e.Snapshot()
			e.hooks.OnApply(ctx, &domain.ApplyEvent{
				RunID:     e.runID,
				Seq:       op.seq,
				Method:    op.method,
				Origin:    op.origin,
				Changed:   op.changed,
				NodeCount: snap.NodeCount,
				Depth:     snap.Depth,
				Duration:  e.now().Sub(start),
			})
		}
		return nil
	})
	return err
}

// commit installs root and publishes a new snapshot. Must run inside the sequencer.
func (e *Engine) commit(ctx context.Context, root *domain.Node) {
	e.root = root
	e.version++
	snap := e.buildSnapshot()
	e.snap.Store(snap)

	if e.store != nil {
		if err := e.store.Save(ctx, e.runID, snap); err != nil {
			e.logger.Warn("failed to retain snapshot", "run_id", e.runID, "version", snap.Version, "err", err)
		}
	}
	if e.notify != nil {
		e.notify(snap)
	}
}

func (e *Engine) buildSnapshot() *domain.Snapshot {
	stats := tree.Measure(e.root)
	return &domain.Snapshot{
		RunID:       e.runID,
		Version:     e.version,
		Root:        e.root,
		NodeCount:   stats.Nodes,
		Depth:       stats.Depth,
		Gate:        e.flow.Gate(),
		PublishedAt: e.now(),
	}
}

func (e *Engine) gateChanged(ctx context.Context, emitted bool) {
	if e.hooks.OnGate != nil {
		e.hooks.OnGate(ctx, &domain.GateEvent{RunID: e.runID, Gate: e.flow.Gate(), Emitted: emitted})
	}
}
