package domain

import (
	"context"
	"time"
)

// Origin tells where a mutation came from.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// ApplyEvent describes a completed critical section.
type ApplyEvent struct {
	RunID     string
	Seq       uint64
	Method    Method
	Origin    Origin
	Changed   bool // a new snapshot was published
	NodeCount int
	Depth     int
	Duration  time.Duration
}

// ErrorEvent describes a critical section that was aborted.
type ErrorEvent struct {
	RunID  string
	Seq    uint64
	Method Method
	Origin Origin
	Err    error
}

// GateEvent is emitted whenever the gate changes.
type GateEvent struct {
	RunID   string
	Gate    Gate
	Emitted bool // a continue was sent to the remote
}

// ConnectionEventKind mirrors the lifecycle events of the message channel.
type ConnectionEventKind string

const (
	ConnectionOpened ConnectionEventKind = "connect"
	ConnectionFailed ConnectionEventKind = "error"
	ConnectionClosed ConnectionEventKind = "disconnect"
)

// ConnectionEvent reports a channel lifecycle change.
type ConnectionEvent struct {
	RunID string
	URL   string
	Kind  ConnectionEventKind
	Err   error
}

// Hooks defines callbacks for engine observability.
// All fields are optional. Hooks run inside the critical section and must not block.
type Hooks struct {
	OnApply      func(context.Context, *ApplyEvent)
	OnError      func(context.Context, *ErrorEvent)
	OnGate       func(context.Context, *GateEvent)
	OnConnection func(context.Context, *ConnectionEvent)
}

// ComposeHooks fans every callback out to each of the given hooks in order.
func ComposeHooks(hooks ...Hooks) Hooks {
	return Hooks{
		OnApply: func(ctx context.Context, e *ApplyEvent) {
			for _, h := range hooks {
				if h.OnApply != nil {
					h.OnApply(ctx, e)
				}
			}
		},
		OnError: func(ctx context.Context, e *ErrorEvent) {
			for _, h := range hooks {
				if h.OnError != nil {
					h.OnError(ctx, e)
				}
			}
		},
		OnGate: func(ctx context.Context, e *GateEvent) {
			for _, h := range hooks {
				if h.OnGate != nil {
					h.OnGate(ctx, e)
				}
			}
		},
		OnConnection: func(ctx context.Context, e *ConnectionEvent) {
			for _, h := range hooks {
				if h.OnConnection != nil {
					h.OnConnection(ctx, e)
				}
			}
		},
	}
}
