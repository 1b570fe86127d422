// Package flow implements the wait/continue handshake with the remote process.
//
// The remote pauses by sending "wait" and blocks until argview emits exactly
// one "continue". Reads are lock-free; transitions are expected to happen
// inside the mutation sequencer so they interleave correctly with tree edits.
package flow

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/aretw0/argview/pkg/domain"
)

// Controller tracks the gate of one engine.
type Controller struct {
	paused    atomic.Bool
	connected atomic.Bool
}

// New returns a Controller in the Running, disconnected state.
func New() *Controller {
	return &Controller{}
}

// Connect marks the channel as live.
func (c *Controller) Connect() {
	c.connected.Store(true)
}

// Disconnect forces Running and marks the channel as gone.
// A pause cannot survive its connection since nobody is left to release it.
func (c *Controller) Disconnect() {
	c.connected.Store(false)
	c.paused.Store(false)
}

// Wait moves Running to Paused. It reports whether the state changed.
func (c *Controller) Wait() bool {
	return c.paused.CompareAndSwap(false, true)
}

// Continue releases a paused remote by calling emit exactly once.
//
// It returns false, nil without emitting when the gate is not paused, and
// domain.ErrNotConnected when there is no live channel. The status becomes
// Running before emit is called. If emit fails the controller is marked
// disconnected and the error wraps domain.ErrChannel.
func (c *Controller) Continue(ctx context.Context, emit func(context.Context) error) (bool, error) {
	if !c.connected.Load() {
		return false, domain.ErrNotConnected
	}
	if !c.paused.CompareAndSwap(true, false) {
		return false, nil
	}
	if err := emit(ctx); err != nil {
		c.Disconnect()
		return false, fmt.Errorf("%w: continue: %w", domain.ErrChannel, err)
	}
	return true, nil
}

// Gate returns the current gate.
func (c *Controller) Gate() domain.Gate {
	g := domain.Gate{Status: domain.GateRunning, Connected: c.connected.Load()}
	if c.paused.Load() {
		g.Status = domain.GatePaused
	}
	return g
}
