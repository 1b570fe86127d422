package domain

import "time"

// GateStatus is the state of the wait/continue handshake.
type GateStatus string

const (
	GateRunning GateStatus = "running" // Remote process is executing
	GatePaused  GateStatus = "paused"  // Remote process sent "wait" and blocks until continue
)

// Gate combines the flow status with the connection state.
// A disconnected gate is always reported as running.
type Gate struct {
	Status    GateStatus `json:"status"`
	Connected bool       `json:"connected"`
}

// CanContinue reports whether a continue request would be emitted.
func (g Gate) CanContinue() bool {
	return g.Connected && g.Status == GatePaused
}

// Snapshot is an immutable view of the tree, published after every completed mutation.
// Readers may hold a Snapshot for as long as they like; the engine never changes it.
type Snapshot struct {
	// RunID identifies the observed run (one engine, possibly several connections).
	RunID string `json:"run_id"`

	// Version increases by one on every publication.
	Version uint64 `json:"version"`

	// Root is nil for an empty tree.
	Root *Node `json:"root"`

	// NodeCount is derived from Root after every mutation.
	NodeCount int `json:"node_count"`

	// Depth is the number of levels in the tree (0 when empty).
	Depth int `json:"depth"`

	Gate        Gate      `json:"gate"`
	PublishedAt time.Time `json:"published_at"`
}
