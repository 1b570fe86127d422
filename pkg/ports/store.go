package ports

import (
	"context"

	"github.com/aretw0/argview/pkg/domain"
)

// SnapshotStore defines the interface for retaining published snapshots.
// This lets a snapshot outlive the process for later inspection.
type SnapshotStore interface {
	// Save persists the snapshot under its run id, replacing any previous one.
	Save(ctx context.Context, runID string, snap *domain.Snapshot) error

	// Load retrieves the snapshot for a given run id.
	// Returns domain.ErrSnapshotNotFound if the run has no retained snapshot.
	Load(ctx context.Context, runID string) (*domain.Snapshot, error)

	// Delete removes the snapshot for a given run id.
	Delete(ctx context.Context, runID string) error

	// List returns the run ids with a retained snapshot.
	List(ctx context.Context) ([]string, error)
}
