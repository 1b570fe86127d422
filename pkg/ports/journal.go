package ports

import (
	"context"

	"github.com/aretw0/argview/pkg/domain"
)

// Journal records inbound channel events in arrival order.
type Journal interface {
	// Append stores one entry. Entries of a run are kept in Seq order.
	Append(ctx context.Context, entry domain.JournalEntry) error

	// Entries returns every entry recorded for runID, ordered by Seq.
	Entries(ctx context.Context, runID string) ([]domain.JournalEntry, error)

	// Runs lists the run ids present in the journal.
	Runs(ctx context.Context) ([]string, error)

	Close() error
}
