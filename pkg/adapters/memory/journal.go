package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/aretw0/argview/pkg/domain"
)

// Journal implements ports.Journal in memory.
type Journal struct {
	mu      sync.RWMutex
	entries map[string][]domain.JournalEntry
}

// NewJournal creates an empty in-memory journal.
func NewJournal() *Journal {
	return &Journal{entries: make(map[string][]domain.JournalEntry)}
}

// Append records one entry.
func (j *Journal) Append(ctx context.Context, entry domain.JournalEntry) error {
	entry.Payload = slices.Clone(entry.Payload)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[entry.RunID] = append(j.entries[entry.RunID], entry)
	return nil
}

// Entries returns the entries of runID ordered by Seq.
func (j *Journal) Entries(ctx context.Context, runID string) ([]domain.JournalEntry, error) {
	j.mu.RLock()
	out := slices.Clone(j.entries[runID])
	j.mu.RUnlock()

	sort.SliceStable(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, nil
}

// Runs returns the run ids present in the journal, sorted.
func (j *Journal) Runs(ctx context.Context) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	runs := make([]string, 0, len(j.entries))
	for id := range j.entries {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}

// Close is a no-op.
func (j *Journal) Close() error {
	return nil
}
