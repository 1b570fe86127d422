package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/argview/pkg/domain"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore implementation
// adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	runID := "contract-test-run-" + time.Now().Format("20060102150405")

	sample := func(id string, version uint64) *domain.Snapshot {
		return &domain.Snapshot{
			RunID:   id,
			Version: version,
			Root: &domain.Node{
				ID:       "root",
				Tooltip:  &domain.Tooltip{Action: "step", State: "s1"},
				Children: []*domain.Node{{ID: "a", Attributes: map[string]json.RawMessage{"name": json.RawMessage(`"leaf"`)}}},
			},
			NodeCount:   2,
			Depth:       2,
			Gate:        domain.Gate{Status: domain.GatePaused, Connected: true},
			PublishedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := sample(runID, 3)

		err := store.Save(ctx, runID, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap.Version, loaded.Version)
		assert.Equal(t, snap.NodeCount, loaded.NodeCount)
		assert.Equal(t, snap.Gate, loaded.Gate)
		assert.True(t, snap.PublishedAt.Equal(loaded.PublishedAt))
		require.NotNil(t, loaded.Root)
		assert.Equal(t, domain.NodeID("root"), loaded.Root.ID)
		require.Len(t, loaded.Root.Children, 1)
		assert.JSONEq(t, `"leaf"`, string(loaded.Root.Children[0].Attributes["name"]))
		require.NotNil(t, loaded.Root.Tooltip)
		assert.Equal(t, "step", loaded.Root.Tooltip.Action)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, runID, sample(runID, 4)))
		loaded, err := store.Load(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), loaded.Version)
	})

	t.Run("Empty Tree", func(t *testing.T) {
		id := runID + "-empty"
		require.NoError(t, store.Save(ctx, id, &domain.Snapshot{RunID: id}))
		defer func() { _ = store.Delete(ctx, id) }()

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, loaded.Root)
		assert.Equal(t, 0, loaded.NodeCount)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, runID, sample(runID, 5)))

		err := store.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load after Delete should return ErrSnapshotNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		_ = store.Save(ctx, id1, sample(id1, 1))
		_ = store.Save(ctx, id2, sample(id2, 1))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		runs, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, id1)
		assert.Contains(t, runs, id2)
	})
}

// RunJournalContract verifies that a Journal keeps entries per run in sequence order.
func RunJournalContract(t *testing.T, journal Journal) {
	ctx := context.Background()
	runID := "contract-test-journal-" + time.Now().Format("20060102150405")
	other := runID + "-other"
	now := time.Now().UTC().Truncate(time.Millisecond)

	entry := func(run string, seq uint64, payload string) domain.JournalEntry {
		return domain.JournalEntry{
			RunID:      run,
			Seq:        seq,
			Event:      domain.EventMessage,
			Payload:    json.RawMessage(payload),
			ReceivedAt: now.Add(time.Duration(seq) * time.Millisecond),
		}
	}

	t.Run("Append and Entries", func(t *testing.T) {
		// Appended out of order on purpose; Entries must sort by Seq.
		require.NoError(t, journal.Append(ctx, entry(runID, 2, `{"method":"wait"}`)))
		require.NoError(t, journal.Append(ctx, entry(runID, 1, `{"method":"create","node":{"id":"r"}}`)))
		require.NoError(t, journal.Append(ctx, entry(other, 1, `"{\"method\":\"wait\"}"`)))

		entries, err := journal.Entries(ctx, runID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, uint64(1), entries[0].Seq)
		assert.Equal(t, uint64(2), entries[1].Seq)
		assert.JSONEq(t, `{"method":"wait"}`, string(entries[1].Payload))
		assert.Equal(t, domain.EventMessage, entries[0].Event)
		assert.True(t, entries[0].ReceivedAt.Equal(now.Add(time.Millisecond)))
	})

	t.Run("String Payload Preserved", func(t *testing.T) {
		entries, err := journal.Entries(ctx, other)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, `"{\"method\":\"wait\"}"`, string(entries[0].Payload))
	})

	t.Run("Unknown Run", func(t *testing.T) {
		entries, err := journal.Entries(ctx, "missing-"+runID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Runs", func(t *testing.T) {
		runs, err := journal.Runs(ctx)
		require.NoError(t, err)
		assert.Contains(t, runs, runID)
		assert.Contains(t, runs, other)
	})
}
