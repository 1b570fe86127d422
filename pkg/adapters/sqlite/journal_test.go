package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/argview/pkg/adapters/sqlite"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/ports"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Ensure Journal implements ports.Journal
var _ ports.Journal = (*sqlite.Journal)(nil)

func TestJournal_Contract(t *testing.T) {
	j, err := sqlite.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	ports.RunJournalContract(t, j)
}

func TestJournal_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := sqlite.Open(path)
	require.NoError(t, err)
	entry := domain.JournalEntry{
		RunID:      "run",
		Seq:        1,
		Event:      domain.EventMessage,
		Payload:    json.RawMessage(`{"method":"wait"}`),
		ReceivedAt: time.Now(),
	}
	require.NoError(t, j.Append(ctx, entry))
	// Duplicate appends are ignored.
	require.NoError(t, j.Append(ctx, entry))
	require.NoError(t, j.Close())

	j, err = sqlite.Open(path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Entries(ctx, "run")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, `{"method":"wait"}`, string(entries[0].Payload))
}
