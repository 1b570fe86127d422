package testutils

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aretw0/argview/internal/mockremote"
	"github.com/aretw0/argview/pkg/adapters/sqlite"
	"github.com/stretchr/testify/require"
)

// ServeScript starts a mock remote process that plays the YAML script to every
// viewer. Unless hold is set, each connection is closed after the last step.
// The server is closed when the test ends.
func ServeScript(t *testing.T, script string, hold bool) *httptest.Server {
	t.Helper()

	s, err := mockremote.ParseScript([]byte(script))
	require.NoError(t, err, "Failed to parse script")

	mock := mockremote.NewServer(s, nil)
	mock.Hold = hold
	srv := httptest.NewServer(mock.Router())
	t.Cleanup(srv.Close)
	return srv
}

// SetupJournal opens a sqlite journal in a temporary directory.
// It returns the database path and the journal, closed when the test ends.
func SetupJournal(t *testing.T) (string, *sqlite.Journal) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "journal.db")
	journal, err := sqlite.Open(path)
	require.NoError(t, err, "Failed to open journal")
	t.Cleanup(func() { _ = journal.Close() })

	return path, journal
}
