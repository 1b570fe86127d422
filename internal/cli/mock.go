package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/argview/internal/mockremote"
	"github.com/aretw0/argview/pkg/adapters/sqlite"
	"github.com/aretw0/argview/pkg/adapters/websocket"
)

// MockOptions configures RunMock. Exactly one of ScriptPath and JournalPath is set.
type MockOptions struct {
	Listen string
	// ScriptPath is a YAML or JSON script.
	ScriptPath string
	// JournalPath replays RunID from a recorded journal.
	JournalPath string
	RunID       string
	// Close ends each connection after the last step instead of holding it open.
	Close  bool
	Logger *slog.Logger
	Out    io.Writer
}

// LoadMockScript resolves the script a MockOptions describes.
func LoadMockScript(ctx context.Context, opts MockOptions) (*mockremote.Script, error) {
	switch {
	case opts.ScriptPath != "" && opts.JournalPath != "":
		return nil, errors.New("a script and a journal cannot be replayed together")
	case opts.ScriptPath != "":
		return mockremote.LoadScript(opts.ScriptPath)
	case opts.JournalPath != "":
		if opts.RunID == "" {
			return nil, errors.New("replaying a journal requires a run id")
		}
		journal, err := sqlite.Open(opts.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("error opening journal: %w", err)
		}
		defer journal.Close()

		entries, err := journal.Entries(ctx, opts.RunID)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("run %q has no journal entries", opts.RunID)
		}
		return mockremote.ScriptFromJournal(opts.RunID, entries), nil
	default:
		return nil, errors.New("either a script or a journal is required")
	}
}

// RunMock serves a scripted remote process until ctx ends.
func RunMock(ctx context.Context, opts MockOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	script, err := LoadMockScript(ctx, opts)
	if err != nil {
		return err
	}

	mock := mockremote.NewServer(script, opts.Logger)
	mock.Hold = !opts.Close

	sc := NewSignalContext(ctx)
	defer sc.Cancel()

	srv := &http.Server{
		Addr:              opts.Listen,
		Handler:           mock.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	printSystemMessage(out, "Serving script '%s' (%d steps) on http://%s (socket.io %s, envelope %s)",
		script.Name, len(script.Steps), opts.Listen, websocket.DefaultSocketIOPath, websocket.DefaultPath)
	return serveHTTP(sc, srv, opts.Logger)
}
