// Package sqlite implements a durable ports.Journal on an embedded SQLite
// database (pure Go driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/aretw0/argview/pkg/domain"
	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Journal records inbound channel events in a SQLite file.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
// Use ":memory:" for a throwaway journal.
//
// The database is configured with:
//   - WAL mode so inspect commands can read while a run is recorded
//   - a 5-second busy timeout for lock contention
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append inserts one entry. Re-appending the same (run, seq) is ignored.
func (j *Journal) Append(ctx context.Context, entry domain.JournalEntry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO journal (run_id, seq, event, payload, received_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		entry.RunID,
		int64(entry.Seq),
		entry.Event,
		string(entry.Payload),
		entry.ReceivedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Entries returns the entries of runID ordered by seq.
func (j *Journal) Entries(ctx context.Context, runID string) ([]domain.JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, event, payload, received_at
		FROM journal
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			seq        int64
			event      string
			payload    string
			receivedAt int64
		)
		if err := rows.Scan(&seq, &event, &payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, domain.JournalEntry{
			RunID:      runID,
			Seq:        uint64(seq),
			Event:      event,
			Payload:    json.RawMessage(payload),
			ReceivedAt: time.Unix(0, receivedAt).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Runs returns the distinct run ids in the journal.
func (j *Journal) Runs(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM journal ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("query journal runs: %w", err)
	}
	defer rows.Close()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}
