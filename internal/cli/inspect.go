package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/aretw0/argview/internal/mockremote"
	"github.com/aretw0/argview/internal/presentation/graph"
	"github.com/aretw0/argview/internal/presentation/tui"
	"github.com/aretw0/argview/pkg/ports"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Output formats of the inspection commands.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
	FormatMermaid  = "mermaid"
	// FormatScript prints a journal as a mock script that replays it.
	FormatScript = "script"
)

// ListRuns prints one line per run with a retained snapshot.
func ListRuns(ctx context.Context, store ports.SnapshotStore, out io.Writer) error {
	runs, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("error listing runs: %w", err)
	}
	if len(runs) == 0 {
		printSystemMessage(out, "No retained snapshots.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tVERSION\tNODES\tGATE\tPUBLISHED")
	for _, runID := range runs {
		snap, err := store.Load(ctx, runID)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t%v\n", runID, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", runID, snap.Version, snap.NodeCount, snap.Gate.Status, snap.PublishedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// ShowSnapshot prints the retained snapshot of runID in format.
func ShowSnapshot(ctx context.Context, store ports.SnapshotStore, runID, format string, out io.Writer) error {
	snap, err := store.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("error loading run %q: %w", runID, err)
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case FormatMermaid:
		_, err := io.WriteString(out, graph.GenerateMermaid(snap.Root, graph.OverlayFor(nil, snap)))
		return err
	case FormatMarkdown, "":
		md := tui.Markdown(snap)
		if f, ok := out.(*os.File); ok && IsTerminal(f) {
			render, err := tui.NewRenderer(terminalWidth())
			if err != nil {
				return err
			}
			if md, err = render(md); err != nil {
				return err
			}
		}
		_, err := io.WriteString(out, md)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// ShowJournal prints the recorded events of runID, or the recorded runs when runID is empty.
// FormatScript prints a replay script instead of a table.
func ShowJournal(ctx context.Context, journal ports.Journal, runID, format string, out io.Writer) error {
	if runID == "" {
		runs, err := journal.Runs(ctx)
		if err != nil {
			return fmt.Errorf("error listing journal runs: %w", err)
		}
		for _, r := range runs {
			fmt.Fprintln(out, r)
		}
		return nil
	}

	entries, err := journal.Entries(ctx, runID)
	if err != nil {
		return fmt.Errorf("error reading journal of %q: %w", runID, err)
	}

	switch format {
	case FormatScript:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		enc.SetIndent(2)
		return enc.Encode(mockremote.ScriptFromJournal(runID, entries))
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRECEIVED\tEVENT\tPAYLOAD")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Seq, e.ReceivedAt.Format(time.RFC3339Nano), e.Event, truncate(string(e.Payload), 80))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
