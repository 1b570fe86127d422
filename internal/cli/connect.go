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

	"github.com/aretw0/argview"
	"github.com/aretw0/argview/internal/config"
	"github.com/aretw0/argview/internal/presentation/tui"
	httpAdapter "github.com/aretw0/argview/pkg/adapters/http"
	"github.com/aretw0/argview/pkg/domain"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// Mode selects how RunConnect presents the mirrored tree.
type Mode int

const (
	// ModeHeadless only logs; the tree is reachable through the HTTP API.
	ModeHeadless Mode = iota
	// ModePlain prints every snapshot as rendered Markdown.
	ModePlain
	// ModeTUI runs the interactive viewer.
	ModeTUI
)

// ConnectOptions configures RunConnect.
type ConnectOptions struct {
	Config config.Config
	Mode   Mode
	Logger *slog.Logger
	// Out receives plain output and system messages. Defaults to Stdout.
	Out io.Writer
	// Banner prints the startup banner before connecting.
	Banner bool
}

// RunConnect mirrors the remote process at Config.URL until ctx ends or the
// user quits. When the connection drops the command ends, unless the TUI or
// the HTTP API keeps presenting the retained tree.
func RunConnect(ctx context.Context, opts ConnectOptions) error {
	cfg := opts.Config
	logger := opts.Logger
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if opts.Banner {
		tui.PrintBanner(out, argview.Version)
	}

	engine, res, err := NewEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = res.Close() }()
	defer func() { _ = engine.Close() }()

	sc := NewSignalContext(ctx)
	defer sc.Cancel()

	if err := engine.Connect(sc, cfg.URL); err != nil {
		return fmt.Errorf("error connecting to %s: %w", cfg.URL, err)
	}
	if opts.Mode != ModeTUI {
		printSystemMessage(out, "Watching run '%s' at %s.", engine.RunID(), cfg.URL)
	}

	g, gctx := errgroup.WithContext(sc)
	retained := opts.Mode == ModeTUI

	if cfg.Listen != "" {
		retained = true
		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           newAPIHandler(engine, res, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error { return serveHTTP(gctx, srv, logger) })
	}

	switch opts.Mode {
	case ModeTUI:
		g.Go(func() error {
			defer sc.Cancel()
			return runTUI(gctx, engine)
		})
	case ModePlain:
		g.Go(func() error { return printSnapshots(gctx, engine, out) })
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-engine.Done():
		}
		err := engine.Err()
		if retained {
			if err != nil {
				logger.Warn("connection lost, keeping the last tree", "err", err)
			}
			return nil
		}
		sc.Cancel()
		return err
	})

	err = g.Wait()
	if opts.Mode != ModeTUI {
		logCompletion(out, engine.RunID(), sc.Signal())
	}
	return handleExecutionError(err)
}

func newAPIHandler(engine *argview.Engine, res *Resources, logger *slog.Logger) http.Handler {
	opts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
	if res.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetrics(res.Metrics.Handler()))
	}
	return httpAdapter.NewHandler(engine, opts...)
}

func runTUI(ctx context.Context, engine *argview.Engine) error {
	updates, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(
		tui.NewModel(engine, updates),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("viewer failed: %w", err)
	}
	return nil
}

// printSnapshots renders each snapshot as Markdown until ctx ends or the
// subscription closes. Without a terminal the raw Markdown is printed.
func printSnapshots(ctx context.Context, engine *argview.Engine, out io.Writer) error {
	render := func(md string) (string, error) { return md, nil }
	if f, ok := out.(*os.File); ok && IsTerminal(f) {
		r, err := tui.NewRenderer(terminalWidth())
		if err != nil {
			return err
		}
		render = r
	}

	show := func(snap *domain.Snapshot) error {
		text, err := render(tui.Markdown(snap))
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, text)
		return err
	}

	updates, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			// Flush what was published before the run ended.
			for {
				select {
				case snap, ok := <-updates:
					if !ok {
						return nil
					}
					if err := show(snap); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if err := show(snap); err != nil {
				return err
			}
		}
	}
}
