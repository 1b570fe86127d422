package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/argview/pkg/domain"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// continueTimeout bounds a continue triggered from the keyboard.
const continueTimeout = 5 * time.Second

// Viewer is the part of the engine the interactive view needs.
type Viewer interface {
	RunID() string
	Snapshot() *domain.Snapshot
	Continue(ctx context.Context) (bool, error)
}

type snapshotMsg struct{ snap *domain.Snapshot }

type closedMsg struct{}

type continueMsg struct {
	sent bool
	err  error
}

type theme struct {
	header  lipgloss.Style
	paused  lipgloss.Style
	running lipgloss.Style
	offline lipgloss.Style
	footer  lipgloss.Style
	errText lipgloss.Style
}

func newTheme() theme {
	return theme{
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#c084fc")),
		paused:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fb7185")),
		running: lipgloss.NewStyle().Foreground(lipgloss.Color("#34d399")),
		offline: lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")),
		footer:  lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af")),
		errText: lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171")).Bold(true),
	}
}

// Model is the interactive tree view. It follows snapshots from updates and
// sends continue when the operator presses "c".
type Model struct {
	viewer  Viewer
	updates <-chan *domain.Snapshot

	snap    *domain.Snapshot
	changed map[domain.NodeID]bool

	viewport viewport.Model
	ready    bool
	closed   bool
	status   string
	err      error
	theme    theme
}

// NewModel creates the view. updates is usually the channel returned by Engine.Subscribe.
func NewModel(viewer Viewer, updates <-chan *domain.Snapshot) Model {
	return Model{
		viewer:   viewer,
		updates:  updates,
		snap:     viewer.Snapshot(),
		viewport: viewport.New(0, 0),
		theme:    newTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func waitForSnapshot(updates <-chan *domain.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}

func continueCmd(v Viewer) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), continueTimeout)
		defer cancel()
		sent, err := v.Continue(ctx)
		return continueMsg{sent: sent, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-lipgloss.Height(m.headerView())-lipgloss.Height(m.footerView()), 1)
		m.ready = true
		m.viewport.SetContent(m.body())

	case snapshotMsg:
		if m.snap != nil {
			m.changed = nil
			if d := domain.Diff(m.snap, msg.snap); d != nil && len(d.Added) > 0 && !d.Replaced {
				m.changed = make(map[domain.NodeID]bool, len(d.Added))
				for _, id := range d.Added {
					m.changed[id] = true
				}
			}
		}
		m.snap = msg.snap
		m.viewport.SetContent(m.body())
		cmds = append(cmds, waitForSnapshot(m.updates))

	case closedMsg:
		m.closed = true

	case continueMsg:
		m.err = msg.err
		switch {
		case msg.err != nil:
			m.status = ""
		case msg.sent:
			m.status = "continue sent"
		default:
			m.status = "not paused"
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "c", " ":
			m.status = "continuing..."
			m.err = nil
			return m, continueCmd(m.viewer)
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.footerView()
}

func (m Model) body() string {
	return Outline(m.snap.Root, m.changed)
}

func (m Model) headerView() string {
	var gate string
	switch {
	case m.closed || !m.snap.Gate.Connected:
		gate = m.theme.offline.Render("disconnected")
	case m.snap.Gate.Status == domain.GatePaused:
		gate = m.theme.paused.Render("PAUSED")
	default:
		gate = m.theme.running.Render("running")
	}
	title := fmt.Sprintf("argview  run %s  v%d  %d nodes  depth %d  ",
		m.viewer.RunID(), m.snap.Version, m.snap.NodeCount, m.snap.Depth)
	return m.theme.header.Render(title) + gate
}

func (m Model) footerView() string {
	parts := []string{"c continue", "↑/↓ scroll", "q quit"}
	line := m.theme.footer.Render(strings.Join(parts, " • "))
	if m.err != nil {
		line += "  " + m.theme.errText.Render(m.err.Error())
	} else if m.status != "" {
		line += "  " + m.status
	}
	return line
}
