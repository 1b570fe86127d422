package tui

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aretw0/argview/pkg/domain"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *domain.Node {
	return &domain.Node{ID: "root", Children: []*domain.Node{
		{ID: "a", Tooltip: &domain.Tooltip{Action: "probe", State: "s1"}, Children: []*domain.Node{{ID: "a1"}}},
		{ID: "b", Tooltip: &domain.Tooltip{State: "done"}},
	}}
}

func TestOutline(t *testing.T) {
	want := "root\n" +
		"├── a [probe | s1]\n" +
		"│   └── a1 *\n" +
		"└── b [done]\n"
	assert.Equal(t, want, Outline(sample(), map[domain.NodeID]bool{"a1": true}))
	assert.Equal(t, "(empty tree)\n", Outline(nil, nil))
}

func TestMarkdown(t *testing.T) {
	md := Markdown(&domain.Snapshot{RunID: "r1", Version: 3, Root: sample(), Gate: domain.Gate{Status: domain.GatePaused}})
	assert.Contains(t, md, "# Run `r1`")
	assert.Contains(t, md, "| 3 | 4 | 2 | 3 | paused (disconnected) |")
	assert.Contains(t, md, "└── b [done]")
}

func TestRenderer(t *testing.T) {
	render, err := NewRenderer(60)
	require.NoError(t, err)
	out, err := render("# Hello\n\nworld")
	require.NoError(t, err)
	assert.Contains(t, out, "world")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.Contains(t, buf.String(), "v1.2.3")
}

type fakeViewer struct {
	snap      *domain.Snapshot
	continues int
	err       error
}

func (f *fakeViewer) RunID() string              { return "run-1" }
func (f *fakeViewer) Snapshot() *domain.Snapshot { return f.snap }
func (f *fakeViewer) Continue(context.Context) (bool, error) {
	f.continues++
	return f.err == nil, f.err
}

func TestModel_FollowsSnapshots(t *testing.T) {
	v := &fakeViewer{snap: &domain.Snapshot{RunID: "run-1"}}
	updates := make(chan *domain.Snapshot, 1)
	var m tea.Model = NewModel(v, updates)

	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	assert.Contains(t, m.View(), "(empty tree)")

	first := &domain.Snapshot{RunID: "run-1", Version: 1, Root: &domain.Node{ID: "root"}, NodeCount: 1, Gate: domain.Gate{Connected: true, Status: domain.GateRunning}}
	m, cmd := m.Update(snapshotMsg{snap: first})
	require.NotNil(t, cmd)

	second := &domain.Snapshot{RunID: "run-1", Version: 2, Root: sample(), NodeCount: 4, Gate: domain.Gate{Connected: true, Status: domain.GatePaused}}
	updates <- second
	m, _ = m.Update(waitForSnapshot(updates)())

	view := m.View()
	assert.Contains(t, view, "v2")
	assert.Contains(t, view, "PAUSED")
	assert.Contains(t, view, "a1 *")

	close(updates)
	m, _ = m.Update(waitForSnapshot(updates)())
	assert.Contains(t, m.View(), "disconnected")
}

func TestModel_ContinueKey(t *testing.T) {
	v := &fakeViewer{snap: &domain.Snapshot{RunID: "run-1", Gate: domain.Gate{Connected: true, Status: domain.GatePaused}}}
	var m tea.Model = NewModel(v, make(chan *domain.Snapshot))
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.Equal(t, 1, v.continues)
	assert.Contains(t, m.View(), "continue sent")

	v.err = errors.New("channel error: broken pipe")
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	m, _ = m.Update(cmd())
	assert.Contains(t, m.View(), "broken pipe")
}

func TestModel_Quit(t *testing.T) {
	v := &fakeViewer{snap: &domain.Snapshot{}}
	m := NewModel(v, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "probe", "probe"},
		{"Whitespace Controls", "line1\nline2\ttab", "line1 line2 tab"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"}, // ESC removed
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Invalid UTF-8", "a\xffb", "a�b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeLabel(tt.input))
		})
	}
}

func TestSanitizeLabel_Truncates(t *testing.T) {
	t.Setenv(EnvMaxLabelSize, "5")
	assert.Equal(t, "abcd…", SanitizeLabel("abcdefgh"))
	assert.Equal(t, "abcde", SanitizeLabel("abcde"))
}
