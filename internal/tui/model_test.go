package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/statloom/internal/session"
)

type fakeSubmitter struct {
	ch   chan session.Result
	err  error
	reqs []session.Request
}

func (f *fakeSubmitter) Submit(_ context.Context, req session.Request) (<-chan session.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.reqs = append(f.reqs, req)
	return f.ch, nil
}

func (f *fakeSubmitter) Busy() bool { return false }

func newTestModel(t *testing.T, sub Submitter) Model {
	t.Helper()
	p := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(p, []byte("name,age\nann,31\n"), 0o644))
	m := New(context.Background(), Options{DataPath: p, Submitter: sub, MarkdownStyle: "notty"})
	m.renderer = nil
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func typeAndSend(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestSubmitDisablesInputUntilResult(t *testing.T) {
	sub := &fakeSubmitter{ch: make(chan session.Result, 1)}
	m := newTestModel(t, sub)

	m, cmd := typeAndSend(t, m, "summarize the data")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.False(t, m.input.Focused())
	assert.Equal(t, "", m.input.Value())
	require.Len(t, sub.reqs, 1)
	assert.Equal(t, "summarize the data", sub.reqs[0].Prompt)

	m, _ = typeAndSend(t, m, "second while busy")
	assert.Len(t, sub.reqs, 1, "no re-entrant submission")

	m, _ = update(t, m, resultMsg{prompt: "summarize the data", res: session.Result{Response: "Here is a summary", Code: "summary(data)", Stdout: "Min: 1"}})
	assert.False(t, m.busy)
	assert.True(t, m.input.Focused())
	assert.Equal(t, session.History{
		{Role: "user", Content: "summarize the data"},
		{Role: "assistant", Content: "Here is a summary"},
	}, m.History())
	view := m.View()
	assert.Contains(t, view, "summary(data)")
	assert.Contains(t, view, "Min: 1")
}

func TestErrorResultNotAddedToHistory(t *testing.T) {
	sub := &fakeSubmitter{ch: make(chan session.Result, 1)}
	m := newTestModel(t, sub)
	m, _ = typeAndSend(t, m, "hi")
	m, _ = update(t, m, resultMsg{prompt: "hi", res: session.Result{Error: "API configuration is missing"}})
	assert.Empty(t, m.History())
	assert.Contains(t, m.renderConversation(), "Error: API configuration is missing")
}

func TestSubmitErrorIsShown(t *testing.T) {
	m := newTestModel(t, &fakeSubmitter{err: session.ErrBusy})
	m, cmd := typeAndSend(t, m, "hi")
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Contains(t, m.renderConversation(), session.ErrBusy.Error())
}

func TestEmptyInputIgnored(t *testing.T) {
	sub := &fakeSubmitter{ch: make(chan session.Result, 1)}
	m := newTestModel(t, sub)
	m, cmd := typeAndSend(t, m, "   ")
	assert.Nil(t, cmd)
	assert.Empty(t, sub.reqs)
	assert.False(t, m.busy)
}

func TestWaitForResult(t *testing.T) {
	ch := make(chan session.Result, 1)
	ch <- session.Result{Response: "ok"}
	close(ch)
	msg := waitForResult("p", ch)()
	assert.Equal(t, resultMsg{prompt: "p", res: session.Result{Response: "ok"}}, msg)

	closed := make(chan session.Result)
	close(closed)
	msg = waitForResult("p", closed)()
	rm, ok := msg.(resultMsg)
	require.True(t, ok)
	assert.False(t, rm.res.OK())
}

func TestPreviewLoadsTable(t *testing.T) {
	m := newTestModel(t, nil)
	msg := loadPreview(m.opts.DataPath, m.opts.Sheet, m.opts.PreviewRows)()
	m, _ = update(t, m, msg)
	require.NotNil(t, m.preview)
	assert.Equal(t, []string{"name", "age"}, m.preview.Columns)
	assert.Contains(t, m.renderConversation(), "| ann | 31 |")
	assert.Contains(t, m.View(), "people.csv")
}

func TestPreviewErrorShown(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = update(t, m, previewMsg{err: errors.New("boom")})
	assert.Nil(t, m.preview)
	assert.Contains(t, m.renderConversation(), "Could not load preview: boom")
}

func TestCodePanelScrolls(t *testing.T) {
	m := newTestModel(t, nil)
	var lines []string
	for i := 1; i <= 20; i++ {
		lines = append(lines, fmt.Sprintf("x%d <- %d", i, i))
	}
	m, _ = update(t, m, resultMsg{prompt: "p", res: session.Result{Response: "ok", Code: strings.Join(lines, "\n")}})
	assert.Contains(t, m.View(), "x1 <- 1")
	assert.NotContains(t, m.View(), "x20 <- 20")

	for i := 0; i < 20; i++ {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyShiftDown})
	}
	assert.True(t, m.code.AtBottom())
	assert.Contains(t, m.View(), "x20 <- 20")
	assert.Contains(t, m.View(), "100%")
}

func TestStderrStyleFollowsOutcome(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = update(t, m, resultMsg{prompt: "p", res: session.Result{Response: "ok", Stderr: "Warning: NAs introduced"}})
	assert.Equal(t, m.styles.Warn.GetForeground(), m.stderrStyle().GetForeground())
	assert.Contains(t, m.View(), "Warning: NAs introduced")

	failed := session.Result{Response: "ok", Stderr: "Failed to execute R code: exit 1", ExecErr: errors.New("exit status 1")}
	m, _ = update(t, m, resultMsg{prompt: "p", res: failed})
	assert.Equal(t, m.styles.Error.GetForeground(), m.stderrStyle().GetForeground())
}

func openFile(t *testing.T, m Model, path string) (Model, tea.Cmd) {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlF})
	require.True(t, m.picking)
	m.input.SetValue(path)
	return update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
}

func TestOpenAnotherDatasetResetsConversation(t *testing.T) {
	sub := &fakeSubmitter{ch: make(chan session.Result, 1)}
	m := newTestModel(t, sub)
	m, _ = typeAndSend(t, m, "hi")
	m, _ = update(t, m, resultMsg{prompt: "hi", res: session.Result{Response: "hello", Code: "summary(data)"}})
	require.Len(t, m.History(), 2)

	other := filepath.Join(t.TempDir(), "sales.tsv")
	require.NoError(t, os.WriteFile(other, []byte("region\tamount\nnorth\t10\n"), 0o644))
	m, cmd := openFile(t, m, other)
	require.NotNil(t, cmd)
	assert.False(t, m.picking)
	assert.Len(t, sub.reqs, 1, "a path is not sent as a question")

	m, _ = update(t, m, cmd())
	assert.Equal(t, other, m.opts.DataPath)
	assert.Empty(t, m.History())
	assert.Empty(t, m.last.Code)
	assert.Equal(t, []string{"region", "amount"}, m.preview.Columns)

	m, _ = typeAndSend(t, m, "totals?")
	require.Len(t, sub.reqs, 2)
	assert.Equal(t, other, sub.reqs[1].DataPath)
	assert.Empty(t, sub.reqs[1].History)
}

func TestOpenUnreadableDatasetKeepsCurrent(t *testing.T) {
	m := newTestModel(t, nil)
	before := m.opts.DataPath
	m, cmd := openFile(t, m, filepath.Join(t.TempDir(), "notes.json"))
	m, _ = update(t, m, cmd())
	assert.Equal(t, before, m.opts.DataPath)
	assert.Contains(t, m.renderConversation(), "Could not load preview")
}

func TestEscCancelsFilePrompt(t *testing.T) {
	m := newTestModel(t, nil)
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlF})
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd, "esc leaves the file prompt without quitting")
	assert.False(t, m.picking)
	assert.Equal(t, askPlaceholder, m.input.Placeholder)
}

func TestMarkdownStyleFixedAcrossResize(t *testing.T) {
	m := New(context.Background(), Options{DataPath: "x.csv", MarkdownStyle: "light"})
	require.NotNil(t, m.renderer)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 140, Height: 50})
	assert.Equal(t, "light", m.mdStyle)
	assert.NotNil(t, m.renderer)

	auto := New(context.Background(), Options{DataPath: "x.csv"})
	assert.Contains(t, []string{"dark", "light"}, auto.mdStyle)
}

func TestQuitKeys(t *testing.T) {
	m := newTestModel(t, nil)
	for _, k := range []tea.KeyMsg{{Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		_, cmd := update(t, m, k)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
	}
}

func TestClipKeepsTail(t *testing.T) {
	in := strings.Join([]string{"1", "2", "3", "4", "5"}, "\n")
	out := clip(in, 3)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "3 more lines")
	assert.Equal(t, []string{"4", "5"}, lines[1:])
	assert.Equal(t, "a\nb", clip("a\nb\n", 3))
}
