// Package tui is the interactive chat screen for one dataset.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/session"
)

// Submitter starts a turn in the background; session.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, req session.Request) (<-chan session.Result, error)
	Busy() bool
}

type Options struct {
	DataPath    string
	Sheet       string
	PreviewRows int
	Submitter   Submitter
	Logger      zerolog.Logger
	// MarkdownStyle is a glamour standard style ("dark", "light", "notty").
	// Empty picks dark or light from the terminal background once, at construction.
	MarkdownStyle string
}

const (
	askPlaceholder  = "Ask about the data... (Enter to send, Esc to quit)"
	pathPlaceholder = "Path to a .csv, .tsv or .xlsx file (Enter to load, Esc to cancel)"
)

type role int

const (
	roleUser role = iota
	roleAssistant
	roleSystem
)

type entry struct {
	role role
	text string
}

// resultMsg carries a finished turn back onto the program loop.
type resultMsg struct {
	prompt string
	res    session.Result
}

type previewMsg struct {
	path  string
	sheet string
	table *dataset.Table
	err   error
}

// Model is the bubbletea model. All state changes happen in Update.
type Model struct {
	opts     Options
	ctx      context.Context
	styles   Styles
	input    textinput.Model
	conv     viewport.Model
	code     viewport.Model
	spinner  spinner.Model
	mdStyle  string
	renderer *glamour.TermRenderer

	entries []entry
	history session.History
	last    session.Result
	preview *dataset.Table
	busy    bool
	pending string
	// picking is set while the input holds a dataset path instead of a question.
	picking bool

	width  int
	height int
}

func New(ctx context.Context, opts Options) Model {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 50
	}
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = askPlaceholder
	ti.Prompt = "> "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	mdStyle := opts.MarkdownStyle
	if mdStyle == "" {
		mdStyle = glamourstyles.DarkStyle
		if !lipgloss.HasDarkBackground() {
			mdStyle = glamourstyles.LightStyle
		}
	}
	renderer, _ := glamour.NewTermRenderer(glamour.WithStandardStyle(mdStyle), glamour.WithWordWrap(78))

	return Model{
		opts:     opts,
		ctx:      ctx,
		styles:   styles,
		input:    ti,
		conv:     viewport.New(80, 16),
		code:     viewport.New(76, panelLines-1),
		spinner:  sp,
		mdStyle:  mdStyle,
		renderer: renderer,
		width:    100,
		height:   40,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, loadPreview(m.opts.DataPath, m.opts.Sheet, m.opts.PreviewRows))
}

// History returns the conversation recorded so far.
func (m Model) History() session.History { return m.history }

func loadPreview(path, sheet string, rows int) tea.Cmd {
	return func() tea.Msg {
		tbl, err := dataset.OpenWith(path, dataset.Options{Limit: rows, Sheet: sheet})
		return previewMsg{path: path, sheet: sheet, table: tbl, err: err}
	}
}

func waitForResult(prompt string, ch <-chan session.Result) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			res = session.Result{Error: "request ended without a result"}
		}
		return resultMsg{prompt: prompt, res: res}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		if m.renderer != nil {
			// Style was fixed in New; only the wrap width follows the window.
			m.renderer, _ = glamour.NewTermRenderer(glamour.WithStandardStyle(m.mdStyle), glamour.WithWordWrap(max(20, m.conv.Width-2)))
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.picking {
				m.stopPicking()
				return m, nil
			}
			return m, tea.Quit
		case "ctrl+o":
			m.addEntry(roleSystem, "Reloading "+filepath.Base(m.opts.DataPath)+"...")
			return m, loadPreview(m.opts.DataPath, m.opts.Sheet, m.opts.PreviewRows)
		case "ctrl+f":
			if m.busy {
				return m, nil
			}
			m.picking = true
			m.input.Reset()
			m.input.Placeholder = pathPlaceholder
			return m, nil
		case "enter":
			if m.picking {
				return m.openDataset()
			}
			return m.submit()
		case "shift+up":
			m.code.ScrollUp(1)
			return m, nil
		case "shift+down":
			m.code.ScrollDown(1)
			return m, nil
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.conv, cmd = m.conv.Update(msg)
			return m, cmd
		}
		if !m.busy {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case resultMsg:
		m.busy = false
		m.pending = ""
		m.last = msg.res
		m.code.SetContent(m.styles.Code.Render(strings.TrimRight(msg.res.Code, "\n")))
		m.code.GotoTop()
		if msg.res.OK() {
			m.history = m.history.Append(msg.prompt, msg.res.Response)
			m.addEntry(roleAssistant, msg.res.Response)
		} else {
			m.addEntry(roleSystem, "Error: "+msg.res.Error)
		}
		m.input.Focus()
		cmds = append(cmds, textinput.Blink)

	case previewMsg:
		if msg.err != nil {
			m.opts.Logger.Warn().Err(msg.err).Str("data", msg.path).Msg("preview failed")
			m.addEntry(roleSystem, "Could not load preview: "+msg.err.Error())
			break
		}
		if msg.path != m.opts.DataPath {
			// A new dataset starts a new conversation.
			m.opts.DataPath, m.opts.Sheet = msg.path, msg.sheet
			m.history = nil
			m.last = session.Result{}
			m.code.SetContent("")
			m.opts.Logger.Info().Str("data", msg.path).Msg("dataset switched")
		}
		m.preview = msg.table
		m.addEntry(roleSystem, fmt.Sprintf("File selected: %s. You can now start the analysis.\n\n%s", msg.table.Name, msg.table.Markdown()))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) stopPicking() {
	m.picking = false
	m.input.Reset()
	m.input.Placeholder = askPlaceholder
}

// openDataset loads the typed path. The current dataset stays active unless it loads.
func (m Model) openDataset() (tea.Model, tea.Cmd) {
	path := strings.Trim(strings.TrimSpace(m.input.Value()), `"'`)
	if path == "" {
		return m, nil
	}
	m.stopPicking()
	m.addEntry(roleSystem, "Loading "+filepath.Base(path)+"...")
	return m, loadPreview(path, "", m.opts.PreviewRows)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if m.opts.Submitter == nil {
		m.addEntry(roleSystem, "No backend configured.")
		return m, nil
	}
	ch, err := m.opts.Submitter.Submit(m.ctx, session.Request{Prompt: text, DataPath: m.opts.DataPath, Sheet: m.opts.Sheet, History: m.history})
	if err != nil {
		m.addEntry(roleSystem, "Error: "+err.Error())
		return m, nil
	}
	m.busy = true
	m.pending = text
	m.input.Reset()
	m.input.Blur()
	m.addEntry(roleUser, text)
	return m, tea.Batch(m.spinner.Tick, waitForResult(text, ch))
}

func (m *Model) addEntry(r role, text string) {
	m.entries = append(m.entries, entry{role: r, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.conv.SetContent(m.renderConversation())
	m.conv.GotoBottom()
}

func (m Model) renderConversation() string {
	var b strings.Builder
	for _, e := range m.entries {
		switch e.role {
		case roleUser:
			b.WriteString("**You:** ")
		case roleAssistant:
			b.WriteString("**Assistant:** ")
		case roleSystem:
			b.WriteString("*System:* ")
		}
		b.WriteString(e.text)
		b.WriteString("\n\n")
	}
	md := b.String()
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}
