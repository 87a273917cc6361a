package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/KaramelBytes/statloom/internal/utils"
)

const (
	panelLines     = 8
	maxPanelTokens = 2000
)

// layout splits the screen: header, conversation, code and console panels, artifact, input, help.
func (m *Model) layout() {
	w := max(40, m.width-2)
	m.input.Width = w - 4
	fixed := 1 + 2*(panelLines+2) + 1 + 1 + 1
	m.conv.Width = w
	m.conv.Height = max(5, m.height-fixed)
	// Panel border and padding take four columns; the label takes one line.
	m.code.Width = max(16, w-8)
	m.code.Height = panelLines - 1
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.conv.View())
	b.WriteString("\n")

	panelWidth := max(20, m.conv.Width-4)
	b.WriteString(m.panel(m.codeLabel(), m.codeBody(), panelWidth))
	b.WriteString("\n")
	b.WriteString(m.panel("Console", m.console(), panelWidth))
	b.WriteString("\n")
	b.WriteString(m.artifactLine())
	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spinner.View() + " Thinking about: " + m.pending)
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Dim.Render("enter send · ctrl+f open file · ctrl+o reload data · pgup/pgdown scroll · shift+↑/↓ scroll code · esc quit"))
	return b.String()
}

func (m Model) header() string {
	title := m.styles.Title.Render("statloom")
	if m.preview == nil {
		return title + m.styles.Dim.Render("  no data loaded")
	}
	return title + "  " + m.styles.Dim.Render(m.preview.Summary())
}

func (m Model) panel(label, body string, width int) string {
	if strings.TrimSpace(body) == "" {
		body = m.styles.Dim.Render("(empty)")
	}
	content := m.styles.Label.Render(label) + "\n" + body
	return m.styles.Panel.Width(width).Render(content)
}

func (m Model) codeLabel() string {
	if m.code.TotalLineCount() > m.code.Height {
		return "R code " + m.styles.Dim.Render(strconv.Itoa(int(m.code.ScrollPercent()*100))+"%")
	}
	return "R code"
}

func (m Model) codeBody() string {
	if strings.TrimSpace(m.last.Code) == "" {
		return ""
	}
	return m.code.View()
}

// console shows stdout then stderr. Stderr is only drawn as an error when the
// script failed; after a successful run it holds R messages and warnings.
func (m Model) console() string {
	var parts []string
	if s := strings.TrimRight(m.last.Stdout, "\n"); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimRight(m.last.Stderr, "\n"); s != "" {
		parts = append(parts, m.stderrStyle().Render(s))
	}
	return clip(strings.Join(parts, "\n"), panelLines)
}

func (m Model) stderrStyle() lipgloss.Style {
	if m.last.ExecErr != nil {
		return m.styles.Error
	}
	return m.styles.Warn
}

func (m Model) artifactLine() string {
	if m.last.ArtifactPath == "" {
		return m.styles.Dim.Render("Plot: none")
	}
	return m.styles.Success.Render("Plot saved: ") + m.last.ArtifactPath
}

// clip keeps the last n lines of s, capped in size.
func clip(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		hidden := len(lines) - n + 1
		lines = append([]string{lipgloss.NewStyle().Faint(true).Render("… " + strconv.Itoa(hidden) + " more lines")}, lines[len(lines)-n+1:]...)
	}
	return utils.TailToTokenLimit(strings.Join(lines, "\n"), maxPanelTokens)
}
