package dataset

import (
	"fmt"
	"strings"
)

// Markdown renders the table as a GitHub-style pipe table.
func (t *Table) Markdown() string {
	if t == nil || len(t.Columns) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow(&b, t.Columns)
	b.WriteString("|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(&b, normalizeWidth(row, len(t.Columns)))
	}
	return b.String()
}

// Summary is a one-line description used in status bars and logs.
func (t *Table) Summary() string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%s: %d columns, %d sampled rows", t.Name, len(t.Columns), len(t.Rows))
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
