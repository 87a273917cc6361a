package dataset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindDatetime Kind = "datetime"
	KindText     Kind = "text"
	KindEmpty    Kind = "empty"
)

// ColumnProfile summarises one column of the sampled rows.
type ColumnProfile struct {
	Name     string
	Unit     string
	Kind     Kind
	NonEmpty int
	Missing  int
}

// Profile infers a kind for every column from the sampled rows.
// A column is numeric or datetime only if every non-empty value parses as such.
func (t *Table) Profile() []ColumnProfile {
	if t == nil {
		return nil
	}
	out := make([]ColumnProfile, len(t.Columns))
	for i, name := range t.Columns {
		clean, unit := splitUnits(name)
		p := ColumnProfile{Name: clean, Unit: unit}
		numeric, datetime := true, true
		for _, row := range t.Rows {
			v := ""
			if i < len(row) {
				v = strings.TrimSpace(row[i])
			}
			if isMissing(v) {
				p.Missing++
				continue
			}
			p.NonEmpty++
			if numeric {
				_, numeric = parseNumeric(v)
			}
			if datetime {
				_, datetime = parseTimeMaybe(v)
			}
		}
		switch {
		case p.NonEmpty == 0:
			p.Kind = KindEmpty
		case numeric:
			p.Kind = KindNumeric
		case datetime:
			p.Kind = KindDatetime
		default:
			p.Kind = KindText
		}
		out[i] = p
	}
	return out
}

// ProfileMarkdown renders Profile as a small pipe table.
func (t *Table) ProfileMarkdown() string {
	prof := t.Profile()
	if len(prof) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("| column | unit | kind | non-empty | missing |\n| --- | --- | --- | --- | --- |\n")
	for _, p := range prof {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d |\n", escapeCell(safeName(p.Name)), escapeCell(p.Unit), p.Kind, p.NonEmpty, p.Missing)
	}
	return b.String()
}

func isMissing(v string) bool {
	switch strings.ToUpper(v) {
	case "", "NA", "N/A", "NULL", "NAN":
		return true
	}
	return false
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func parseTimeMaybe(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumeric accepts percentages, thousands separators and comma decimals ("1.234,5").
func parseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	raw = strings.ReplaceAll(raw, "\u00a0", "")
	raw = strings.ReplaceAll(raw, " ", "")
	if raw == "" {
		return 0, false
	}
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0 && cpos > dpos:
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	case cpos >= 0 && dpos >= 0:
		raw = strings.ReplaceAll(raw, ",", "")
	case cpos >= 0:
		raw = strings.Replace(raw, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2},
}

// splitUnits separates a trailing "(unit)" or "[unit]" from a column name.
func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}
