// Package reply turns a raw model message into reasoning, reply text and R code.
package reply

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Outcome names how a reply was interpreted.
type Outcome int

const (
	// Structured means the body was a JSON object with string fields.
	Structured Outcome = iota
	// Fallback means the body was used verbatim as reply text.
	Fallback
)

func (o Outcome) String() string {
	switch o {
	case Structured:
		return "structured"
	case Fallback:
		return "fallback"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Reply is the interpreted model message.
type Reply struct {
	Reasoning string
	Text      string
	Code      string
	Outcome   Outcome
	// Problem explains why a Fallback happened; empty for Structured.
	Problem string
}

const replySchema = `{
  "type": "object",
  "properties": {
    "reasoning_content": {"type": "string"},
    "content": {"type": "string"},
    "r_code": {"type": "string"}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(replySchema)

type structuredReply struct {
	ReasoningContent string `json:"reasoning_content"`
	Content          string `json:"content"`
	RCode            string `json:"r_code"`
}

// Interpret parses raw as the structured JSON reply. Anything else yields a Fallback
// whose Text is raw, whose Reasoning is envelopeReasoning and whose Code is the first
// ```r fenced block.
func Interpret(raw, envelopeReasoning string) Reply {
	s, err := decodeStructured(raw)
	if err == nil {
		return Reply{Reasoning: s.ReasoningContent, Text: s.Content, Code: s.RCode, Outcome: Structured}
	}
	return Reply{
		Reasoning: envelopeReasoning,
		Text:      raw,
		Code:      ExtractFencedCode(raw, "r", "R"),
		Outcome:   Fallback,
		Problem:   err.Error(),
	}
}

func decodeStructured(raw string) (*structuredReply, error) {
	body := strings.TrimSpace(raw)
	if body == "" || !json.Valid([]byte(body)) {
		return nil, fmt.Errorf("reply is not valid JSON")
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewStringLoader(body))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	var out structuredReply
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &out, nil
}

var anyFence = regexp.MustCompile("(?s)```[A-Za-z0-9_+.-]*[ \t]*\r?\n(.*?)\r?\n[ \t]*```")

// ExtractFencedCode returns the trimmed body of the first fenced block tagged with one of
// langs (exact, case-sensitive). With no langs any tag, or none, matches. No match returns "".
func ExtractFencedCode(text string, langs ...string) string {
	re := anyFence
	if len(langs) > 0 {
		quoted := make([]string, len(langs))
		for i, l := range langs {
			quoted[i] = regexp.QuoteMeta(l)
		}
		re = regexp.MustCompile("(?s)```(?:" + strings.Join(quoted, "|") + ")[ \t]*\r?\n(.*?)\r?\n[ \t]*```")
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
