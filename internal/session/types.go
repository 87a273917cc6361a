// Package session runs one analysis turn end to end and tracks the conversation.
package session

import (
	"encoding/json"

	"github.com/KaramelBytes/statloom/internal/ai"
)

// Turn is one message of the running conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is the conversation so far. Append returns a new value and never
// writes into the receiver's backing array.
type History []Turn

// Append records a completed exchange.
func (h History) Append(prompt, reply string) History {
	out := make(History, len(h), len(h)+2)
	copy(out, h)
	return append(out,
		Turn{Role: ai.RoleUser, Content: prompt},
		Turn{Role: ai.RoleAssistant, Content: reply},
	)
}

// Messages converts the history to chat messages.
func (h History) Messages() []ai.Message {
	out := make([]ai.Message, len(h))
	for i, t := range h {
		out[i] = ai.Message{Role: t.Role, Content: t.Content}
	}
	return out
}

// Request is one user turn.
type Request struct {
	Prompt   string
	DataPath string
	// Sheet names the XLSX worksheet to sample and snapshot; empty means the first.
	Sheet   string
	History History
}

// Result is the record returned for every turn. Either Error is set and the
// other analysis fields are empty, or the analysis fields are populated.
type Result struct {
	CallID       string `json:"call_id,omitempty"`
	Reasoning    string `json:"llm_reasoning"`
	Response     string `json:"llm_response"`
	Code         string `json:"r_code"`
	Stdout       string `json:"r_stdout"`
	Stderr       string `json:"r_stderr"`
	ArtifactPath string `json:"artifact_path"`
	Error        string `json:"error,omitempty"`
	// Outcome is "structured" or "fallback" depending on how the reply was parsed.
	Outcome string `json:"reply_outcome,omitempty"`

	// Err is the typed failure behind Error.
	Err error `json:"-"`
	// ExecErr is the typed failure behind an execution message in Stderr.
	ExecErr error `json:"-"`
}

// OK reports whether the turn produced a reply that may be appended to history.
func (r Result) OK() bool { return r.Error == "" }

// MarshalJSON writes {"call_id","error"} for failed turns. Otherwise every key is
// present and execution fields that were never produced are null.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			CallID string `json:"call_id,omitempty"`
			Error  string `json:"error"`
		}{r.CallID, r.Error})
	}
	return json.Marshal(struct {
		CallID       string  `json:"call_id,omitempty"`
		Reasoning    string  `json:"llm_reasoning"`
		Response     string  `json:"llm_response"`
		Code         string  `json:"r_code"`
		Stdout       *string `json:"r_stdout"`
		Stderr       *string `json:"r_stderr"`
		ArtifactPath *string `json:"artifact_path"`
		Outcome      string  `json:"reply_outcome,omitempty"`
	}{
		CallID:       r.CallID,
		Reasoning:    r.Reasoning,
		Response:     r.Response,
		Code:         r.Code,
		Stdout:       nullable(r.Stdout),
		Stderr:       nullable(r.Stderr),
		ArtifactPath: nullable(r.ArtifactPath),
		Outcome:      r.Outcome,
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func errorResult(callID string, err error) Result {
	return Result{CallID: callID, Error: err.Error(), Err: err}
}
