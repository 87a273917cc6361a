package prompt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/KaramelBytes/statloom/internal/ai"
)

const sample = "| a | b |\n| --- | --- |\n| 1 | 2 |\n"

func TestSystemPromptEmbedsSampleAndContract(t *testing.T) {
	got := SystemPrompt(sample)
	for _, want := range []string{
		"| a | b |\n| --- | --- |\n| 1 | 2 |\n- **R SCRIPT",
		`"reasoning_content"`, `"content"`, `"r_code"`,
		"`args[1]`", "`args[2]`", "MUST be a single, valid JSON object",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if strings.Contains(got, "{{SAMPLE}}") {
		t.Fatalf("placeholder not replaced")
	}
}

func TestBuildOrdersMessages(t *testing.T) {
	history := []ai.Message{
		{Role: ai.RoleUser, Content: "first"},
		{Role: ai.RoleAssistant, Content: "reply"},
	}
	got := Build(sample, history, "second")
	want := []ai.Message{
		{Role: ai.RoleSystem, Content: SystemPrompt(sample)},
		{Role: ai.RoleUser, Content: "first"},
		{Role: ai.RoleAssistant, Content: "reply"},
		{Role: ai.RoleUser, Content: "second"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Build mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildDoesNotAliasHistory(t *testing.T) {
	history := make([]ai.Message, 1, 8)
	history[0] = ai.Message{Role: ai.RoleUser, Content: "q"}
	got := Build(sample, history, "next")
	got[1].Content = "mutated"
	if history[0].Content != "q" {
		t.Fatalf("history was mutated through the built slice")
	}
	if extended := history[:2]; extended[1].Content != "" {
		t.Fatalf("Build wrote into history's spare capacity")
	}
}

func TestBuildEmptyHistory(t *testing.T) {
	got := Build(sample, nil, "hi")
	if len(got) != 2 || got[0].Role != ai.RoleSystem || got[1].Role != ai.RoleUser {
		t.Fatalf("unexpected messages: %+v", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	msgs := Build(sample, []ai.Message{{Role: ai.RoleUser, Content: strings.Repeat("x", 40)}}, strings.Repeat("y", 8))
	got := EstimateTokens(msgs)
	if got["history"] != 10 || got["user"] != 2 || got["system"] == 0 {
		t.Fatalf("unexpected estimate: %v", got)
	}
}
