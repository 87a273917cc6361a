// Package prompt assembles the chat messages sent for one analysis request.
package prompt

import (
	"strings"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/KaramelBytes/statloom/internal/utils"
)

const systemTemplate = `You are a data analysis assistant. Your primary goal is to help users analyze data by providing R code.

**CRITICAL: Your response MUST be a single, valid JSON object and nothing else.**

The JSON object must have the following exact structure:
{
  "reasoning_content": "Your detailed thought process on how to handle the user's request.",
  "content": "Your friendly, conversational response to the user.",
  "r_code": "A string containing the complete R code to execute. If no code is needed, this MUST be an empty string."
}

- The user's data sample is below:
{{SAMPLE}}
- **R SCRIPT REQUIREMENTS**:
  - Your script will receive TWO command-line arguments: ` + "`args[1]`" + ` is the input CSV path, and ` + "`args[2]`" + ` is the **output path for saving a plot**.
  - The data is already loaded as a data frame named ` + "`data`" + ` before your code runs.
  - If you generate a plot, you MUST save it to the path specified in ` + "`args[2]`" + `. Example: ` + "`png(args[2])`" + `.`

// SystemPrompt returns the instruction message with the dataset sample embedded.
func SystemPrompt(sample string) string {
	return strings.Replace(systemTemplate, "{{SAMPLE}}", strings.TrimRight(sample, "\n"), 1)
}

// Build returns system prompt, history in order, then the new user message.
// history is copied; the returned slice never shares its backing array.
func Build(sample string, history []ai.Message, user string) []ai.Message {
	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: SystemPrompt(sample)})
	msgs = append(msgs, history...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: user})
	return msgs
}

// EstimateTokens returns rough token counts for the system prompt, history and user turn.
func EstimateTokens(msgs []ai.Message) map[string]int {
	sections := map[string]string{}
	var hist strings.Builder
	for i, m := range msgs {
		switch {
		case i == 0 && m.Role == ai.RoleSystem:
			sections["system"] = m.Content
		case i == len(msgs)-1 && m.Role == ai.RoleUser:
			sections["user"] = m.Content
		default:
			hist.WriteString(m.Content)
		}
	}
	sections["history"] = hist.String()
	return utils.TokenBreakdown(sections)
}
