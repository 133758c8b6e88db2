package optimizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

const rewriteSystemPrompt = `You maintain the working rules of an email assistant. Given one rule and recent user feedback, decide whether the rule should change.

Keep the rule concise and in the same style. Only change what the feedback justifies. If the feedback does not concern this rule, return the current text unchanged.

Respond with a JSON object: {"text": "<the full rule text, revised or unchanged>"}`

const rewritePromptTemplate = `Rule under review: %s

Current text:
%s

Recent user feedback:
%s`

func buildRewritePrompt(name, current string, items []Feedback) string {
	var lines []string
	for _, fb := range items {
		lines = append(lines, fmt.Sprintf("- Email from %s (%q), assistant chose %s. Feedback: %s",
			fb.Email.Sender, fb.Email.Subject, fb.Classification, sanitize(fb.Comment)))
	}
	return fmt.Sprintf(rewritePromptTemplate, name, current, strings.Join(lines, "\n"))
}

// injectionPhrases are neutralized before feedback reaches the rewrite
// prompt. Feedback is user-controlled text embedded in a prompt, so
// override phrasing gets softened into ordinary language.
var injectionPhrases = []struct {
	phrase, replacement string
}{
	{"ignore all previous", "consider previous"},
	{"ignore previous", "consider previous"},
	{"disregard", "consider"},
}

// sanitize neutralizes instruction-override phrasing, case-insensitively,
// preserving the rest of the comment verbatim.
func sanitize(comment string) string {
	for _, p := range injectionPhrases {
		comment = replaceFold(comment, p.phrase, p.replacement)
	}
	return comment
}

// replaceFold is strings.ReplaceAll with ASCII case-insensitive matching.
func replaceFold(s, old, new string) string {
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)

	var b strings.Builder
	for {
		i := strings.Index(lower, oldLower)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(oldLower):]
	}
}

type rewriteOutput struct {
	Text string `json:"text"`
}

// parseRewrite extracts the revised text from the model's JSON output.
func parseRewrite(text string) (string, error) {
	payload := extractJSON(text)
	var out rewriteOutput
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return "", fmt.Errorf("unparseable rewrite output: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}

// extractJSON strips code fences and surrounding prose, keeping the
// outermost object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}
	return text
}
