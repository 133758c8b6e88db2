package agent

import (
	"fmt"
	"strings"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/memory"
)

// RuleInstructions is the rule slot holding the response agent's working
// instructions. The prompt optimizer writes new versions under this name.
const RuleInstructions = "agent_instructions"

// DefaultInstructions is seeded as version 1 on first use.
const DefaultInstructions = "Use these tools when appropriate to help manage John's tasks efficiently."

const systemPromptTemplate = `You are %s's executive assistant. You handle email on %s's behalf.

%s's background: %s

You have tools for searching and writing long-term memory, checking the calendar, proposing meetings, and sending replies. When you send a reply the task is finished.

Tools that change state require a "thought" field explaining what you verified and why the action is right.

Instructions: %s`

const factsHeader = "Relevant things you know about the people involved:"

func buildSystemPrompt(profile core.Profile, instructions string, facts []memory.SemanticFact) string {
	prompt := fmt.Sprintf(systemPromptTemplate,
		profile.FullName, profile.Name,
		profile.Name, profile.Background,
		instructions,
	)
	if block := formatFacts(facts); block != "" {
		prompt += "\n\n" + block
	}
	return prompt
}

// formatFacts renders retrieved semantic facts as a context block. Empty
// when nothing relevant was found.
func formatFacts(facts []memory.SemanticFact) string {
	if len(facts) == 0 {
		return ""
	}
	lines := []string{factsHeader}
	for _, fact := range facts {
		lines = append(lines, fmt.Sprintf("- %s: %s", fact.Key, fact.Value))
	}
	return strings.Join(lines, "\n")
}

// taskPrompt frames the classified email as the agent's task.
func taskPrompt(email core.Email) string {
	return fmt.Sprintf(`Respond to the email below.

From: %s
To: %s
Subject: %s

%s`,
		email.Sender,
		strings.Join(email.Recipients, ", "),
		email.Subject,
		email.Body,
	)
}
