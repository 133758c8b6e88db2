package triage

import (
	"fmt"
	"strings"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/memory"
)

// Rule slot names for the three triage categories. The prompt optimizer
// writes new versions under these names; the router always reads the
// latest.
const (
	RuleIgnore  = "triage_ignore"
	RuleNotify  = "triage_notify"
	RuleRespond = "triage_respond"
)

// Default rule texts, seeded as version 1 on first use.
const (
	DefaultIgnoreRule  = "Marketing newsletters, spam emails, mass company announcements"
	DefaultNotifyRule  = "Team member out sick, build system notifications, project status updates"
	DefaultRespondRule = "Direct questions from team members, meeting requests, critical bug reports"
)

const systemPromptTemplate = `You are %s's executive assistant. You triage %s's incoming email.

%s's background: %s

Classify each email into exactly one category:
- ignore: %s
- notify: %s
- respond: %s

%s

Respond with a JSON object:
{"reasoning": "<step-by-step reasoning behind the classification>", "classification": "<ignore|notify|respond>"}`

const userPromptTemplate = `Please determine how to handle the below email thread:

From: %s
To: %s
Subject: %s

%s`

func buildSystemPrompt(profile core.Profile, ignore, notify, respond string, examples []memory.EpisodicExample) string {
	return fmt.Sprintf(systemPromptTemplate,
		profile.FullName, profile.Name,
		profile.Name, profile.Background,
		ignore, notify, respond,
		formatFewShotExamples(examples),
	)
}

func buildUserPrompt(email core.Email) string {
	return fmt.Sprintf(userPromptTemplate,
		email.Sender,
		strings.Join(email.Recipients, ", "),
		email.Subject,
		email.Body,
	)
}

// formatFewShotExamples renders retrieved episodic examples as a few-shot
// block for the decision prompt.
func formatFewShotExamples(examples []memory.EpisodicExample) string {
	if len(examples) == 0 {
		return "There are no previous examples yet."
	}

	parts := []string{"Here are some previous examples:"}
	for _, eg := range examples {
		parts = append(parts, fmt.Sprintf("%s\n> Triage Result: %s", eg.Situation, eg.Action))
	}
	return strings.Join(parts, "\n\n------------\n\n")
}

// situationSummary renders an email as the situation text stored in and
// matched against episodic memory. The body is capped so one long thread
// cannot dominate the embedding.
func situationSummary(email core.Email) string {
	body := email.Body
	if len(body) > 400 {
		body = body[:400]
	}
	return fmt.Sprintf("Email Subject: %s\nEmail From: %s\nEmail To: %s\nEmail Content:\n%s",
		email.Subject, email.Sender, strings.Join(email.Recipients, ", "), body)
}
