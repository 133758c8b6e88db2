// Package tools defines the tool set exposed to the response agent:
// reply and calendar actions plus keyed access to semantic memory.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/memory"
)

// Mailer sends outbound replies.
type Mailer interface {
	SendReply(ctx context.Context, to, subject, body string) error
}

// Calendar answers availability queries and books meetings.
type Calendar interface {
	// Availability returns free slots for the given day.
	Availability(ctx context.Context, day string) ([]string, error)

	// Schedule books a meeting. A refused booking (conflict) returns an
	// error; the agent sees it as an observation.
	Schedule(ctx context.Context, attendees []string, subject string, durationMinutes int, day string) (string, error)
}

// Deps carries the collaborators mail tools need. Memory is the
// namespace-scoped handle for the current workflow run.
type Deps struct {
	Memory   *memory.Scope
	Mailer   Mailer
	Calendar Calendar
}

// NewMailRegistry builds the closed tool set for one workflow run.
func NewMailRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.MustRegister(
		newSearchMemoryTool(deps.Memory),
		newWriteMemoryTool(deps.Memory),
		newCheckCalendarTool(deps.Calendar),
		newProposeMeetingTool(deps.Calendar),
		newSendReplyTool(deps.Mailer),
	)
	return r
}

// --- send_reply ---

type sendReplyInput struct {
	core.BaseInput
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func newSendReplyTool(mailer Mailer) core.Tool {
	return &core.FuncTool{
		Def: core.ToolDefinition{
			ToolName: "send_reply",
			ToolDescription: "Send the drafted reply to the email's sender. This is the terminal " +
				"action: once the reply is sent the run is complete.",
			RequiresThought: true,
			Terminal:        true,
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"to":      StringProperty("Recipient email address"),
				"subject": StringProperty("Reply subject line"),
				"body":    StringProperty("Full reply body"),
			}, true, "to", "subject", "body"),
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input sendReplyInput
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return nil, fmt.Errorf("decode send_reply input: %w", err)
			}
			if input.To == "" || input.Body == "" {
				return &core.ToolResult{Success: false, Error: "send_reply requires to and body"}, nil
			}
			if err := mailer.SendReply(ctx, input.To, input.Subject, input.Body); err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &core.ToolResult{
				Success: true,
				Data:    fmt.Sprintf("Reply sent to %s with subject %q", input.To, input.Subject),
			}, nil
		},
	}
}

// --- check_calendar ---

type checkCalendarInput struct {
	core.BaseInput
	Day string `json:"day"`
}

func newCheckCalendarTool(calendar Calendar) core.Tool {
	return &core.FuncTool{
		Def: core.ToolDefinition{
			ToolName:        "check_calendar",
			ToolDescription: "Check the calendar for available time slots on a given day.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"day": StringProperty("The day to check, e.g. 'Tuesday' or '2026-08-25'"),
			}, false, "day"),
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input checkCalendarInput
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return nil, fmt.Errorf("decode check_calendar input: %w", err)
			}
			slots, err := calendar.Availability(ctx, input.Day)
			if err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &core.ToolResult{
				Success: true,
				Data:    fmt.Sprintf("Available times on %s: %s", input.Day, strings.Join(slots, ", ")),
			}, nil
		},
	}
}

// --- propose_meeting ---

type proposeMeetingInput struct {
	core.BaseInput
	Attendees       []string `json:"attendees"`
	Subject         string   `json:"subject"`
	DurationMinutes int      `json:"duration_minutes"`
	PreferredDay    string   `json:"preferred_day"`
}

func newProposeMeetingTool(calendar Calendar) core.Tool {
	return &core.FuncTool{
		Def: core.ToolDefinition{
			ToolName:        "propose_meeting",
			ToolDescription: "Book a meeting with the given attendees on the preferred day.",
			RequiresThought: true,
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"attendees":        ArrayProperty("Attendee email addresses", StringProperty("email address")),
				"subject":          StringProperty("Meeting subject"),
				"duration_minutes": IntegerProperty("Meeting length in minutes"),
				"preferred_day":    StringProperty("Preferred day for the meeting"),
			}, true, "attendees", "subject", "duration_minutes", "preferred_day"),
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input proposeMeetingInput
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return nil, fmt.Errorf("decode propose_meeting input: %w", err)
			}
			slot, err := calendar.Schedule(ctx, input.Attendees, input.Subject, input.DurationMinutes, input.PreferredDay)
			if err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &core.ToolResult{
				Success: true,
				Data: fmt.Sprintf("Meeting %q scheduled for %s at %s with %d attendees",
					input.Subject, input.PreferredDay, slot, len(input.Attendees)),
			}, nil
		},
	}
}

// --- search_memory ---

type searchMemoryInput struct {
	core.BaseInput
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func newSearchMemoryTool(scope *memory.Scope) core.Tool {
	return &core.FuncTool{
		Def: core.ToolDefinition{
			ToolName:        "search_memory",
			ToolDescription: "Search stored facts and preferences about people and past conversations.",
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"query": StringProperty("What to look for"),
				"limit": IntegerProperty("Maximum results (default 5)"),
			}, false, "query"),
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input searchMemoryInput
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return nil, fmt.Errorf("decode search_memory input: %w", err)
			}
			limit := input.Limit
			if limit <= 0 {
				limit = 5
			}
			facts, err := scope.SimilarFacts(ctx, input.Query, limit)
			if err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}
			if len(facts) == 0 {
				return &core.ToolResult{Success: true, Data: "No stored facts matched."}, nil
			}
			var lines []string
			for _, fact := range facts {
				lines = append(lines, fmt.Sprintf("%s: %s", fact.Key, fact.Value))
			}
			return &core.ToolResult{Success: true, Data: strings.Join(lines, "\n")}, nil
		},
	}
}

// --- write_memory ---

type writeMemoryInput struct {
	core.BaseInput
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

func newWriteMemoryTool(scope *memory.Scope) core.Tool {
	return &core.FuncTool{
		Def: core.ToolDefinition{
			ToolName:        "write_memory",
			ToolDescription: "Store a fact or preference worth remembering for future emails.",
			RequiresThought: true,
			InputSchema: BuildSchemaWithThought(map[string]interface{}{
				"key":    StringProperty("Short subject of the fact, e.g. 'jim@company.com role'"),
				"value":  StringProperty("The fact itself"),
				"source": StringProperty("Where the fact came from (thread ID or 'user')"),
			}, true, "key", "value"),
		},
		Handler: func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input writeMemoryInput
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return nil, fmt.Errorf("decode write_memory input: %w", err)
			}
			if input.Key == "" || input.Value == "" {
				return &core.ToolResult{Success: false, Error: "write_memory requires key and value"}, nil
			}
			err := scope.Put(ctx, "fact_"+input.Key, memory.FactRecord(memory.SemanticFact{
				Key:    input.Key,
				Value:  input.Value,
				Source: input.Source,
			}))
			if err != nil {
				return &core.ToolResult{Success: false, Error: err.Error()}, nil
			}
			return &core.ToolResult{Success: true, Data: fmt.Sprintf("Stored fact %q", input.Key)}, nil
		},
	}
}
