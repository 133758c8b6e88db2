package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/memory"
	"github.com/mailmind/mailmind/memory/embedder/mock"
	"github.com/mailmind/mailmind/memory/rules"
	chromemstore "github.com/mailmind/mailmind/memory/store/chromem"
	"github.com/mailmind/mailmind/tools"
)

func newTestDeps(t *testing.T) (tools.Deps, *tools.RecordingMailer) {
	t.Helper()

	store, err := chromemstore.New(mock.New(384))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ruleStore, err := rules.Open(filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ruleStore.Close() })

	mailer := tools.NewRecordingMailer()
	return tools.Deps{
		Memory:   memory.NewScope("alice", store, ruleStore),
		Mailer:   mailer,
		Calendar: &tools.StubCalendar{},
	}, mailer
}

func execTool(t *testing.T, r *tools.Registry, name string, input map[string]interface{}) *core.ToolResult {
	t.Helper()
	tool, ok := r.Get(name)
	require.True(t, ok, "tool %s not registered", name)

	raw, err := json.Marshal(input)
	require.NoError(t, err)

	result, err := tool.Execute(context.Background(), &core.ToolParams{
		Namespace: "alice",
		Input:     raw,
		RequestID: "run-1",
	})
	require.NoError(t, err)
	return result
}

func TestMailRegistry_RegistersClosedToolSet(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := tools.NewMailRegistry(deps)

	defs := r.Definitions()
	var names []string
	for _, def := range defs {
		names = append(names, def.ToolName)
	}
	assert.ElementsMatch(t, []string{
		"search_memory", "write_memory", "check_calendar", "propose_meeting", "send_reply",
	}, names)

	sendReply, ok := r.Get("send_reply")
	require.True(t, ok)
	assert.True(t, sendReply.Definition().Terminal)
	assert.True(t, sendReply.Definition().RequiresThought)
}

func TestSendReply_RecordsOutboundMail(t *testing.T) {
	deps, mailer := newTestDeps(t)
	r := tools.NewMailRegistry(deps)

	result := execTool(t, r, "send_reply", map[string]interface{}{
		"thought": "Drafted a reply confirming the Tuesday slot.",
		"to":      "jim@company.com",
		"subject": "Re: Schedule sync",
		"body":    "Tuesday at 2pm works for me.",
	})
	require.True(t, result.Success)

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "jim@company.com", sent[0].To)
}

func TestSendReply_RejectsMissingFields(t *testing.T) {
	deps, mailer := newTestDeps(t)
	r := tools.NewMailRegistry(deps)

	result := execTool(t, r, "send_reply", map[string]interface{}{
		"thought": "try sending",
		"subject": "Re: hi",
	})
	assert.False(t, result.Success)
	assert.Empty(t, mailer.Sent())
}

func TestWriteThenSearchMemory(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := tools.NewMailRegistry(deps)

	result := execTool(t, r, "write_memory", map[string]interface{}{
		"thought": "Jim mentioned his role; worth remembering.",
		"key":     "jim@company.com role",
		"value":   "team lead for the platform team",
		"source":  "thread-42",
	})
	require.True(t, result.Success)

	result = execTool(t, r, "search_memory", map[string]interface{}{
		"query": "who is jim",
	})
	require.True(t, result.Success)
	assert.Contains(t, result.Data.(string), "team lead")
}

func TestCheckCalendar_ReturnsSlots(t *testing.T) {
	deps, _ := newTestDeps(t)
	r := tools.NewMailRegistry(deps)

	result := execTool(t, r, "check_calendar", map[string]interface{}{
		"day": "Tuesday",
	})
	require.True(t, result.Success)
	assert.Contains(t, result.Data.(string), "9:00 AM")
}

func TestProposeMeeting_ConflictIsRefusalNotError(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Calendar = conflictCalendar{}
	r := tools.NewMailRegistry(deps)

	result := execTool(t, r, "propose_meeting", map[string]interface{}{
		"thought":          "Booking the requested sync.",
		"attendees":        []string{"jim@company.com"},
		"subject":          "Sync",
		"duration_minutes": 30,
		"preferred_day":    "Tuesday",
	})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "conflict")
}

// conflictCalendar refuses every booking.
type conflictCalendar struct{}

func (conflictCalendar) Availability(ctx context.Context, day string) ([]string, error) {
	return nil, nil
}

func (conflictCalendar) Schedule(ctx context.Context, attendees []string, subject string, durationMinutes int, day string) (string, error) {
	return "", errors.New("calendar conflict on Tuesday")
}
