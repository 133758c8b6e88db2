package workflow_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailmind/mailmind/agent"
	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/llm"
	"github.com/mailmind/mailmind/memory/embedder/mock"
	"github.com/mailmind/mailmind/memory/rules"
	chromemstore "github.com/mailmind/mailmind/memory/store/chromem"
	"github.com/mailmind/mailmind/tools"
	"github.com/mailmind/mailmind/triage"
	"github.com/mailmind/mailmind/workflow"
)

// scriptedClient returns canned responses in order and records requests.
// When the script runs out it keeps returning the last response.
type scriptedClient struct {
	responses []*llm.Response
	requests  []*llm.Request
}

func (c *scriptedClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return &llm.Response{Text: "{}", Stop: llm.StopEnd}, nil
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

func textResp(s string) *llm.Response {
	return &llm.Response{Text: s, Stop: llm.StopEnd}
}

func toolCallResp(t *testing.T, id, name string, input map[string]interface{}) *llm.Response {
	t.Helper()
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return &llm.Response{
		ToolCalls: []core.ToolCall{{ID: id, Name: name, Input: raw}},
		Stop:      llm.StopToolUse,
	}
}

// harness bundles everything a workflow test needs. The checkpoint store
// is shared so a second controller can resume the first one's runs.
type harness struct {
	checkpoints *workflow.CheckpointStore
	mailer      *tools.RecordingMailer
	cfg         workflow.Config
}

func newHarness(t *testing.T, client llm.Client, agentOpts ...agent.Option) *harness {
	t.Helper()

	store, err := chromemstore.New(mock.New(384))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ruleStore, err := rules.Open(filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ruleStore.Close() })

	checkpoints, err := workflow.OpenCheckpoints(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { checkpoints.Close() })

	mailer := tools.NewRecordingMailer()
	return &harness{
		checkpoints: checkpoints,
		mailer:      mailer,
		cfg: workflow.Config{
			Router:      triage.NewRouter(client),
			Agent:       agent.New(client, agentOpts...),
			Store:       store,
			Rules:       ruleStore,
			Checkpoints: checkpoints,
			Mailer:      mailer,
			Calendar:    &tools.StubCalendar{},
		},
	}
}

func (h *harness) controller(opts ...workflow.Option) *workflow.Controller {
	return workflow.New(h.cfg, opts...)
}

var newsletterEmail = core.Email{
	Sender:     "news@letters.com",
	Recipients: []string{"john@company.com"},
	Subject:    "Weekly digest",
	Body:       "Top stories this week...",
}

var meetingEmail = core.Email{
	Sender:     "jim@company.com",
	Recipients: []string{"john@company.com"},
	Subject:    "Schedule sync",
	Body:       "Can we meet Tuesday?",
	ThreadID:   "thread-1",
}

func TestHandleEmail_IgnoreEndsWithoutAgent(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "marketing newsletter", "classification": "ignore"}`),
	}}
	h := newHarness(t, client)

	state, err := h.controller().HandleEmail(context.Background(), "alice", newsletterEmail)
	require.NoError(t, err)

	assert.True(t, state.Done())
	assert.Equal(t, core.ClassifyIgnore, state.Classification)
	assert.False(t, state.ReplySent)
	assert.Empty(t, state.Messages)

	// Exactly one model call: the agent never ran.
	assert.Len(t, client.requests, 1)

	loaded, ok, err := h.checkpoints.Load(context.Background(), state.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, workflow.NodeDone, loaded.Node)
}

func TestHandleEmail_NotifyCarriesRationale(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "build failure notice, John should see it", "classification": "notify"}`),
	}}
	h := newHarness(t, client)

	state, err := h.controller().HandleEmail(context.Background(), "alice", newsletterEmail)
	require.NoError(t, err)

	assert.Equal(t, core.ClassifyNotify, state.Classification)
	assert.Contains(t, state.FinalText, "John should see it")
	assert.False(t, state.ReplySent)
}

func TestHandleEmail_RespondRunsAgentToReply(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "direct meeting request", "classification": "respond"}`),
		toolCallResp(t, "c1", "check_calendar", map[string]interface{}{"day": "Tuesday"}),
		toolCallResp(t, "c2", "send_reply", map[string]interface{}{
			"thought": "The 9:00 AM slot is open, confirming it.",
			"to":      "jim@company.com",
			"subject": "Re: Schedule sync",
			"body":    "Tuesday at 9:00 AM works.",
		}),
	}}
	h := newHarness(t, client)

	var observed []workflow.Node
	controller := h.controller(workflow.WithObserver(func(s workflow.State) {
		observed = append(observed, s.Node)
	}))

	state, err := controller.HandleEmail(context.Background(), "alice", meetingEmail)
	require.NoError(t, err)

	assert.True(t, state.Done())
	assert.True(t, state.ReplySent)
	assert.Equal(t, core.ClassifyRespond, state.Classification)
	assert.Contains(t, state.FinalText, "Reply sent to jim@company.com")
	assert.NotEmpty(t, state.Messages)

	require.Len(t, h.mailer.Sent(), 1)
	assert.Equal(t, "jim@company.com", h.mailer.Sent()[0].To)

	// One snapshot per transition: triage, respond, done.
	assert.Equal(t, []workflow.Node{
		workflow.NodeTriage, workflow.NodeRespond, workflow.NodeDone,
	}, observed)
}

func TestHandleEmail_TriageFailureRecordsReason(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "a", "classification": "urgent"}`),
		textResp(`{"reasoning": "b", "classification": "maybe"}`),
	}}
	h := newHarness(t, client)

	state, err := h.controller().HandleEmail(context.Background(), "alice", meetingEmail)
	require.Error(t, err)

	var invalid *core.InvalidClassificationError
	assert.ErrorAs(t, err, &invalid)
	assert.True(t, state.Done())
	assert.Contains(t, state.FailureReason, "invalid classification")

	loaded, ok, err := h.checkpoints.Load(context.Background(), state.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, loaded.FailureReason, "invalid classification")
}

func TestResume_ContinuesAfterTurnBound(t *testing.T) {
	// The first attempt loops on calendar checks until the turn bound.
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "direct meeting request", "classification": "respond"}`),
		toolCallResp(t, "c1", "check_calendar", map[string]interface{}{"day": "Tuesday"}),
	}}
	h := newHarness(t, client, agent.WithMaxTurns(2))

	state, err := h.controller().HandleEmail(context.Background(), "alice", meetingEmail)
	require.Error(t, err)

	var bound *core.IterationBoundError
	require.ErrorAs(t, err, &bound)
	assert.Equal(t, workflow.NodeRespond, state.Node)
	assert.NotEmpty(t, state.FailureReason)
	assert.NotEmpty(t, state.Messages)

	// A second controller over the same checkpoints finishes the run.
	resumeClient := &scriptedClient{responses: []*llm.Response{
		toolCallResp(t, "c9", "send_reply", map[string]interface{}{
			"thought": "Availability already checked, replying now.",
			"to":      "jim@company.com",
			"subject": "Re: Schedule sync",
			"body":    "Tuesday works.",
		}),
	}}
	resumeCfg := h.cfg
	resumeCfg.Router = triage.NewRouter(resumeClient)
	resumeCfg.Agent = agent.New(resumeClient, agent.WithMaxTurns(2))

	resumed, err := workflow.New(resumeCfg).Resume(context.Background(), state.RunID)
	require.NoError(t, err)

	assert.True(t, resumed.Done())
	assert.True(t, resumed.ReplySent)
	assert.Empty(t, resumed.FailureReason)
	require.Len(t, h.mailer.Sent(), 1)

	// The resumed session carried the earlier calendar observations.
	require.NotEmpty(t, resumeClient.requests)
	assert.Greater(t, len(resumeClient.requests[0].Messages), 2)
}

func TestResume_FinishedRunReturnsAsIs(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "newsletter", "classification": "ignore"}`),
	}}
	h := newHarness(t, client)

	state, err := h.controller().HandleEmail(context.Background(), "alice", newsletterEmail)
	require.NoError(t, err)

	calls := len(client.requests)
	resumed, err := h.controller().Resume(context.Background(), state.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.RunID, resumed.RunID)
	assert.True(t, resumed.Done())
	assert.Len(t, client.requests, calls)
}

func TestCheckpoints_RecentListsNamespaceRuns(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "newsletter", "classification": "ignore"}`),
	}}
	h := newHarness(t, client)

	_, err := h.controller().HandleEmail(context.Background(), "alice", newsletterEmail)
	require.NoError(t, err)
	_, err = h.controller().HandleEmail(context.Background(), "bob", newsletterEmail)
	require.NoError(t, err)

	recent, err := h.checkpoints.Recent(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "alice", recent[0].Namespace)
}
