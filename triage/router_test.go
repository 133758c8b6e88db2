package triage_test

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailmind/mailmind/core"
	"github.com/mailmind/mailmind/llm"
	"github.com/mailmind/mailmind/memory"
	"github.com/mailmind/mailmind/memory/embedder/mock"
	"github.com/mailmind/mailmind/memory/rules"
	chromemstore "github.com/mailmind/mailmind/memory/store/chromem"
	"github.com/mailmind/mailmind/triage"
)

// scriptedClient returns canned responses in order and records requests.
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
	c.responses = c.responses[1:]
	return resp, nil
}

func textResp(s string) *llm.Response {
	return &llm.Response{Text: s, Stop: llm.StopEnd}
}

func newTestScope(t *testing.T) *memory.Scope {
	t.Helper()

	store, err := chromemstore.New(mock.New(384))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ruleStore, err := rules.Open(filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ruleStore.Close() })

	return memory.NewScope("alice", store, ruleStore)
}

var testEmail = core.Email{
	Sender:     "jim@company.com",
	Recipients: []string{"john@company.com"},
	Subject:    "Schedule sync",
	Body:       "Can we meet Tuesday?",
	ThreadID:   "thread-1",
}

func TestClassify_ValidOutput(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "Direct meeting request from a team member.", "classification": "respond"}`),
	}}
	router := triage.NewRouter(client)

	decision, err := router.Classify(context.Background(), newTestScope(t), testEmail)
	require.NoError(t, err)
	assert.Equal(t, core.ClassifyRespond, decision.Classification)
	assert.Contains(t, decision.Rationale, "meeting request")

	// The decision prompt embeds the seeded default rules.
	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].System, "meeting requests")
	assert.True(t, client.requests[0].JSONOnly)
}

func TestClassify_FencedJSONAccepted(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp("```json\n{\"reasoning\": \"spam\", \"classification\": \"ignore\"}\n```"),
	}}
	router := triage.NewRouter(client)

	decision, err := router.Classify(context.Background(), newTestScope(t), testEmail)
	require.NoError(t, err)
	assert.Equal(t, core.ClassifyIgnore, decision.Classification)
}

func TestClassify_RepromptsOnceThenSucceeds(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "hmm", "classification": "urgent"}`),
		textResp(`{"reasoning": "status update only", "classification": "notify"}`),
	}}
	router := triage.NewRouter(client)

	decision, err := router.Classify(context.Background(), newTestScope(t), testEmail)
	require.NoError(t, err)
	assert.Equal(t, core.ClassifyNotify, decision.Classification)
	require.Len(t, client.requests, 2)

	// The re-prompt carries the invalid answer plus a corrective turn.
	second := client.requests[1]
	require.Len(t, second.Messages, 3)
	assert.Equal(t, core.RoleAssistant, second.Messages[1].Role)
	assert.Contains(t, second.Messages[2].Text, "exactly one of")
}

func TestClassify_SecondInvalidSurfacesError(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "a", "classification": "urgent"}`),
		textResp(`{"reasoning": "b", "classification": "maybe"}`),
	}}
	router := triage.NewRouter(client)

	_, err := router.Classify(context.Background(), newTestScope(t), testEmail)
	require.Error(t, err)

	var invalid *core.InvalidClassificationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "maybe", invalid.Got)
	// Exactly one re-prompt: two calls total.
	assert.Len(t, client.requests, 2)
}

func TestClassify_FewShotExamplesInPrompt(t *testing.T) {
	scope := newTestScope(t)
	require.NoError(t, scope.RecordExample(context.Background(), memory.EpisodicExample{
		Situation: "Email Subject: Weekly digest\nEmail From: news@letters.com",
		Action:    "ignore",
	}))

	client := &scriptedClient{responses: []*llm.Response{
		textResp(`{"reasoning": "r", "classification": "respond"}`),
	}}
	router := triage.NewRouter(client)

	_, err := router.Classify(context.Background(), scope, testEmail)
	require.NoError(t, err)

	assert.Contains(t, client.requests[0].System, "Weekly digest")
	assert.Contains(t, client.requests[0].System, "> Triage Result: ignore")
}

// derivedClient computes its answer from the request content, so equal
// outputs across calls prove the composed prompt and memory state did
// not drift.
type derivedClient struct {
	requests []*llm.Request
}

func (c *derivedClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)

	h := fnv.New32a()
	h.Write([]byte(req.System))
	for _, msg := range req.Messages {
		h.Write([]byte(msg.Text))
	}
	classification := []string{"ignore", "notify", "respond"}[h.Sum32()%3]
	return &llm.Response{
		Text: fmt.Sprintf(`{"reasoning": "derived", "classification": %q}`, classification),
		Stop: llm.StopEnd,
	}, nil
}

func TestClassify_ReplayIsIdempotent(t *testing.T) {
	scope := newTestScope(t)
	require.NoError(t, scope.RecordExample(context.Background(), memory.EpisodicExample{
		Situation: "Email Subject: Standup moved\nEmail From: jim@company.com",
		Action:    "notify",
	}))

	client := &derivedClient{}
	router := triage.NewRouter(client)

	first, err := router.Classify(context.Background(), scope, testEmail)
	require.NoError(t, err)
	second, err := router.Classify(context.Background(), scope, testEmail)
	require.NoError(t, err)

	assert.Equal(t, first.Classification, second.Classification)

	// The replay saw byte-identical prompts: same seeded rules, same
	// retrieved examples, same email rendering.
	require.Len(t, client.requests, 2)
	assert.Equal(t, client.requests[0].System, client.requests[1].System)
	assert.Equal(t, client.requests[0].Messages, client.requests[1].Messages)
}

func TestRecordOutcome_StoresEpisodicExample(t *testing.T) {
	scope := newTestScope(t)
	router := triage.NewRouter(&scriptedClient{})

	err := router.RecordOutcome(context.Background(), scope, testEmail, &triage.Decision{
		Classification: core.ClassifyRespond,
		Rationale:      "meeting request",
	})
	require.NoError(t, err)

	examples, err := scope.SimilarExamples(context.Background(), "Schedule sync", 5)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "respond", examples[0].Action)
	assert.Contains(t, examples[0].Situation, "Schedule sync")
}
