package memory_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailmind/mailmind/memory"
	"github.com/mailmind/mailmind/memory/embedder/mock"
	"github.com/mailmind/mailmind/memory/rules"
	chromemstore "github.com/mailmind/mailmind/memory/store/chromem"
)

func newScope(t *testing.T, namespace string) (*memory.Scope, memory.Store, memory.RuleStore) {
	t.Helper()

	store, err := chromemstore.New(mock.New(384))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ruleStore, err := rules.Open(filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ruleStore.Close() })

	return memory.NewScope(namespace, store, ruleStore), store, ruleStore
}

func TestScope_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	scope, _, _ := newScope(t, "alice")

	fact := memory.SemanticFact{Key: "jim@company.com role", Value: "team lead", Source: "thread-42"}
	require.NoError(t, scope.Put(ctx, "fact_jim", memory.FactRecord(fact)))

	rec, ok, err := scope.Get(ctx, "fact_jim")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, memory.KindSemantic, rec.Kind)
	assert.Equal(t, "team lead", rec.Fact.Value)
}

func TestScope_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()

	store, err := chromemstore.New(mock.New(384))
	require.NoError(t, err)
	defer store.Close()

	ruleStore, err := rules.Open(filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	defer ruleStore.Close()

	alice := memory.NewScope("alice", store, ruleStore)
	bob := memory.NewScope("bob", store, ruleStore)

	require.NoError(t, alice.Put(ctx, "fact_1", memory.FactRecord(memory.SemanticFact{
		Key: "preference", Value: "prefers morning meetings",
	})))

	// A write under alice must never appear under bob.
	_, ok, err := bob.Get(ctx, "fact_1")
	require.NoError(t, err)
	assert.False(t, ok)

	recs, err := bob.Search(ctx, "morning meetings", 5)
	require.NoError(t, err)
	assert.Empty(t, recs)

	// Rules are isolated too.
	_, err = alice.AppendRule(ctx, "triage_ignore", "ignore newsletters")
	require.NoError(t, err)

	_, ok, err = ruleStore.Latest(ctx, "bob", "triage_ignore")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScope_RecordAndSearchExamples(t *testing.T) {
	ctx := context.Background()
	scope, _, _ := newScope(t, "alice")

	require.NoError(t, scope.RecordExample(ctx, memory.EpisodicExample{
		Situation: "from=boss subject=\"Quarterly review\"",
		Action:    "respond",
	}))
	require.NoError(t, scope.RecordExample(ctx, memory.EpisodicExample{
		Situation: "from=newsletter subject=\"Weekly digest\"",
		Action:    "ignore",
	}))

	examples, err := scope.SimilarExamples(ctx, "review meeting", 5)
	require.NoError(t, err)
	// Mock embeddings have no real similarity, but both stored examples
	// must come back under a generous limit.
	assert.Len(t, examples, 2)
}

func TestScope_RuleSeedsDefaultOnFirstRead(t *testing.T) {
	ctx := context.Background()
	scope, _, ruleStore := newScope(t, "alice")

	rule, err := scope.Rule(ctx, "agent_instructions", "default instructions")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rule.Version)
	assert.Equal(t, "default instructions", rule.Text)

	// Second read returns the seeded version, not a fresh seed.
	again, err := scope.Rule(ctx, "agent_instructions", "something else")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Version)
	assert.Equal(t, "default instructions", again.Text)

	history, err := ruleStore.History(ctx, "alice", "agent_instructions")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecord_Validate(t *testing.T) {
	err := (memory.Record{Kind: memory.KindSemantic}).Validate()
	assert.Error(t, err)

	err = memory.FactRecord(memory.SemanticFact{Key: "k", Value: "v"}).Validate()
	assert.NoError(t, err)
}
