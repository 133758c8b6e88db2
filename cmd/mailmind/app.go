package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mailmind/mailmind/agent"
	"github.com/mailmind/mailmind/config"
	"github.com/mailmind/mailmind/llm"
	"github.com/mailmind/mailmind/memory"
	"github.com/mailmind/mailmind/memory/embedder/mock"
	openaiembed "github.com/mailmind/mailmind/memory/embedder/openai"
	"github.com/mailmind/mailmind/memory/rules"
	chromemstore "github.com/mailmind/mailmind/memory/store/chromem"
	"github.com/mailmind/mailmind/optimizer"
	"github.com/mailmind/mailmind/tools"
	"github.com/mailmind/mailmind/triage"
	"github.com/mailmind/mailmind/workflow"
)

// app bundles the wired components shared by all commands.
type app struct {
	cfg         *config.Config
	client      llm.Client
	store       memory.Store
	rules       *rules.SQLiteStore
	checkpoints *workflow.CheckpointStore
	trainer     *optimizer.Optimizer
	mailer      *tools.RecordingMailer
}

// newApp loads configuration and opens every backing store.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := chromemstore.New(newEmbedder(cfg))
	if err != nil {
		return nil, err
	}

	ruleStore, err := rules.Open(filepath.Join(cfg.DataDir, "rules.db"))
	if err != nil {
		store.Close()
		return nil, err
	}

	checkpoints, err := workflow.OpenCheckpoints(filepath.Join(cfg.DataDir, "runs.db"))
	if err != nil {
		store.Close()
		ruleStore.Close()
		return nil, err
	}

	client := newClient(cfg)
	return &app{
		cfg:         cfg,
		client:      client,
		store:       store,
		rules:       ruleStore,
		checkpoints: checkpoints,
		trainer: optimizer.New(client, store, ruleStore,
			optimizer.WithInterval(cfg.OptimizerInterval),
			optimizer.WithBatchSize(cfg.OptimizerBatchSize),
			optimizer.WithQueueSize(cfg.OptimizerQueueSize),
		),
		mailer: tools.NewRecordingMailer(),
	}, nil
}

func (a *app) controller(opts ...workflow.Option) *workflow.Controller {
	return workflow.New(workflow.Config{
		Router:      triage.NewRouter(a.client),
		Agent:       agent.New(a.client, agent.WithMaxTurns(a.cfg.MaxTurns)),
		Store:       a.store,
		Rules:       a.rules,
		Checkpoints: a.checkpoints,
		Mailer:      a.mailer,
		Calendar:    &tools.StubCalendar{},
	}, opts...)
}

func (a *app) close() {
	a.checkpoints.Close()
	a.rules.Close()
	a.store.Close()
}

// newClient selects the provider backend and wraps it with retries.
func newClient(cfg *config.Config) llm.Client {
	var inner llm.Client
	switch cfg.Provider {
	case config.ProviderOpenAI:
		inner = llm.NewOpenAI(llm.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			ChatModel: cfg.Model,
		})
	default:
		anthropicClient := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
		inner = llm.NewAnthropic(&anthropicClient, cfg.Model)
	}
	return llm.NewRetrying(inner,
		llm.WithMaxRetries(uint64(cfg.MaxRetries)),
		llm.WithInitialInterval(500*time.Millisecond),
	)
}

// newEmbedder picks the memory embedder. Without an embedding model the
// deterministic local one keeps the assistant usable offline.
func newEmbedder(cfg *config.Config) memory.Embedder {
	if cfg.EmbeddingModel != "" && cfg.OpenAIAPIKey != "" {
		return openaiembed.New(openaiembed.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.EmbeddingModel,
		})
	}
	return mock.New(384)
}
