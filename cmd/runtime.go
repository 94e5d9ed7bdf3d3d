package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/gitlabassist/internal/aiconnectors"
	"github.com/gitlabassist/internal/assistant"
	"github.com/gitlabassist/internal/config"
	"github.com/gitlabassist/internal/conversation"
	"github.com/gitlabassist/internal/dispatch"
	"github.com/gitlabassist/internal/gitlab"
	"github.com/gitlabassist/internal/intent"
	"github.com/gitlabassist/internal/logging"
	"github.com/gitlabassist/internal/report"
)

// runtime holds what sessions share. Each session gets its own dispatcher
// and memory.
type runtime struct {
	cfg        *config.Config
	backend    dispatch.Backend
	schema     *intent.Schema
	scanner    dispatch.SecretScanner
	translator *aiconnectors.Connector
	summarizer *aiconnectors.Connector
	store      conversation.Store
	closers    []func() error
}

// loadConfig reads, validates and applies the logging settings.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if c.Bool("verbose") {
		level = "debug"
	}
	logging.Init(level)
	return cfg, nil
}

// newModels builds the translation and summarization connectors. Both are
// nil when the rule classifier is configured.
func newModels(ctx context.Context, cfg *config.Config) (translator, summarizer *aiconnectors.Connector, err error) {
	if !cfg.UsesModel() {
		return nil, nil, nil
	}
	opts := aiconnectors.Options{
		Provider:    aiconnectors.Provider(cfg.AI.Provider),
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
	}
	summarizer, err = aiconnectors.New(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	opts.JSONMode = true
	translator, err = aiconnectors.New(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return translator, summarizer, nil
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	rt := &runtime{cfg: cfg}

	client, err := gitlab.New(cfg.Backend())
	if err != nil {
		return nil, err
	}
	rt.backend = client

	if rt.schema, err = intent.NewSchema(cfg.GitLab.DefaultBranch); err != nil {
		return nil, err
	}

	if cfg.Dispatch.ScanSecrets {
		scanner, err := dispatch.NewGitleaksScanner()
		if err != nil {
			return nil, fmt.Errorf("failed to load secret rules: %w", err)
		}
		rt.scanner = scanner
	}

	if rt.translator, rt.summarizer, err = newModels(ctx, cfg); err != nil {
		return nil, err
	}

	switch cfg.Memory.Store {
	case "postgres":
		store, err := conversation.OpenPostgresStore(ctx, cfg.Memory.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.store = store
		rt.closers = append(rt.closers, store.Close)
	default:
		rt.store = conversation.NewInMemoryStore()
	}

	log.Debug().
		Str("repository", cfg.GitLab.Repository).
		Str("provider", cfg.AI.Provider).
		Str("store", cfg.Memory.Store).
		Msg("runtime ready")
	return rt, nil
}

// classifier returns the model-backed translator, or the rule classifier
// when no model is configured.
func classifier(schema *intent.Schema, model *aiconnectors.Connector, tr *logging.TranscriptLogger) intent.Classifier {
	if model == nil {
		return intent.NewRuleClassifier(schema)
	}
	return intent.NewTranslator(model, schema,
		intent.WithModelName(model.Model()),
		intent.WithTranscript(tr),
	)
}

// newSession builds a session with its own dispatcher and memory. The
// stored conversation is not loaded.
func (rt *runtime) newSession(_ context.Context, id string, opts ...assistant.SessionOption) (*assistant.Session, error) {
	tr, err := logging.StartTranscript(rt.cfg.Log.Transcripts, id)
	if err != nil {
		return nil, err
	}

	memOpts := []conversation.MemoryOption{
		conversation.WithBudget(rt.cfg.Memory.Budget),
		conversation.WithKeepRecent(rt.cfg.Memory.KeepRecent),
	}
	if rt.summarizer != nil {
		memOpts = append(memOpts, conversation.WithSummarizer(conversation.NewLLMSummarizer(rt.summarizer)))
	}

	var dispatchOpts []dispatch.Option
	if rt.scanner != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithSecretScanner(rt.scanner))
	}
	dispatchOpts = append(dispatchOpts, dispatch.WithLogger(log.With().Str("session", id).Logger()))

	opts = append([]assistant.SessionOption{
		assistant.WithStore(rt.store),
		assistant.WithTranscript(tr),
	}, opts...)

	session, err := assistant.NewSession(id, assistant.Deps{
		Classifier: classifier(rt.schema, rt.translator, tr),
		Schema:     rt.schema,
		Dispatcher: dispatch.New(rt.backend, rt.cfg.Dispatch, dispatchOpts...),
		Memory:     conversation.NewMemory(memOpts...),
		Reporter:   &report.Reporter{},
	}, opts...)
	if err != nil {
		tr.Close()
		return nil, err
	}
	return session, nil
}

func (rt *runtime) Close() {
	for _, closeFn := range rt.closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("failed to close resource")
		}
	}
}
