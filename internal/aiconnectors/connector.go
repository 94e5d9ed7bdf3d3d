// Package aiconnectors builds langchaingo chat models for the supported
// providers and exposes them as single-call completers.
package aiconnectors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/gitlabassist/pkg/models"
)

// Provider represents an AI provider type
type Provider string

const (
	ProviderGroq   Provider = "groq"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
	ProviderOllama Provider = "ollama"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

const defaultOllamaURL = "http://localhost:11434"

var defaultModels = map[Provider]string{
	ProviderGroq:   "llama-3.3-70b-versatile",
	ProviderOpenAI: "gpt-4o-mini",
	ProviderGemini: "gemini-2.5-flash",
	ProviderClaude: "claude-3-5-sonnet-latest",
	ProviderOllama: "llama3",
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	return defaultModels[p]
}

// Options contains options for creating a connector
type Options struct {
	Provider    Provider
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	// JSONMode asks the provider for a JSON object reply where supported.
	JSONMode bool
}

// Connector represents a connection to an AI provider
type Connector struct {
	llm     llms.Model
	options Options
}

// New creates a connector for the configured provider.
func New(ctx context.Context, options Options) (*Connector, error) {
	if options.Model == "" {
		options.Model = DefaultModel(options.Provider)
	}

	log.Debug().
		Str("provider", string(options.Provider)).
		Str("model", options.Model).
		Float64("temperature", options.Temperature).
		Msg("Creating new connector")

	var (
		model llms.Model
		err   error
	)
	switch options.Provider {
	case ProviderGroq:
		if options.BaseURL == "" {
			options.BaseURL = GroqBaseURL
		}
		model, err = createOpenAIModel(options)
	case ProviderOpenAI:
		model, err = createOpenAIModel(options)
	case ProviderGemini:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(options.APIKey),
			googleai.WithDefaultModel(options.Model),
		)
	case ProviderClaude:
		model, err = anthropic.New(
			anthropic.WithToken(options.APIKey),
			anthropic.WithModel(options.Model),
		)
	case ProviderOllama:
		model, err = createOllamaModel(options)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", options.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", options.Provider, err)
	}
	return &Connector{llm: model, options: options}, nil
}

func createOpenAIModel(options Options) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(options.Model),
		openai.WithToken(options.APIKey),
	}
	if options.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(options.BaseURL))
	}
	return openai.New(opts...)
}

func createOllamaModel(options Options) (llms.Model, error) {
	if options.BaseURL == "" {
		options.BaseURL = defaultOllamaURL
	}
	opts := []ollama.Option{
		ollama.WithServerURL(options.BaseURL),
		ollama.WithModel(options.Model),
	}
	if options.JSONMode {
		opts = append(opts, ollama.WithFormat("json"))
	}
	return ollama.New(opts...)
}

// Complete sends one chat request and returns the text of the first choice.
func (c *Connector) Complete(ctx context.Context, system string, history []models.Turn, user string) (string, error) {
	resp, err := c.llm.GenerateContent(ctx, buildMessages(system, history, user), c.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("%s completion failed: %w", c.options.Provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func (c *Connector) callOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(c.options.Temperature)}
	if c.options.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.options.MaxTokens))
	}
	// Gemini ignores the constructor model unless it is set per call.
	if c.options.Provider == ProviderGemini {
		opts = append(opts, llms.WithModel(c.options.Model))
	}
	if c.options.JSONMode && c.options.Provider != ProviderOllama && c.options.Provider != ProviderClaude {
		opts = append(opts, llms.WithJSONMode())
	}
	return opts
}

// buildMessages maps the conversation onto chat messages. System turns in the
// history, such as a summary, are folded into the system message.
func buildMessages(system string, history []models.Turn, user string) []llms.MessageContent {
	var extra []string
	var turns []llms.MessageContent
	for _, t := range history {
		switch t.Role {
		case models.RoleSystem:
			extra = append(extra, t.Text)
		case models.RoleAssistant:
			turns = append(turns, llms.TextParts(llms.ChatMessageTypeAI, t.Text))
		default:
			turns = append(turns, llms.TextParts(llms.ChatMessageTypeHuman, t.Text))
		}
	}
	if len(extra) > 0 {
		system = system + "\n\n" + strings.Join(extra, "\n\n")
	}

	msgs := make([]llms.MessageContent, 0, len(turns)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	msgs = append(msgs, turns...)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, user))
	return msgs
}

// Provider returns the provider of this connector
func (c *Connector) Provider() Provider {
	return c.options.Provider
}

// Model returns the model name
func (c *Connector) Model() string {
	return c.options.Model
}

// Ping checks that the provider answers with the configured credentials.
// Ollama is checked by listing its models instead of generating text.
func Ping(ctx context.Context, options Options) error {
	if options.Provider == ProviderOllama {
		if options.Model == "" {
			options.Model = DefaultModel(ProviderOllama)
		}
		names, err := ListOllamaModels(ctx, options.BaseURL)
		if err != nil {
			return err
		}
		for _, name := range names {
			if name == options.Model || strings.TrimSuffix(name, ":latest") == options.Model {
				return nil
			}
		}
		return fmt.Errorf("model %q is not pulled on the Ollama server", options.Model)
	}

	options.MaxTokens = 10
	options.JSONMode = false
	c, err := New(ctx, options)
	if err != nil {
		return err
	}
	if _, err := c.Complete(ctx, "Reply with the word ok.", nil, "ping"); err != nil {
		log.Debug().Err(err).Str("provider", string(options.Provider)).Msg("provider ping failed")
		return err
	}
	return nil
}
