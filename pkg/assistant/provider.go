package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/MrCodeEU/facekiosk/pkg/config"
)

// ErrEmptyResponse is returned when the provider answers without text.
var ErrEmptyResponse = errors.New("empty response from language model")

// Provider sends one prompt to a hosted language model.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configures a provider.
type Options struct {
	URL         string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// OptionsFromConfig converts the assistant config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:         cfg.Assistant.APIURL,
		APIKey:      cfg.Assistant.APIKey,
		Model:       cfg.Assistant.Model,
		Timeout:     cfg.AssistantTimeout(),
		Temperature: cfg.Assistant.Temperature,
		MaxTokens:   cfg.Assistant.MaxTokens,
	}
}

// NewProvider builds the provider named in the config. It returns
// ErrNotConfigured when no API key is set.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	opts := OptionsFromConfig(cfg)
	if opts.APIKey == "" {
		return nil, ErrNotConfigured
	}
	switch cfg.Assistant.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, opts)
	case "", "openai":
		return NewOpenAIProvider(opts), nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Assistant.Provider)
	}
}

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client *openai.Client
	opts   Options
}

// NewOpenAIProvider creates a provider. opts.URL may be the full chat
// completions URL or the API base.
func NewOpenAIProvider(opts Options) *OpenAIProvider {
	client := openai.NewClient(
		option.WithAPIKey(opts.APIKey),
		option.WithBaseURL(baseURL(opts.URL)),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(opts.Timeout),
	)
	return &OpenAIProvider{client: &client, opts: opts}
}

func baseURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/"
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string {
	return p.opts.Model
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.opts.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(p.opts.Temperature),
		MaxTokens:   openai.Int(int64(p.opts.MaxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// GeminiProvider talks to the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	opts   Options
}

// NewGeminiProvider creates a provider. A non-empty opts.URL overrides the
// API base URL.
func NewGeminiProvider(ctx context.Context, opts Options) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.URL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.URL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client, opts: opts}, nil
}

// Name implements Provider.
func (p *GeminiProvider) Name() string {
	return p.opts.Model
}

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.opts.Temperature)),
		MaxOutputTokens: int32(p.opts.MaxTokens),
	}
	result, err := p.client.Models.GenerateContent(ctx, p.opts.Model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	content := result.Text()
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
