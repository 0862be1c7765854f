package coach

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// OpenAICompatible is the provider name for self-hosted servers that speak
// the OpenAI chat completions API (vLLM, LocalAI, LM Studio).
const OpenAICompatible = "openai-compatible"

// OpenAI implements [Completer] against any OpenAI-compatible endpoint using
// the official SDK.
type OpenAI struct {
	client oai.Client
	model  string
}

type openAIConfig struct {
	apiKey       string
	organization string
	timeout      time.Duration
}

// OpenAIOption is a functional option for [NewOpenAI].
type OpenAIOption func(*openAIConfig)

// WithAPIKey sets the bearer token. Many local servers accept any value.
func WithAPIKey(key string) OpenAIOption {
	return func(c *openAIConfig) { c.apiKey = key }
}

// WithOrganization sets the OpenAI organization header on all requests.
func WithOrganization(org string) OpenAIOption {
	return func(c *openAIConfig) { c.organization = org }
}

// WithHTTPTimeout sets a per-request HTTP timeout.
func WithHTTPTimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) { c.timeout = d }
}

// NewOpenAI creates a completer for the server at baseURL.
func NewOpenAI(baseURL, model string, opts ...OpenAIOption) (*OpenAI, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("coach: baseURL must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("coach: model must not be empty")
	}

	cfg := &openAIConfig{apiKey: "unused"}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.apiKey),
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &OpenAI{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete implements [Completer].
func (p *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, p.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAI) buildParams(req Request) oai.ChatCompletionNewParams {
	var messages []oai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, oai.SystemMessage(req.System))
	}
	messages = append(messages, oai.UserMessage(req.Prompt))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}
	return params
}
