package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// localAPIKey is sent to OpenAI-compatible local servers that ignore auth.
const localAPIKey = "sk-no-key-required"

// OpenAIBackend implements Backend with the legacy Completions API, which
// every OpenAI-compatible inference server (llama.cpp server, Ollama, vLLM,
// LM Studio) exposes for raw prompt completion with stop sequences.
type OpenAIBackend struct {
	client  openai.Client
	model   string
	name    string
	baseURL string
	policy  StopPolicy
}

func NewOpenAIBackend(apiKey, baseURL, model string) *OpenAIBackend {
	if apiKey == "" {
		apiKey = localAPIKey
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-3.5-turbo-instruct"
	}

	name := "openai"
	if baseURL != "" {
		switch {
		case strings.Contains(baseURL, ":11434"), strings.Contains(baseURL, "ollama"):
			name = "ollama"
		case strings.Contains(baseURL, ":8080"), strings.Contains(baseURL, "llama"):
			name = "llamacpp-oai"
		case strings.Contains(baseURL, ":8000"), strings.Contains(baseURL, "vllm"):
			name = "vllm"
		case !strings.Contains(baseURL, "api.openai.com"):
			name = "openai-compatible"
		}
	}

	return &OpenAIBackend{
		client:  openai.NewClient(opts...),
		model:   model,
		name:    name,
		baseURL: baseURL,
		policy:  PolicyFor(name),
	}
}

func (b *OpenAIBackend) Name() string         { return b.name }
func (b *OpenAIBackend) DefaultModel() string { return b.model }

// Generate issues one non-streaming completion. Retries are disabled on the
// client: the controller attempts each chunk exactly once.
func (b *OpenAIBackend) Generate(ctx context.Context, req *Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}

	params := openai.CompletionNewParams{
		Model:       openai.CompletionNewParamsModel(model),
		Prompt:      openai.CompletionNewParamsPromptUnion{OfString: openai.String(req.Prompt)},
		Temperature: openai.Float(b.policy.Temperature(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if stops := b.policy.Stops(req.Stop); len(stops) > 0 {
		params.Stop = openai.CompletionNewParamsStopUnion{OfStringArray: stops}
	}

	completion, err := b.client.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", b.name, err)
	}

	out := &ChoicesResponse{Choices: make([]Choice, 0, len(completion.Choices))}
	for _, c := range completion.Choices {
		out.Choices = append(out.Choices, Choice{
			Text:         c.Text,
			FinishReason: string(c.FinishReason),
		})
	}
	return out, nil
}

// Ping lists models, which every compatible server serves once weights are loaded.
func (b *OpenAIBackend) Ping(ctx context.Context) error {
	if _, err := b.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s models: %w", b.name, err)
	}
	return nil
}
