package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend implements Backend using the Anthropic Messages API. The
// prompt is sent as a single user turn.
type AnthropicBackend struct {
	client anthropic.Client
	model  string
	policy StopPolicy
}

func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicBackend{
		client: anthropic.NewClient(
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		),
		model:  model,
		policy: PolicyFor("anthropic"),
	}
}

func (b *AnthropicBackend) Name() string         { return "anthropic" }
func (b *AnthropicBackend) DefaultModel() string { return b.model }

func (b *AnthropicBackend) Generate(ctx context.Context, req *Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 64
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
		Temperature: anthropic.Float(b.policy.Temperature(req.Temperature)),
	}
	if stops := b.policy.Stops(req.Stop); len(stops) > 0 {
		params.StopSequences = stops
	}

	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic message: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return &TextResponse{Text: sb.String()}, nil
}
