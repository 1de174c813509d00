package provider

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend implements Backend using Google's Gemini API via genai.
type GeminiBackend struct {
	client *genai.Client
	model  string
	policy StopPolicy
}

// NewGeminiBackend creates the genai client eagerly so that a bad key or
// missing credentials fail at startup rather than mid-scan.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiBackend{
		client: client,
		model:  model,
		policy: PolicyFor("gemini"),
	}, nil
}

func (b *GeminiBackend) Name() string         { return "gemini" }
func (b *GeminiBackend) DefaultModel() string { return b.model }

func (b *GeminiBackend) Generate(ctx context.Context, req *Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = b.model
	}

	temp := float32(b.policy.Temperature(req.Temperature))
	cfg := &genai.GenerateContentConfig{
		Temperature:   &temp,
		StopSequences: b.policy.Stops(req.Stop),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return &UnrecognizedResponse{}, nil
	}
	return &TextResponse{Text: resp.Text()}, nil
}
