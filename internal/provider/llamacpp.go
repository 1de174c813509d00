package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxBodyBytes bounds how much of a llama.cpp reply is read into memory.
const maxBodyBytes = 4 << 20

// LlamaCppBackend talks to the native llama.cpp HTTP server (llama-server)
// over its /completion endpoint. The reply body is returned undecoded as a
// JSONResponse; ExtractText reads its "content" field.
type LlamaCppBackend struct {
	BaseURL string
	HTTP    *http.Client
	model   string
}

type llamaCompletionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
	CachePrompt bool     `json:"cache_prompt"`
}

func NewLlamaCppBackend(baseURL, model string) *LlamaCppBackend {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8080"
	}
	if model == "" {
		model = "local"
	}
	return &LlamaCppBackend{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 120 * time.Second,
		},
		model: model,
	}
}

func (b *LlamaCppBackend) Name() string         { return "llamacpp" }
func (b *LlamaCppBackend) DefaultModel() string { return b.model }

func (b *LlamaCppBackend) Generate(ctx context.Context, req *Request) (Response, error) {
	body, err := json.Marshal(llamaCompletionRequest{
		Prompt:      req.Prompt,
		NPredict:    req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
		Stream:      false,
		CachePrompt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("llamacpp: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llamacpp: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llamacpp completion: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("llamacpp: read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("llamacpp completion http status %d: %s", resp.StatusCode, truncate(string(raw), 120))
	}
	return &JSONResponse{Body: raw}, nil
}

// Ping checks /health. The server answers 503 while the model is loading,
// which is reported as ErrNotReady.
func (b *LlamaCppBackend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := b.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusServiceUnavailable:
		return fmt.Errorf("llamacpp: %w", ErrNotReady)
	default:
		return fmt.Errorf("llamacpp health status %d", resp.StatusCode)
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
