package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// --- Response extraction ---

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{"choices first", &ChoicesResponse{Choices: []Choice{{Text: "Low"}, {Text: "High"}}}, "Low"},
		{"choices empty", &ChoicesResponse{}, ""},
		{"plain text", &TextResponse{Text: "Medium"}, "Medium"},
		{"nil interface", nil, ""},
		{"nil choices pointer", (*ChoicesResponse)(nil), ""},
		{"nil text pointer", (*TextResponse)(nil), ""},
		{"nil json pointer", (*JSONResponse)(nil), ""},
		{"unrecognized", &UnrecognizedResponse{Value: 42}, ""},
		{"json choices", &JSONResponse{Body: []byte(`{"choices":[{"text":"a "}]}`)}, "a "},
		{"json choices without text", &JSONResponse{Body: []byte(`{"choices":[{}],"content":"x"}`)}, ""},
		{"json empty choices", &JSONResponse{Body: []byte(`{"choices":[]}`)}, ""},
		{"json text", &JSONResponse{Body: []byte(`{"text":"wet road"}`)}, "wet road"},
		{"json content", &JSONResponse{Body: []byte(`{"content":"Low","stop":true}`)}, "Low"},
		{"json text before content", &JSONResponse{Body: []byte(`{"content":"b","text":"a"}`)}, "a"},
		{"json non-string text", &JSONResponse{Body: []byte(`{"text":7}`)}, ""},
		{"json bare string", &JSONResponse{Body: []byte(`"High"`)}, "High"},
		{"json array", &JSONResponse{Body: []byte(`[1,2]`)}, ""},
		{"json malformed", &JSONResponse{Body: []byte(`{"text":`)}, ""},
		{"json empty body", &JSONResponse{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(tt.resp); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

// --- OpenAI backend ---

func TestOpenAIBackend_NameDetection(t *testing.T) {
	tests := []struct {
		baseURL  string
		expected string
	}{
		{"", "openai"},
		{"https://api.openai.com/v1", "openai"},
		{"http://localhost:11434/v1", "ollama"},
		{"http://127.0.0.1:8080/v1", "llamacpp-oai"},
		{"http://gpu-box:8000/v1", "vllm"},
		{"https://proxy.example.com/v1", "openai-compatible"},
	}
	for _, tt := range tests {
		b := NewOpenAIBackend("", tt.baseURL, "")
		if got := b.Name(); got != tt.expected {
			t.Errorf("NewOpenAIBackend(%q).Name() = %q, want %q", tt.baseURL, got, tt.expected)
		}
	}
}

func TestOpenAIBackend_DefaultModel(t *testing.T) {
	if got := NewOpenAIBackend("", "", "").DefaultModel(); got != "gpt-3.5-turbo-instruct" {
		t.Errorf("DefaultModel() = %q", got)
	}
	if got := NewOpenAIBackend("", "", "qwen2.5").DefaultModel(); got != "qwen2.5" {
		t.Errorf("DefaultModel() = %q", got)
	}
}

func TestOpenAIBackend_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"cmpl-1","object":"text_completion","created":1,"model":"m",
			"choices":[{"index":0,"text":"Low","finish_reason":"stop","logprobs":null}]}`)
	}))
	defer srv.Close()

	b := NewOpenAIBackend("", srv.URL+"/v1", "m")
	resp, err := b.Generate(context.Background(), &Request{
		Prompt:      "road?",
		MaxTokens:   64,
		Temperature: 0.18,
		Stop:        []string{"Low", "Medium", "High", "\n", "\r"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text := ExtractText(resp); text != "Low" {
		t.Errorf("ExtractText = %q, want Low", text)
	}
	cr, ok := resp.(*ChoicesResponse)
	if !ok || cr.Choices[0].FinishReason != "stop" {
		t.Errorf("unexpected response %#v", resp)
	}

	if got["prompt"] != "road?" {
		t.Errorf("prompt = %v", got["prompt"])
	}
	if got["max_tokens"] != float64(64) {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
	stops, _ := got["stop"].([]any)
	if len(stops) != 5 {
		t.Errorf("stop = %v, want all five stops for a compatible server", got["stop"])
	}
}

func TestOpenAIBackend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":{"message":"boom"}}`)
	}))
	defer srv.Close()

	b := NewOpenAIBackend("", srv.URL+"/v1", "m")
	if _, err := b.Generate(context.Background(), &Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error from 500 response")
	}
}

// --- llama.cpp backend ---

func TestLlamaCppBackend_Generate(t *testing.T) {
	var got llamaCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/completion" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"content":" Medium","stop":true,"tokens_predicted":2}`)
	}))
	defer srv.Close()

	b := NewLlamaCppBackend(srv.URL+"/", "")
	resp, err := b.Generate(context.Background(), &Request{
		Prompt:      "p",
		MaxTokens:   32,
		Temperature: 0.5,
		Stop:        []string{"Low", "\n"},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, ok := resp.(*JSONResponse); !ok {
		t.Fatalf("response type = %T, want *JSONResponse", resp)
	}
	if text := ExtractText(resp); text != " Medium" {
		t.Errorf("ExtractText = %q", text)
	}

	want := llamaCompletionRequest{
		Prompt:      "p",
		NPredict:    32,
		Temperature: 0.5,
		Stop:        []string{"Low", "\n"},
		CachePrompt: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestLlamaCppBackend_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model missing", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewLlamaCppBackend(srv.URL, "").Generate(context.Background(), &Request{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error for 400")
	}
}

func TestLlamaCppBackend_Ping(t *testing.T) {
	tests := []struct {
		status     int
		wantErr    bool
		isNotReady bool
	}{
		{http.StatusOK, false, false},
		{http.StatusServiceUnavailable, true, true},
		{http.StatusNotFound, true, false},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(tt.status)
		}))
		err := NewLlamaCppBackend(srv.URL, "").Ping(context.Background())
		srv.Close()

		if (err != nil) != tt.wantErr {
			t.Errorf("status %d: err = %v, wantErr %v", tt.status, err, tt.wantErr)
		}
		if got := errors.Is(err, ErrNotReady); got != tt.isNotReady {
			t.Errorf("status %d: errors.Is(ErrNotReady) = %v, want %v", tt.status, got, tt.isNotReady)
		}
	}
}

// --- Scripted backend ---

func TestScripted_ReplaysThenEmpty(t *testing.T) {
	s := NewScripted("a", "b")
	ctx := context.Background()

	var texts []string
	for range 3 {
		resp, err := s.Generate(ctx, &Request{Prompt: "p", Stop: []string{"x"}})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		texts = append(texts, ExtractText(resp))
	}
	if diff := cmp.Diff([]string{"a", "b", ""}, texts); diff != "" {
		t.Errorf("texts mismatch (-want +got):\n%s", diff)
	}
	if s.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", s.Calls())
	}
}

func TestScripted_FailAt(t *testing.T) {
	boom := errors.New("boom")
	s := NewScripted("a", "b").FailAt(1, boom)
	ctx := context.Background()

	if _, err := s.Generate(ctx, &Request{}); err != nil {
		t.Fatalf("call 0: %v", err)
	}
	if _, err := s.Generate(ctx, &Request{}); !errors.Is(err, boom) {
		t.Fatalf("call 1: got %v, want boom", err)
	}
}

func TestScripted_RecordsCopies(t *testing.T) {
	s := NewScripted("a")
	stops := []string{"Low"}
	_, _ = s.Generate(context.Background(), &Request{Prompt: "p", Stop: stops})
	stops[0] = "mutated"

	reqs := s.Requests()
	if len(reqs) != 1 || reqs[0].Stop[0] != "Low" {
		t.Errorf("recorded request was aliased: %+v", reqs)
	}
}
