// Package provider defines the generative backend contract used by the
// chunked generation controller, plus adapters for OpenAI-compatible
// completion servers (llama.cpp, Ollama, vLLM, OpenAI), Anthropic, Gemini and
// the native llama.cpp HTTP server.
//
// Every adapter returns one of a small set of Response shapes; ExtractText
// reduces any of them to plain text and never fails.
package provider

import (
	"context"

	"github.com/tidwall/gjson"
)

// ── Request ──────────────────────────────────────────────────────────────────

// Request is one bounded completion call.
type Request struct {
	// Model overrides the backend's configured model. Empty = backend default.
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// Stop lists strings that end generation when produced.
	Stop []string
}

// ── Response shapes ──────────────────────────────────────────────────────────

// Response is the raw output of one backend call. It is a closed union:
// *ChoicesResponse, *TextResponse, *JSONResponse or *UnrecognizedResponse.
type Response interface {
	responseShape()
}

// Choice is one completion alternative.
type Choice struct {
	Text         string
	FinishReason string
}

// ChoicesResponse is the structured completions shape (choices[].text).
type ChoicesResponse struct {
	Choices []Choice
}

// TextResponse is the degenerate plain-text shape.
type TextResponse struct {
	Text string
}

// JSONResponse carries an undecoded JSON body whose layout is only known by
// convention (llama.cpp native server, proxies).
type JSONResponse struct {
	Body []byte
}

// UnrecognizedResponse wraps anything else. It always extracts to "".
type UnrecognizedResponse struct {
	Value any
}

func (*ChoicesResponse) responseShape()      {}
func (*TextResponse) responseShape()         {}
func (*JSONResponse) responseShape()         {}
func (*UnrecognizedResponse) responseShape() {}

// jsonTextPaths are tried in order against a JSONResponse body.
var jsonTextPaths = []string{"text", "content"}

// ExtractText returns the generated text carried by r. Missing fields,
// malformed bodies, nil and unrecognized shapes all yield "".
func ExtractText(r Response) string {
	switch v := r.(type) {
	case *ChoicesResponse:
		if v == nil || len(v.Choices) == 0 {
			return ""
		}
		return v.Choices[0].Text
	case *TextResponse:
		if v == nil {
			return ""
		}
		return v.Text
	case *JSONResponse:
		if v == nil {
			return ""
		}
		return extractJSON(v.Body)
	default:
		return ""
	}
}

func extractJSON(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	root := gjson.ParseBytes(body)
	if root.Type == gjson.String {
		return root.Str
	}
	if !root.IsObject() {
		return ""
	}
	// A present choices array is authoritative even when its text is missing.
	if choices := root.Get("choices"); choices.Exists() {
		first := choices.Get("0.text")
		if first.Type == gjson.String {
			return first.Str
		}
		return ""
	}
	for _, path := range jsonTextPaths {
		if res := root.Get(path); res.Type == gjson.String {
			return res.Str
		}
	}
	return ""
}

// ── Backend ──────────────────────────────────────────────────────────────────

// Backend is an opaque text-completion capability.
// Implementations must honor MaxTokens and Stop, and must be safe to call
// sequentially from one goroutine; callers that share a Backend across
// sessions serialize access with Exclusive.
type Backend interface {
	// Generate runs one completion. Transport or model failures are returned
	// as errors; an odd response shape is not an error.
	Generate(ctx context.Context, req *Request) (Response, error)

	// Name returns the backend identifier, e.g. "llamacpp", "openai".
	Name() string

	// DefaultModel returns the model used when Request.Model is empty.
	DefaultModel() string
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
