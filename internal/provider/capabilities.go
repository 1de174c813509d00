package provider

import (
	"strings"
)

// StopPolicy describes what a provider accepts for stop sequences and
// temperature. Adapters pass every Request through their policy so the
// controller can always ask for the same stop set.
type StopPolicy struct {
	// MaxStops caps the number of stop strings sent. 0 = unlimited.
	MaxStops int
	// AllowWhitespace reports whether whitespace-only stop strings
	// (e.g. "\n") are accepted. When false they are dropped.
	AllowWhitespace bool
	// MaxTemperature is the provider's ceiling. 0 = no ceiling.
	MaxTemperature float64
}

// PolicyFor returns the known policy for a provider name.
//
// Local servers (llama.cpp, Ollama, vLLM) accept any stop list. The hosted
// OpenAI completions endpoint takes at most four; Anthropic rejects
// whitespace-only stops and caps temperature at 1.0; Gemini takes five.
func PolicyFor(providerName string) StopPolicy {
	switch strings.ToLower(strings.TrimSpace(providerName)) {
	case "openai":
		return StopPolicy{MaxStops: 4, AllowWhitespace: true, MaxTemperature: 2.0}
	case "anthropic":
		return StopPolicy{MaxStops: 0, AllowWhitespace: false, MaxTemperature: 1.0}
	case "gemini":
		return StopPolicy{MaxStops: 5, AllowWhitespace: true, MaxTemperature: 2.0}
	default:
		return StopPolicy{AllowWhitespace: true}
	}
}

// Stops filters and truncates stop strings according to the policy,
// preserving order. Empty strings are always dropped.
func (p StopPolicy) Stops(in []string) []string {
	var out []string
	for _, s := range in {
		if s == "" {
			continue
		}
		if !p.AllowWhitespace && strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
		if p.MaxStops > 0 && len(out) == p.MaxStops {
			break
		}
	}
	return out
}

// Temperature clamps t into [0, MaxTemperature].
func (p StopPolicy) Temperature(t float64) float64 {
	if t < 0 {
		return 0
	}
	if p.MaxTemperature > 0 && t > p.MaxTemperature {
		return p.MaxTemperature
	}
	return t
}
