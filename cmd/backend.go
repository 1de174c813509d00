package cmd

import (
	"context"
	"fmt"

	"github.com/qrs-ai/roadscan/internal/config"
	"github.com/qrs-ai/roadscan/internal/provider"
)

// buildBackend creates a Backend instance based on configuration.
func buildBackend(ctx context.Context, cfg *config.Config) (provider.Backend, error) {
	name := cfg.Provider
	pc := cfg.Resolved()

	switch name {
	case "llamacpp":
		return provider.NewLlamaCppBackend(pc.BaseURL, pc.Model), nil
	case "anthropic":
		if pc.APIKey == "" {
			return nil, missingKey(name, "ANTHROPIC_API_KEY")
		}
		return provider.NewAnthropicBackend(pc.APIKey, pc.Model), nil
	case "gemini":
		if pc.APIKey == "" {
			return nil, missingKey(name, "GEMINI_API_KEY")
		}
		return provider.NewGeminiBackend(ctx, pc.APIKey, pc.Model)
	case "scripted":
		responses := pc.Responses
		if len(responses) == 0 {
			responses = []string{"Medium"}
		}
		return provider.NewScripted(responses...), nil
	default:
		// Everything else speaks the OpenAI-compatible completions API.
		if pc.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider %q; set providers.%s.base_url in config", name, name)
		}
		if name == "openai" && pc.APIKey == "" {
			return nil, missingKey(name, "OPENAI_API_KEY")
		}
		return provider.NewOpenAIBackend(pc.APIKey, pc.BaseURL, pc.Model), nil
	}
}

func missingKey(name, env string) error {
	return fmt.Errorf(
		"API key not configured for provider %q.\n"+
			"Set it via:\n"+
			"  - config file: providers.%s.api_key\n"+
			"  - environment: %s or LLM_API_KEY\n"+
			"  - run: roadscan init",
		name, name, env,
	)
}
