// Package llm provides the language-model client used by the fact-extraction,
// story-generation, and judging stages.
package llm

import "context"

// Client defines the interface for LLM completions.
type Client interface {
	// Complete sends a prompt and returns the raw completion text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithTemperature sends a prompt sampled at the given temperature.
	CompleteWithTemperature(ctx context.Context, prompt string, temperature float64) (string, error)
}
