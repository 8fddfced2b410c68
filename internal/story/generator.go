package story

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rilhia/the-hallucinated-truth/internal/game"
	"github.com/rilhia/the-hallucinated-truth/internal/llm"
)

// storyEnvelope is the strict output contract for the story prompt.
type storyEnvelope struct {
	Story []game.Paragraph `json:"STORY"`
}

// Generator produces narratives via an LLM.
type Generator struct {
	client      llm.Client
	temperature float64
	logger      *zap.Logger
}

// NewGenerator creates a story generator.
func NewGenerator(client llm.Client, temperature float64, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:      client,
		temperature: temperature,
		logger:      logger.Named("story"),
	}
}

// GenerateStory asks the model for the narrative and validates its shape.
// A response that fails validation yields nil paragraphs and no error: the
// caller applies the soft-fallback policy. The normalized raw output is
// returned either way so it can be surfaced to pollers.
func (g *Generator) GenerateStory(ctx context.Context, subject string, facts []game.Fact) ([]game.Paragraph, string, error) {
	prompt := BuildPrompt(subject, facts)

	response, err := g.client.CompleteWithTemperature(ctx, prompt, g.temperature)
	if err != nil {
		return nil, "", fmt.Errorf("story completion failed: %w", err)
	}

	raw := NormalizeOutput(response)

	paragraphs, err := ParseStory(raw)
	if err != nil {
		g.logger.Warn("story output failed validation",
			zap.Error(err),
			zap.Int("raw_len", len(raw)))
		return nil, raw, nil
	}

	g.logger.Info("story generated",
		zap.String("subject", subject),
		zap.Int("paragraphs", len(paragraphs)))
	return paragraphs, raw, nil
}

// ParseStory validates normalized output against the STORY contract: a single
// JSON object, starting with "{" and ending with "}", holding a non-empty
// STORY array.
func ParseStory(raw string) ([]game.Paragraph, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("empty story output")
	}
	if !strings.HasPrefix(s, "{") {
		return nil, fmt.Errorf("story output does not start with '{'")
	}
	if !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("story output does not end with '}'")
	}

	var envelope storyEnvelope
	if err := json.Unmarshal([]byte(s), &envelope); err != nil {
		return nil, fmt.Errorf("story output is not valid JSON: %w", err)
	}
	if envelope.Story == nil {
		return nil, fmt.Errorf("story output is missing the STORY array")
	}
	return envelope.Story, nil
}
