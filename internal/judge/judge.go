// Package judge decides whether a free-text guess states one of the hidden
// truths, under a strict factual-equivalence policy.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rilhia/the-hallucinated-truth/internal/game"
	"github.com/rilhia/the-hallucinated-truth/internal/llm"
)

// verdict is the strict output contract for the judge prompt.
type verdict struct {
	MatchIndex *int `json:"matchIndex"`
}

// LLMJudge implements game.Judge via a language model.
type LLMJudge struct {
	client      llm.Client
	temperature float64
	logger      *zap.Logger
}

// NewLLMJudge creates a judge backed by an LLM.
func NewLLMJudge(client llm.Client, temperature float64, logger *zap.Logger) *LLMJudge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMJudge{
		client:      client,
		temperature: temperature,
		logger:      logger.Named("judge"),
	}
}

// Judge returns the index of the single fact the guess matches, or nil for no
// match. Unparseable model output counts as no match.
func (j *LLMJudge) Judge(ctx context.Context, guessText string, facts []game.Fact) (*int, error) {
	prompt := BuildPrompt(guessText, facts)

	response, err := j.client.CompleteWithTemperature(ctx, prompt, j.temperature)
	if err != nil {
		return nil, fmt.Errorf("judge completion failed: %w", err)
	}

	v, err := ParseVerdict(response)
	if err != nil {
		j.logger.Warn("judge output failed to parse, treating as no match",
			zap.Error(err),
			zap.Int("raw_len", len(response)))
		return nil, nil
	}

	if v != nil && (*v < 0 || *v >= len(facts)) {
		j.logger.Warn("judge returned out-of-range index", zap.Int("index", *v))
		return nil, nil
	}

	return v, nil
}

// ParseVerdict extracts the matchIndex from model output. Models occasionally
// wrap the JSON in prose, so the last JSON object in the text is used.
func ParseVerdict(raw string) (*int, error) {
	fragment := lastJSONObject(raw)
	if fragment == "" {
		return nil, fmt.Errorf("no JSON object found in judge output")
	}

	var v verdict
	if err := json.Unmarshal([]byte(fragment), &v); err != nil {
		return nil, fmt.Errorf("judge output is not valid JSON: %w", err)
	}
	return v.MatchIndex, nil
}

// lastJSONObject returns the last balanced {...} span in the text, or "".
func lastJSONObject(s string) string {
	end := strings.LastIndex(s, "}")
	if end == -1 {
		return ""
	}
	depth := 0
	for i := end; i >= 0; i-- {
		switch s[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return s[i : end+1]
			}
		}
	}
	return ""
}

// BuildPrompt returns the judging prompt for a guess and the fact list.
// Fact indices are zero-based: the verdict indexes directly into the list.
func BuildPrompt(guessText string, facts []game.Fact) string {
	var list strings.Builder
	for i, f := range facts {
		fmt.Fprintf(&list, "Fact %d: %q\n", i, f.Text)
	}

	return fmt.Sprintf(`You must determine whether the USER EXPLANATION correctly matches one of the FACTS.
This requires strict factual consistency, not thematic similarity.

Absolute Rule

A user explanation is ONLY correct if:
	- it does not contradict the fact in any specific detail
AND
	- it does not change any numbers, dates, quantities, ages, or ranges
AND
	- it preserves the correct direction of the details (e.g., "before age 14" is not the same as "before age 13").

Non-Negotiable Specificity Rules
	1. Numbers must match exactly unless they are completely omitted.
	- Fact: "Expelled from 14 schools before age 13."
	- User: "Expelled from 13 schools..." -> Incorrect (different number).
	- User: "Expelled from many schools..." -> Correct (no contradiction).
	2. Ages and age ranges must match exactly in value and direction.
	- Fact: "Before age 13."
	- User: "Before age 14." -> Incorrect (different condition).
	- User: "When he was young." -> Correct (no contradiction).
	3. If a user provides a specific detail, it must match the fact's detail.
If they add specificity that is wrong -> Incorrect.
If they stay general -> Possibly correct.
	4. Similarity of meaning is NOT enough.
Statements that are superficially similar but differ in specifics are not a match.
	5. A user explanation that changes any measurable detail (number, date, age, duration, count, score, distance, year) is automatically incorrect.
There is no tolerance for "close enough" matches.


FACTS:
%s
USER EXPLANATION:
%q

Return ONLY strict JSON:
{
  "matchIndex": number | null
}
`, list.String(), guessText)
}
