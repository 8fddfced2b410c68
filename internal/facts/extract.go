package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/rilhia/the-hallucinated-truth/internal/game"
	"github.com/rilhia/the-hallucinated-truth/internal/llm"
)

const (
	// rawFactTarget stops chunk processing once this many candidate facts
	// have been collected.
	rawFactTarget = 10

	// promptTextLimit bounds how much of a chunk is quoted in the prompt.
	promptTextLimit = 4000

	// curated subset bounds. Fewer than minCuratedFacts is allowed.
	minCuratedFacts = 4
	maxCuratedFacts = 8
)

// extractionEnvelope is the strict output contract for the fact-extraction
// prompt.
type extractionEnvelope struct {
	Facts []struct {
		Fact string `json:"fact"`
		URL  string `json:"url"`
	} `json:"facts"`
}

// chunk is a piece of scraped page text with its provenance.
type chunk struct {
	text   string
	url    string
	source string
}

// extractFromChunks mines candidate facts from relevant chunks, one model call
// per chunk, skipping unparseable responses. Processing stops once the raw
// fact target is reached.
func extractFromChunks(ctx context.Context, client llm.Client, temperature float64, subject string, chunks []chunk, logger *zap.Logger) []game.Fact {
	var all []game.Fact

	for _, c := range chunks {
		if len(all) >= rawFactTarget {
			break
		}

		prompt := buildExtractionPrompt(subject, c)
		response, err := client.CompleteWithTemperature(ctx, prompt, temperature)
		if err != nil {
			logger.Warn("fact extraction call failed, skipping chunk", zap.Error(err))
			continue
		}

		var envelope extractionEnvelope
		if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &envelope); err != nil {
			logger.Warn("fact extraction returned invalid JSON, skipping chunk",
				zap.Error(err),
				zap.Int("raw_len", len(response)))
			continue
		}

		for _, f := range envelope.Facts {
			text := strings.TrimSpace(f.Fact)
			if text == "" {
				continue
			}
			all = append(all, game.Fact{
				Text:   text,
				URL:    c.url,
				Source: c.source,
			})
		}
	}

	return all
}

// buildExtractionPrompt returns the per-chunk fact-extraction prompt with its
// strict JSON object contract.
func buildExtractionPrompt(subject string, c chunk) string {
	text := c.text
	if len(text) > promptTextLimit {
		text = text[:promptTextLimit]
	}

	return fmt.Sprintf(`You are the FACT-EXTRACTION ENGINE.

Your ONLY output is a single valid JSON object.
The FIRST character MUST be "{" and the LAST character MUST be "}".

////////////////////////////////////////////////////////////////
// TASK
////////////////////////////////////////////////////////////////

1. Read the provided text.
2. Identify EVERY explicit factual statement about %[1]q and only %[1]q.
3. From those, select up to 5 that are the most unusual, surprising,
   interesting, or uncommon.
4. A fact MUST be:
   - fully supported by the text exactly as written
   - not invented, assumed, or inferred
   - a complete, standalone sentence OR a faithful restatement
5. If the SOURCE TEXT contains *no explicit facts at all*, return:
   { "facts": [] }

////////////////////////////////////////////////////////////////
// SOURCE TEXT
////////////////////////////////////////////////////////////////

"""
%[2]s
"""

////////////////////////////////////////////////////////////////
// STRICT OUTPUT CONTRACT
////////////////////////////////////////////////////////////////

Return ONLY this structure, with no commentary:

{
  "facts": [
    { "fact": "FACT FROM SOURCE TEXT", "url": %[3]q }
  ]
}

RULES:
- JSON must be syntactically valid.
- "facts" must always be an array.
- "facts" can be an empty array if no facts are found.
- The array may be empty.
- Each object MUST contain:
    - "fact": string
    - "url": string (always %[3]q)
- No trailing commas.
- No markdown.
- No explanation.
- No extra text before or after the JSON.

BEGIN NOW.
`, subject, text, c.url)
}

// Curate deduplicates facts by case-insensitive text, shuffles them, and
// bounds the result to the curated subset size. Undersized sets pass through.
func Curate(all []game.Fact, rng *rand.Rand) []game.Fact {
	seen := make(map[string]bool, len(all))
	deduped := make([]game.Fact, 0, len(all))
	for _, f := range all {
		key := strings.ToLower(strings.TrimSpace(f.Text))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, f)
	}

	rng.Shuffle(len(deduped), func(i, j int) {
		deduped[i], deduped[j] = deduped[j], deduped[i]
	})

	if len(deduped) > maxCuratedFacts {
		deduped = deduped[:maxCuratedFacts]
	}
	return deduped
}
