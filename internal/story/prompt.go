// Package story generates the narrative that hides the gathered truths among
// plausible falsehoods, and validates the model's structural contract.
package story

import (
	"fmt"
	"strings"

	"github.com/rilhia/the-hallucinated-truth/internal/game"
)

// EndMarker terminates well-formed model output; anything after it is
// discarded. StartMarker may optionally precede the JSON object.
const (
	StartMarker = "<<<START>>>"
	EndMarker   = "<<<END>>>"
)

// BuildPrompt returns the story-generation prompt for a subject and its facts.
func BuildPrompt(subject string, facts []game.Fact) string {
	if strings.TrimSpace(subject) == "" {
		subject = "something deeply ridiculous"
	}

	var factsList strings.Builder
	for i, f := range facts {
		fmt.Fprintf(&factsList, "FACT %d: %q\n", i+1, f.Text)
	}

	return fmt.Sprintf(`You are writing a comedic lecture inspired by The Unbelievable Truth.

You MUST output ONLY one JSON object, followed immediately by the marker %[2]s.

The required final output format is:

{
  "STORY": [
    { "paragraph": "text", "number": 1 }
  ]
}
%[2]s

IMPORTANT:
- The JSON object MUST be valid.
- The JSON object MUST end with "}".
- After the final "}", you MUST output the marker %[2]s.
- NOTHING may appear after %[2]s.
- NOTHING may appear before the opening "{".
- No markdown, no comments, no explanations.

STORY RULES:
- 4 to 8 paragraphs.
- Tone: confident, surreal, satirical, funny, weird.
- Must begin with this exact sentence:
  "Today, I am here to talk about %[1]s."
- You MUST include ALL supplied facts EXACTLY once.
- A supplied fact must appear completely and totally inline with the fact provided.
- Do NOT paraphrase, alter, shorten, or expand any fact.
- No paragraph may start with a true sentence.
- False statements must dominate the story.
- All falsehoods must be plausible or surreal and funny.
- All falsehoods must be completely false. There must NOT be any possibility that a falsehood could be true.
- All facts must be hidden among falsehoods.
- Do NOT reorder the facts.

THE FACTS YOU MUST EMBED:

%[3]s
HARD REQUIREMENTS:
- All facts MUST be included in the story
- No disclaimers
- No mention of AI or models
- No meta commentary
- No safety talk
- No trailing commas
- All strings must use standard double quotes
- All braces and brackets must match
- The JSON must be valid and parseable

FINAL VALIDATION (MANDATORY):
Before finishing, you MUST verify:
1. The first character of your ENTIRE output is "{"
2. The JSON ends with "}"
3. The next characters immediately after "}" are %[2]s
4. NOTHING appears after %[2]s
5. No missing quotes, commas, or brackets

You MUST output ONLY:
The valid and complete JSON object
FOLLOWED IMMEDIATELY by:
%[2]s

NOTHING ELSE.
`, subject, EndMarker, factsList.String())
}
