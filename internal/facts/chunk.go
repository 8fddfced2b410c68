package facts

import "strings"

const (
	chunkSize    = 10000
	chunkOverlap = 200
)

// SplitChunks splits text into bounded-size chunks with a fixed overlap.
func SplitChunks(text string, size, overlap int) []string {
	if size <= 0 {
		size = chunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = chunkOverlap
	}
	if text == "" {
		return nil
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

var commonVerbs = []string{
	"is", "was", "are", "were", "have", "has",
	"do", "does", "did", "can", "will",
	"use", "make", "take", "give", "get", "go", "run", "form",
}

var pronouns = []string{"they", "their", "them", "he", "she", "his", "her", "it"}

var stopwords = []string{
	"the", "and", "in", "on", "to", "for", "of", "with", "is", "that", "this", "was", "are",
}

// ChunkIsAboutSubject decides whether a text chunk plausibly concerns the
// subject. Three tiers: a direct subject-keyword hit; a subject keyword plus a
// common verb; or, as a fallback, enough pronouns and stopwords to look like
// running English prose about something.
func ChunkIsAboutSubject(subject, text string) bool {
	lower := strings.ToLower(text)

	var subjectWords []string
	for _, w := range strings.Fields(strings.ToLower(subject)) {
		if len(w) > 2 {
			subjectWords = append(subjectWords, w)
		}
	}

	containsSubjectWord := false
	for _, w := range subjectWords {
		if strings.Contains(lower, w) {
			containsSubjectWord = true
			break
		}
	}
	if containsSubjectWord {
		return true
	}

	containsVerb := false
	for _, v := range commonVerbs {
		if strings.Contains(lower, " "+v+" ") {
			containsVerb = true
			break
		}
	}
	if containsSubjectWord && containsVerb {
		return true
	}

	pronounCount := 0
	for _, p := range pronouns {
		if strings.Contains(lower, " "+p+" ") {
			pronounCount++
		}
	}
	stopwordCount := 0
	for _, s := range stopwords {
		if strings.Contains(lower, " "+s+" ") {
			stopwordCount++
		}
	}
	return pronounCount >= 2 && stopwordCount >= 3
}
