package facts

import "strings"

// suffixes of document types that cannot be scraped as page text.
var skippedSuffixes = []string{
	".pdf", ".ppt", ".pptx", ".doc", ".docx", ".xls", ".xlsx",
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".zip",
}

// substrings marking viewer/drive links that render documents, not text.
var skippedSubstrings = []string{
	"docs.google.com/viewer",
	"drive.google.com",
	"slideshare.net",
	"scribd.com",
	"/viewer?",
}

// IsScrapableURL reports whether a search hit points at page text rather than
// a binary document or a document viewer.
func IsScrapableURL(url string) bool {
	lower := strings.ToLower(url)

	trimmed := lower
	if idx := strings.IndexAny(trimmed, "?#"); idx != -1 {
		trimmed = trimmed[:idx]
	}
	for _, suffix := range skippedSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return false
		}
	}

	for _, substr := range skippedSubstrings {
		if strings.Contains(lower, substr) {
			return false
		}
	}
	return true
}
