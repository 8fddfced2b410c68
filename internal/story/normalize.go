package story

import "strings"

// NormalizeOutput cleans raw model output into something that should be a bare
// JSON object: content before an optional start marker is dropped, the end
// marker and everything after it is cut, and a brace the model swallowed when
// it emitted a newline straight into the marker is restored.
func NormalizeOutput(raw string) string {
	if raw == "" {
		return raw
	}

	s := raw

	if idx := strings.Index(s, StartMarker); idx != -1 {
		s = s[idx+len(StartMarker):]
	}
	s = strings.TrimLeft(s, " \t\r\n")

	idx := strings.Index(s, EndMarker)
	if idx == -1 {
		return strings.TrimSpace(s)
	}

	s = s[:idx]
	trimmed := strings.TrimRight(s, " \t\r\n")

	// The marker sometimes replaces the closing brace entirely.
	if trimmed != "" && !strings.HasSuffix(trimmed, "}") {
		return trimmed + "}"
	}
	return trimmed
}
