package facts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsScrapableURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want bool
	}{
		{"plain article", "https://example.com/history-of-tea", true},
		{"trailing slash", "https://example.com/facts/", true},
		{"pdf", "https://example.com/paper.pdf", false},
		{"pdf uppercase", "https://example.com/PAPER.PDF", false},
		{"pdf with query", "https://example.com/paper.pdf?download=1", false},
		{"pdf with fragment", "https://example.com/paper.pdf#page=3", false},
		{"powerpoint", "https://example.com/deck.pptx", false},
		{"spreadsheet", "https://example.com/data.xlsx", false},
		{"image", "https://example.com/photo.jpg", false},
		{"archive", "https://example.com/bundle.zip", false},
		{"pdf in path only", "https://example.com/pdf-tools/guide", true},
		{"google docs viewer", "https://docs.google.com/viewer?url=x", false},
		{"google drive", "https://drive.google.com/file/d/abc/view", false},
		{"slideshare", "https://www.slideshare.net/someone/deck", false},
		{"scribd", "https://www.scribd.com/document/123", false},
		{"generic viewer query", "https://example.com/viewer?doc=9", false},
		{"query params survive", "https://example.com/article?id=12&ref=home", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsScrapableURL(tc.url), tc.url)
		})
	}
}
