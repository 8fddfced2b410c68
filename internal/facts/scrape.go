// Package facts gathers curated, source-attributed facts about a subject:
// search results are scraped, chunked, filtered for relevance, mined for
// explicit facts via an LLM, then deduplicated and bounded.
package facts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Fetcher retrieves and cleans the main text of a web page.
type Fetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
}

// NewFetcher creates a page fetcher.
func NewFetcher(userAgent string, timeout time.Duration, maxBodyBytes int64) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Fetcher{
		httpClient:   &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
	}
}

// FetchMainText downloads a page and extracts its cleaned main content.
func (f *Fetcher) FetchMainText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}

	return ExtractMainText(doc), nil
}

// boilerplate elements stripped before content extraction.
var strippedElements = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"header": true, "svg": true, "noscript": true, "iframe": true,
}

// class/id fragments that mark junk containers.
var junkMarkers = []string{"ads", "advert", "promo", "cookie-banner", "subscribe"}

// content candidates, tried in order. A selector is either an element name,
// an id (#x), or a class (.x).
var contentCandidates = []string{
	"article", "main", "section", "#content", ".content", ".article", ".post",
}

// ExtractMainText pulls the likely main content from a parsed page, falling
// back to the whole body, and cleans the result.
func ExtractMainText(doc *html.Node) string {
	pruneBoilerplate(doc)

	var text string
	for _, sel := range contentCandidates {
		if node := findBySelector(doc, sel); node != nil {
			text = textContent(node)
			if strings.TrimSpace(text) != "" {
				break
			}
		}
	}

	if strings.TrimSpace(text) == "" {
		if body := findBySelector(doc, "body"); body != nil {
			text = textContent(body)
		}
	}

	return CleanText(text)
}

// pruneBoilerplate removes script/style/navigation elements and ad containers.
func pruneBoilerplate(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode && (strippedElements[c.Data] || isJunkContainer(c)) {
			n.RemoveChild(c)
			continue
		}
		pruneBoilerplate(c)
	}
}

func isJunkContainer(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" && attr.Key != "id" {
			continue
		}
		value := strings.ToLower(attr.Val)
		for _, marker := range junkMarkers {
			if strings.Contains(value, marker) {
				return true
			}
		}
	}
	return false
}

// findBySelector finds the first node matching an element name, #id, or
// .class selector.
func findBySelector(n *html.Node, sel string) *html.Node {
	var match func(*html.Node) bool
	switch {
	case strings.HasPrefix(sel, "#"):
		id := sel[1:]
		match = func(n *html.Node) bool { return hasAttrValue(n, "id", id) }
	case strings.HasPrefix(sel, "."):
		class := sel[1:]
		match = func(n *html.Node) bool { return hasClass(n, class) }
	default:
		match = func(n *html.Node) bool { return n.Data == sel }
	}

	var find func(*html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		if n.Type == html.ElementNode && match(n) {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := find(c); found != nil {
				return found
			}
		}
		return nil
	}
	return find(n)
}

func hasAttrValue(n *html.Node, key, value string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key && attr.Val == value {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

// textContent extracts the concatenated text of a node.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.TrimSpace(sb.String())
}

var (
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	blankLinesRe  = regexp.MustCompile(`\n{2,}`)
	emptyBracketRe = regexp.MustCompile(`\[\s*\]`)
	showMoreRe    = regexp.MustCompile(`(?i)Show more`)
	copyrightRe   = regexp.MustCompile(`(?m)© .*?$`)
)

// CleanText collapses whitespace and strips common page junk.
func CleanText(text string) string {
	text = multiSpaceRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n")
	text = emptyBracketRe.ReplaceAllString(text, "")
	text = showMoreRe.ReplaceAllString(text, "")
	text = copyrightRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
