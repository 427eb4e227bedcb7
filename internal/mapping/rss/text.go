package rss

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	droppedElements = "script, style, noscript, svg"
	lineBreaks      = "br, hr"
	blockElements   = "p, div, h1, h2, h3, h4, h5, h6, li, tr, blockquote, pre, table"
)

var multiSpaces = regexp.MustCompile(`[ \t\r]+`)

// plainText reduces an HTML fragment from a feed to readable text, one
// paragraph per line.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	doc.Find(droppedElements).Remove()
	doc.Find(lineBreaks).ReplaceWithHtml("\n")
	doc.Find(blockElements).Each(func(_ int, sel *goquery.Selection) {
		sel.PrependHtml("\n")
		sel.AppendHtml("\n")
	})

	text := multiSpaces.ReplaceAllString(doc.Text(), " ")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// firstSentences returns text cut at the last sentence end within max
// runes, or at max runes when there is none.
func firstSentences(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	cut := string(r[:max])
	if i := strings.LastIndexAny(cut, ".!?"); i > 0 {
		return cut[:i+1]
	}
	return strings.TrimSpace(cut) + "…"
}
