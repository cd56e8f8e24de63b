package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize parses raw HTML and returns the document together with a
// flattened text view where all whitespace runs are collapsed to single
// spaces. goquery is lenient, so malformed markup still yields a
// best-effort document rather than an error.
func Normalize(html string) (*goquery.Document, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, "", err
	}
	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(doc.Text(), " "))
	return doc, text, nil
}

// firstText returns the trimmed text of the first node matching any of
// the given selectors, in order.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if s := strings.TrimSpace(doc.Find(sel).First().Text()); s != "" {
			return s
		}
	}
	return ""
}
