package ingest

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	urlRe        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Clean normalizes post content for embedding and oracle calls: HTML markup
// and links go, the text is lowercased and whitespace collapses. The original
// content is kept separately so nothing shown to users is ever the cleaned
// form.
func Clean(raw string) string {
	text := stripHTML(raw)
	text = urlRe.ReplaceAllString(text, " ")
	text = strings.ToLower(text)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func stripHTML(raw string) string {
	if !strings.ContainsRune(raw, '<') {
		return raw
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	// Drop script/style bodies before extracting text
	doc.Find("script, style").Remove()
	return doc.Text()
}
