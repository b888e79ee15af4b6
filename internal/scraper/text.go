package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockElements get a line break after their text so words in adjacent
// blocks do not run together.
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"table": true, "tr": true, "td": true, "th": true, "dd": true, "dt": true,
	"blockquote": true, "main": true, "nav": true, "aside": true,
}

// sourceSpace matches whitespace runs in the HTML source. Non-breaking spaces
// are content and are left alone.
var sourceSpace = regexp.MustCompile(`[ \t\n\r\f]+`)

// PageText strips markup from page and returns its visible text. Scripts,
// styles and templates are dropped. Whitespace inside text collapses to a
// single space, so line breaks in the result only mark block boundaries.
// Content that cannot be parsed as HTML is returned unchanged.
func PageText(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return page
	}

	doc.Find("script, style, noscript, template, head").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(sourceSpace.ReplaceAllString(n.Data, " "))
		return
	case html.CommentNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}
