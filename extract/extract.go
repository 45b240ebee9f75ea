// Package extract pulls monitorable text out of documentation HTML.
//
// It offers three views over a parsed page:
//   - whole-page text (navigation, scripts, and other boilerplate stripped)
//   - the anchored headings a page exposes (each one a trackable section)
//   - the text of a single anchored section, scoped by the heading-boundary
//     rule (see SectionText)
//
// All parsing is done with golang.org/x/net/html. Extracted text is
// whitespace-normalized so that digests are stable against markup-only edits.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Heading is an anchored heading element found in a document.
type Heading struct {
	ID    string // value of the id attribute
	Level int    // 1 for h1 … 6 for h6
	Title string // heading text, cleaned
}

// Text returns the normalized visible text of a whole page.
// Script, style, nav, header, footer, and class-matched boilerplate
// (sidebar, toc, menu, …) are excluded.
func Text(rawHTML []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return CleanText(collectText(doc)), nil
}

// PageTitle returns a human label for a page: the first <h1> text,
// falling back to the <title> element, then empty.
func PageTitle(rawHTML []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	if h1 := findFirst(doc, atom.H1); h1 != nil {
		if t := CleanText(collectText(h1)); t != "" {
			return t, nil
		}
	}
	if title := findFirst(doc, atom.Title); title != nil && title.FirstChild != nil {
		return CleanText(title.FirstChild.Data), nil
	}
	return "", nil
}

// Headings returns all heading elements (h1–h6) carrying an id attribute,
// in document order. Headings inside boilerplate subtrees are skipped, and
// a duplicate id is reported only once (first occurrence wins).
func Headings(rawHTML []byte) ([]Heading, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []Heading
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isBoilerplate(n) || isNonContent(n) {
			return
		}
		if lvl := headingLevel(n); lvl > 0 {
			if id := attrValue(n, "id"); id != "" && !seen[id] {
				title := CleanText(collectText(n))
				if title != "" {
					seen[id] = true
					out = append(out, Heading{ID: id, Level: lvl, Title: title})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

// Links returns the href values of all anchors in the document, in order.
// Fragment-only and empty hrefs are skipped; values are returned raw, the
// caller resolves them against the page URL.
func Links(rawHTML []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href := strings.TrimSpace(attrValue(n, "href"))
			if href != "" && !strings.HasPrefix(href, "#") {
				out = append(out, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

// headingLevel returns 1–6 for h1–h6 elements, 0 otherwise.
func headingLevel(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// collectText extracts visible text from a subtree, skipping non-content
// elements and boilerplate containers.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
			return
		}
		if isNonContent(n) || isBoilerplate(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// isNonContent reports whether an element never contributes monitorable text.
func isNonContent(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript,
		atom.Nav, atom.Footer, atom.Header, atom.Aside:
		return true
	}
	return false
}

// isBoilerplate reports whether an element looks like page chrome based on
// its class/id/role. Sidebars and tables of contents repeat on every page of
// a doc site and would make every section appear modified whenever the site
// navigation changes.
func isBoilerplate(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		switch attr.Key {
		case "class", "id":
			lower := strings.ToLower(attr.Val)
			for _, pattern := range boilerplatePatterns {
				if strings.Contains(lower, pattern) {
					return true
				}
			}
		case "role":
			switch attr.Val {
			case "navigation", "banner", "contentinfo", "complementary":
				return true
			}
		}
	}
	return false
}

var boilerplatePatterns = []string{
	"sidebar", "breadcrumb", "cookie", "advert",
	"social", "share", "popup", "modal", "table-of-contents", "toc-",
}
