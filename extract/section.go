package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SectionText returns the normalized text of one anchored section.
//
// The section starts at the element whose id attribute equals anchorID and
// includes its own heading text plus everything that follows in document
// order, up to but excluding the next heading whose level is less than or
// equal to the section's own level and whose id differs from anchorID.
// Script, style, nav, header, footer, and boilerplate subtrees are excluded
// regardless of position. Getting this boundary wrong in either direction
// causes false modifications on neighbouring sections, so the stop
// condition must not be loosened.
//
// If the anchored element is not a heading (some generators put the id on a
// wrapper), the section is that element's own subtree.
//
// Returns "" when anchorID is not present in the document.
func SectionText(rawHTML []byte, anchorID string) (string, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	anchor := findByID(doc, anchorID)
	if anchor == nil {
		return "", nil
	}

	level := headingLevel(anchor)
	if level == 0 {
		// Non-heading anchor: the element bounds its own content.
		return CleanText(collectText(anchor)), nil
	}

	var sb strings.Builder
	inSection := false
	done := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n.Type == html.ElementNode {
			if isNonContent(n) || isBoilerplate(n) {
				return
			}
			if lvl := headingLevel(n); lvl > 0 {
				switch {
				case n == anchor:
					inSection = true
				case inSection && lvl <= level && attrValue(n, "id") != anchorID:
					done = true
					return
				}
			}
		}
		if n.Type == html.TextNode && inSection {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return CleanText(sb.String()), nil
}

// SectionMarkdown renders one anchored section to markdown, for
// content-retention mode. The section's HTML nodes are re-serialized with
// the same boundary rule as SectionText, sanitized, and converted. Retained
// content never participates in change classification — the digest of the
// normalized text does.
func SectionMarkdown(rawHTML []byte, anchorID string) (string, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	anchor := findByID(doc, anchorID)
	if anchor == nil {
		return "", nil
	}

	var frag bytes.Buffer
	level := headingLevel(anchor)
	if level == 0 {
		if err := html.Render(&frag, anchor); err != nil {
			return "", fmt.Errorf("render section: %w", err)
		}
	} else {
		inSection := false
		done := false
		var walk func(*html.Node) error
		walk = func(n *html.Node) error {
			if done {
				return nil
			}
			if n.Type == html.ElementNode {
				if isNonContent(n) || isBoilerplate(n) {
					return nil
				}
				if lvl := headingLevel(n); lvl > 0 {
					switch {
					case n == anchor:
						inSection = true
					case inSection && lvl <= level && attrValue(n, "id") != anchorID:
						done = true
						return nil
					}
				}
				// Serialize in-section elements whole unless a boundary
				// heading hides inside; then descend so the stop condition
				// still fires.
				if inSection && !containsBoundary(n, anchor, level, anchorID) {
					return html.Render(&frag, n)
				}
			}
			if n.Type == html.TextNode && inSection {
				return html.Render(&frag, n)
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if err := walk(c); err != nil {
					return err
				}
			}
			return nil
		}
		if err := walk(doc); err != nil {
			return "", fmt.Errorf("render section: %w", err)
		}
	}

	sanitized := sectionSanitizer.Sanitize(frag.String())
	md, err := sectionConverter.ConvertString(sanitized)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// Markdown renders a whole page to markdown, boilerplate subtrees removed.
// Used for content retention on sources whose section unit is the full page.
func Markdown(rawHTML []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var frag bytes.Buffer
	var walk func(*html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode {
			if isNonContent(n) || isBoilerplate(n) {
				return nil
			}
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (isNonContent(c) || isBoilerplate(c)) {
					continue
				}
				if err := html.Render(&frag, c); err != nil {
					return err
				}
			}
			return nil
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(doc); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}

	sanitized := sectionSanitizer.Sanitize(frag.String())
	md, err := sectionConverter.ConvertString(sanitized)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// sectionSanitizer strips event handlers, styles, and embedded scripts from
// retained section HTML before conversion.
var sectionSanitizer = bluemonday.UGCPolicy()

var sectionConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// containsBoundary reports whether a subtree other than the anchor itself
// holds a heading that would terminate the section.
func containsBoundary(n, anchor *html.Node, level int, anchorID string) bool {
	if n != anchor {
		if lvl := headingLevel(n); lvl > 0 && lvl <= level && attrValue(n, "id") != anchorID {
			return true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsBoundary(c, anchor, level, anchorID) {
			return true
		}
	}
	return false
}

// findByID returns the first element with the given id attribute.
func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && attrValue(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
