package sources

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hazyhaar/docveille/extract"
	"github.com/hazyhaar/docveille/fetch"
)

// AnchorsConfig configures an Anchors source.
type AnchorsConfig struct {
	Name string
	// Docs maps a short document key ("spot", "derivatives") to its URL.
	// The key prefixes every section id so the same anchor on two documents
	// stays distinct.
	Docs          map[string]string
	Getter        fetch.Getter
	StripPatterns []*regexp.Regexp
}

// Anchors monitors anchored headings on one or more documents. Every h1–h6
// element carrying an id attribute is a section, keyed "{docKey}:{anchorID}".
// Documents are fetched once per run and served from the run cache for every
// section fetch against them.
type Anchors struct {
	config AnchorsConfig
	bodies map[string][]byte // run-scoped, keyed by doc key
}

// NewAnchors creates an Anchors source.
func NewAnchors(cfg AnchorsConfig) *Anchors {
	return &Anchors{config: cfg, bodies: map[string][]byte{}}
}

func (a *Anchors) Name() string { return a.config.Name }

// Discover fetches every configured document and enumerates its anchored
// headings. A failure on any document is fatal: a partial heading list would
// turn the missing document's sections into spurious deletions.
func (a *Anchors) Discover(ctx context.Context) (map[string]string, error) {
	sections := make(map[string]string)

	keys := make([]string, 0, len(a.config.Docs))
	for k := range a.config.Docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		body, err := a.doc(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("doc %s: %w", key, err)
		}
		headings, err := extract.Headings(body)
		if err != nil {
			return nil, fmt.Errorf("doc %s: %w", key, err)
		}
		for _, h := range headings {
			sections[key+":"+h.ID] = h.Title
		}
	}
	return sections, nil
}

// Fetch returns the boundary-scoped text of one anchored section, served
// from the document cached during discovery.
func (a *Anchors) Fetch(ctx context.Context, id string) (string, error) {
	key, anchorID, err := splitID(id)
	if err != nil {
		return "", err
	}
	body, err := a.doc(ctx, key)
	if err != nil {
		return "", err
	}
	text, err := extract.SectionText(body, anchorID)
	if err != nil {
		return "", err
	}
	return extract.StripPatterns(text, a.config.StripPatterns), nil
}

// Rendered returns the section as markdown for content retention.
func (a *Anchors) Rendered(ctx context.Context, id string) (string, error) {
	key, anchorID, err := splitID(id)
	if err != nil {
		return "", err
	}
	body, err := a.doc(ctx, key)
	if err != nil {
		return "", err
	}
	return extract.SectionMarkdown(body, anchorID)
}

// SectionURL links straight to the anchor.
func (a *Anchors) SectionURL(id string) string {
	key, anchorID, err := splitID(id)
	if err != nil {
		return ""
	}
	base, ok := a.config.Docs[key]
	if !ok {
		return ""
	}
	return base + "#" + anchorID
}

// Reset drops the run-scoped document cache.
func (a *Anchors) Reset() { a.bodies = map[string][]byte{} }

func (a *Anchors) doc(ctx context.Context, key string) ([]byte, error) {
	if body, ok := a.bodies[key]; ok {
		return body, nil
	}
	url, ok := a.config.Docs[key]
	if !ok {
		return nil, fmt.Errorf("unknown doc key %q", key)
	}
	body, err := a.config.Getter.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	a.bodies[key] = body
	return body, nil
}

// splitID splits "{docKey}:{anchorID}" on the first colon; anchor ids may
// themselves contain colons.
func splitID(id string) (string, string, error) {
	key, anchor, ok := strings.Cut(id, ":")
	if !ok || key == "" || anchor == "" {
		return "", "", fmt.Errorf("malformed section id %q", id)
	}
	return key, anchor, nil
}
