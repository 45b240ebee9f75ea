// Package sources implements the section discovery strategies: a static
// page manifest, anchored headings on configured documents, a bounded
// same-host crawl, and a keyword-filtered feed. Each source is a
// self-contained struct configured at construction; sources share no state
// with each other and satisfy monitor.Source.
package sources

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hazyhaar/docveille/extract"
	"github.com/hazyhaar/docveille/fetch"
)

// Page is one entry of a static manifest. Its URL doubles as the section id.
type Page struct {
	URL   string
	Title string
}

// StaticConfig configures a Static source.
type StaticConfig struct {
	Name          string
	Pages         []Page
	Getter        fetch.Getter
	StripPatterns []*regexp.Regexp
}

// Static monitors a fixed set of pages, one section per page. Discovery is
// a manifest lookup and never fails, so a target using it is only ever
// affected by per-page fetch errors.
type Static struct {
	config StaticConfig
	titles map[string]string
	bodies map[string][]byte // run-scoped, keyed by URL
}

// NewStatic creates a Static source from its manifest.
func NewStatic(cfg StaticConfig) *Static {
	titles := make(map[string]string, len(cfg.Pages))
	for _, p := range cfg.Pages {
		titles[p.URL] = p.Title
	}
	return &Static{config: cfg, titles: titles, bodies: map[string][]byte{}}
}

func (s *Static) Name() string { return s.config.Name }

// Discover returns the manifest as id → title.
func (s *Static) Discover(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.titles))
	for id, title := range s.titles {
		out[id] = title
	}
	return out, nil
}

// Fetch retrieves the page and returns its normalized text.
func (s *Static) Fetch(ctx context.Context, id string) (string, error) {
	if _, ok := s.titles[id]; !ok {
		return "", fmt.Errorf("unknown page %q", id)
	}
	body, err := s.page(ctx, id)
	if err != nil {
		return "", err
	}
	text, err := extract.Text(body)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return extract.StripPatterns(text, s.config.StripPatterns), nil
}

// Rendered returns the page as markdown for content retention.
func (s *Static) Rendered(ctx context.Context, id string) (string, error) {
	body, err := s.page(ctx, id)
	if err != nil {
		return "", err
	}
	return extract.Markdown(body)
}

func (s *Static) SectionURL(id string) string { return id }

// Reset drops the run-scoped page cache.
func (s *Static) Reset() { s.bodies = map[string][]byte{} }

func (s *Static) page(ctx context.Context, url string) ([]byte, error) {
	if body, ok := s.bodies[url]; ok {
		return body, nil
	}
	body, err := s.config.Getter.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	s.bodies[url] = body
	return body, nil
}
