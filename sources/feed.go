package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/docveille/feed"
	"github.com/hazyhaar/docveille/fetch"
)

// FeedConfig configures a Feed source.
type FeedConfig struct {
	Name    string
	FeedURL string
	// Keywords filter entries: an entry is kept when its title or one of its
	// categories contains any keyword (case-insensitive). Empty keeps all.
	Keywords []string
	Getter   fetch.Getter
}

// Feed monitors an RSS/Atom announcement feed. Each matching entry is one
// section keyed by its link, so a republished entry with the same link stays
// one section. The feed document is fetched and parsed once per run.
type Feed struct {
	config FeedConfig
	cached *feed.Feed // run-scoped
}

// NewFeed creates a Feed source.
func NewFeed(cfg FeedConfig) *Feed {
	return &Feed{config: cfg}
}

func (f *Feed) Name() string { return f.config.Name }

// Discover fetches the feed and returns the keyword-matching entries.
func (f *Feed) Discover(ctx context.Context) (map[string]string, error) {
	parsed, err := f.feed(ctx)
	if err != nil {
		return nil, err
	}
	sections := make(map[string]string)
	for _, e := range parsed.Entries {
		if !f.matches(e) {
			continue
		}
		id := entryID(e)
		if id == "" {
			continue
		}
		sections[id] = e.Title
	}
	return sections, nil
}

// Fetch returns the entry's full text: title, date, link, description, and
// categories. Any change to these fields changes the digest.
func (f *Feed) Fetch(ctx context.Context, id string) (string, error) {
	parsed, err := f.feed(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range parsed.Entries {
		if entryID(e) != id {
			continue
		}
		parts := []string{e.Title, e.Published, e.Link, e.Description}
		if len(e.Categories) > 0 {
			parts = append(parts, strings.Join(e.Categories, ", "))
		}
		fields := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				fields = append(fields, p)
			}
		}
		return strings.Join(fields, "\n"), nil
	}
	return "", fmt.Errorf("entry %q not in feed", id)
}

func (f *Feed) SectionURL(id string) string { return id }

// Reset drops the run-scoped parsed feed.
func (f *Feed) Reset() { f.cached = nil }

func (f *Feed) feed(ctx context.Context) (*feed.Feed, error) {
	if f.cached != nil {
		return f.cached, nil
	}
	body, err := f.config.Getter.Get(ctx, f.config.FeedURL)
	if err != nil {
		return nil, err
	}
	parsed, err := feed.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	f.cached = parsed
	return parsed, nil
}

func (f *Feed) matches(e feed.Entry) bool {
	if len(f.config.Keywords) == 0 {
		return true
	}
	title := strings.ToLower(e.Title)
	for _, kw := range f.config.Keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(title, kw) {
			return true
		}
		for _, cat := range e.Categories {
			if strings.Contains(strings.ToLower(cat), kw) {
				return true
			}
		}
	}
	return false
}

func entryID(e feed.Entry) string {
	if e.Link != "" {
		return e.Link
	}
	return e.GUID
}
