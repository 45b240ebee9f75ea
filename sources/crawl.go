package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hazyhaar/docveille/extract"
	"github.com/hazyhaar/docveille/fetch"
)

// CrawlConfig configures a Crawl source.
type CrawlConfig struct {
	Name string
	// Seed is the crawl entry point; only pages on its host are visited.
	Seed string
	// PathPrefixes restricts followed links to paths starting with one of
	// these prefixes (leading slash optional). Empty means any same-host path.
	PathPrefixes []string
	// MaxPages bounds the traversal. Default: 500.
	MaxPages int
	// Delay is the pause between page fetches during the crawl itself.
	Delay         time.Duration
	Getter        fetch.Getter
	StripPatterns []*regexp.Regexp
	Logger        *slog.Logger
}

func (c *CrawlConfig) defaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 500
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Crawl monitors a documentation site by bounded breadth-first traversal
// from a seed URL. Each visited page is one section keyed by its canonical
// URL, so the same page reached through differently fragmented or
// query-decorated links counts once. Pages fetched during the crawl are
// cached for the run; section fetches never re-GET them.
type Crawl struct {
	config CrawlConfig
	bodies map[string][]byte // run-scoped, keyed by canonical URL
}

// NewCrawl creates a Crawl source.
func NewCrawl(cfg CrawlConfig) *Crawl {
	cfg.defaults()
	return &Crawl{config: cfg, bodies: map[string][]byte{}}
}

func (c *Crawl) Name() string { return c.config.Name }

// Discover traverses the site and returns one section per reachable page.
// A failed seed fetch is fatal; a failure on any other page only drops that
// page from the run.
func (c *Crawl) Discover(ctx context.Context) (map[string]string, error) {
	seedURL, err := url.Parse(c.config.Seed)
	if err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	seed, ok := canonicalURL(seedURL, c.config.Seed)
	if !ok {
		return nil, fmt.Errorf("seed %q is not a crawlable URL", c.config.Seed)
	}

	sections := make(map[string]string)
	visited := map[string]bool{seed: true}
	queue := []string{seed}

	for len(queue) > 0 && len(sections) < c.config.MaxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := queue[0]
		queue = queue[1:]

		body, err := c.config.Getter.Get(ctx, page)
		if err != nil {
			if page == seed {
				return nil, fmt.Errorf("fetch seed: %w", err)
			}
			c.config.Logger.Warn("crawl: page fetch failed, skipping",
				"target", c.config.Name, "url", page, "error", err)
			c.pause(ctx)
			continue
		}
		c.bodies[page] = body

		title, err := extract.PageTitle(body)
		if err != nil || title == "" {
			title = page
		}
		sections[page] = title

		links, err := extract.Links(body)
		if err != nil {
			c.config.Logger.Warn("crawl: link extraction failed",
				"target", c.config.Name, "url", page, "error", err)
			c.pause(ctx)
			continue
		}
		pageURL, err := url.Parse(page)
		if err != nil {
			c.pause(ctx)
			continue
		}
		for _, href := range links {
			next, ok := canonicalURL(pageURL, href)
			if !ok || visited[next] {
				continue
			}
			if !c.inScope(seedURL, next) {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
		}
		c.pause(ctx)
	}

	c.config.Logger.Info("crawl: traversal complete",
		"target", c.config.Name, "pages", len(sections), "frontier", len(queue))
	return sections, nil
}

// Fetch returns the normalized text of one crawled page, from the run cache
// when the crawl already visited it.
func (c *Crawl) Fetch(ctx context.Context, id string) (string, error) {
	body, err := c.page(ctx, id)
	if err != nil {
		return "", err
	}
	text, err := extract.Text(body)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return extract.StripPatterns(text, c.config.StripPatterns), nil
}

// Rendered returns the page as markdown for content retention.
func (c *Crawl) Rendered(ctx context.Context, id string) (string, error) {
	body, err := c.page(ctx, id)
	if err != nil {
		return "", err
	}
	return extract.Markdown(body)
}

func (c *Crawl) SectionURL(id string) string { return id }

// Reset drops the run-scoped page cache.
func (c *Crawl) Reset() { c.bodies = map[string][]byte{} }

func (c *Crawl) page(ctx context.Context, id string) ([]byte, error) {
	if body, ok := c.bodies[id]; ok {
		return body, nil
	}
	body, err := c.config.Getter.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.bodies[id] = body
	return body, nil
}

// inScope reports whether a canonical URL stays on the seed's host and
// under one of the configured path prefixes.
func (c *Crawl) inScope(seed *url.URL, canonical string) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	if u.Host != strings.ToLower(seed.Host) {
		return false
	}
	if len(c.config.PathPrefixes) == 0 {
		return true
	}
	path := strings.TrimPrefix(u.Path, "/")
	for _, prefix := range c.config.PathPrefixes {
		if strings.HasPrefix(path, strings.TrimPrefix(prefix, "/")) {
			return true
		}
	}
	return false
}

func (c *Crawl) pause(ctx context.Context) {
	if c.config.Delay <= 0 {
		return
	}
	select {
	case <-time.After(c.config.Delay):
	case <-ctx.Done():
	}
}

// canonicalURL resolves href against base and normalizes it into a stable
// section key: lowercase scheme and host, fragment and query stripped,
// trailing slash removed. Non-http(s) and malformed links return ok=false.
func canonicalURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}

	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = ""
	u.Path = strings.TrimRight(u.Path, "/")

	return u.String(), true
}
