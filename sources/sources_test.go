package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
)

// fakeGetter serves canned bodies and counts requests per URL.
type fakeGetter struct {
	bodies map[string]string
	fails  map[string]bool
	gets   map[string]int
}

func newFakeGetter(bodies map[string]string) *fakeGetter {
	return &fakeGetter{bodies: bodies, fails: map[string]bool{}, gets: map[string]int{}}
}

func (g *fakeGetter) Get(_ context.Context, url string) ([]byte, error) {
	g.gets[url]++
	if g.fails[url] {
		return nil, errors.New("connection refused")
	}
	body, ok := g.bodies[url]
	if !ok {
		return nil, fmt.Errorf("http 404")
	}
	return []byte(body), nil
}

func (g *fakeGetter) total() int {
	n := 0
	for _, c := range g.gets {
		n += c
	}
	return n
}

func TestStatic_DiscoverAndFetch(t *testing.T) {
	getter := newFakeGetter(map[string]string{
		"https://docs.example.com/api": `<html><head><title>API</title></head>
			<body><nav>skip me</nav><h1>API Reference</h1><p>rate limits apply</p></body></html>`,
	})
	src := NewStatic(StaticConfig{
		Name:   "coinbase",
		Pages:  []Page{{URL: "https://docs.example.com/api", Title: "Exchange API"}},
		Getter: getter,
	})

	sections, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if sections["https://docs.example.com/api"] != "Exchange API" {
		t.Errorf("sections = %v", sections)
	}

	text, err := src.Fetch(context.Background(), "https://docs.example.com/api")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(text, "rate limits apply") {
		t.Errorf("text = %q", text)
	}
	if strings.Contains(text, "skip me") {
		t.Errorf("boilerplate leaked into text: %q", text)
	}

	if _, err := src.Fetch(context.Background(), "https://elsewhere.example.com"); err == nil {
		t.Error("unknown page must error")
	}
}

func TestStatic_RunCache(t *testing.T) {
	url := "https://docs.example.com/api"
	getter := newFakeGetter(map[string]string{url: `<html><body><p>content</p></body></html>`})
	src := NewStatic(StaticConfig{
		Name:   "coinbase",
		Pages:  []Page{{URL: url, Title: "API"}},
		Getter: getter,
	})
	ctx := context.Background()

	src.Fetch(ctx, url)
	src.Rendered(ctx, url)
	if getter.gets[url] != 1 {
		t.Errorf("gets = %d, want 1 (run cache)", getter.gets[url])
	}
	src.Reset()
	src.Fetch(ctx, url)
	if getter.gets[url] != 2 {
		t.Errorf("gets after reset = %d, want 2", getter.gets[url])
	}
}

func TestStatic_StripPatterns(t *testing.T) {
	url := "https://docs.example.com/api"
	getter := newFakeGetter(map[string]string{
		url: `<html><body><p>stable body</p><p>Last updated 3 days ago</p></body></html>`,
	})
	src := NewStatic(StaticConfig{
		Name:          "coinbase",
		Pages:         []Page{{URL: url, Title: "API"}},
		Getter:        getter,
		StripPatterns: []*regexp.Regexp{regexp.MustCompile(`Last updated\s+\d+ \w+ ago`)},
	})

	text, err := src.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if strings.Contains(text, "Last updated") {
		t.Errorf("volatile fragment not stripped: %q", text)
	}
	if !strings.Contains(text, "stable body") {
		t.Errorf("stable content lost: %q", text)
	}
}

const anchorsDoc = `<html><body>
<h1 id="overview">Overview</h1><p>intro text</p>
<h2 id="limits">Rate Limits</h2><p>1200 per minute</p>
<h2 id="auth">Authentication</h2><p>HMAC signed</p>
<h2>No Anchor Here</h2><p>untracked</p>
</body></html>`

func TestAnchors_DiscoverKeysByDoc(t *testing.T) {
	getter := newFakeGetter(map[string]string{
		"https://docs.example.com/spot":   anchorsDoc,
		"https://docs.example.com/margin": `<html><body><h1 id="overview">Margin</h1><p>margin intro</p></body></html>`,
	})
	src := NewAnchors(AnchorsConfig{
		Name: "binance",
		Docs: map[string]string{
			"spot":   "https://docs.example.com/spot",
			"margin": "https://docs.example.com/margin",
		},
		Getter: getter,
	})

	sections, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := map[string]string{
		"spot:overview":   "Overview",
		"spot:limits":     "Rate Limits",
		"spot:auth":       "Authentication",
		"margin:overview": "Margin",
	}
	if len(sections) != len(want) {
		t.Fatalf("sections = %v, want %v", sections, want)
	}
	for id, title := range want {
		if sections[id] != title {
			t.Errorf("sections[%q] = %q, want %q", id, sections[id], title)
		}
	}
}

func TestAnchors_FetchIsBoundaryScoped(t *testing.T) {
	getter := newFakeGetter(map[string]string{"https://docs.example.com/spot": anchorsDoc})
	src := NewAnchors(AnchorsConfig{
		Name:   "binance",
		Docs:   map[string]string{"spot": "https://docs.example.com/spot"},
		Getter: getter,
	})
	ctx := context.Background()

	text, err := src.Fetch(ctx, "spot:limits")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(text, "1200 per minute") {
		t.Errorf("section content missing: %q", text)
	}
	if strings.Contains(text, "HMAC signed") {
		t.Errorf("next section leaked across boundary: %q", text)
	}
}

func TestAnchors_OneGetPerDocPerRun(t *testing.T) {
	docURL := "https://docs.example.com/spot"
	getter := newFakeGetter(map[string]string{docURL: anchorsDoc})
	src := NewAnchors(AnchorsConfig{
		Name:   "binance",
		Docs:   map[string]string{"spot": docURL},
		Getter: getter,
	})
	ctx := context.Background()

	if _, err := src.Discover(ctx); err != nil {
		t.Fatalf("discover: %v", err)
	}
	for _, id := range []string{"spot:overview", "spot:limits", "spot:auth"} {
		if _, err := src.Fetch(ctx, id); err != nil {
			t.Fatalf("fetch %s: %v", id, err)
		}
	}
	if getter.gets[docURL] != 1 {
		t.Errorf("gets = %d, want 1 for discover + 3 fetches", getter.gets[docURL])
	}
}

func TestAnchors_SectionURL(t *testing.T) {
	src := NewAnchors(AnchorsConfig{
		Name:   "binance",
		Docs:   map[string]string{"spot": "https://docs.example.com/spot"},
		Getter: newFakeGetter(nil),
	})
	if got := src.SectionURL("spot:limits"); got != "https://docs.example.com/spot#limits" {
		t.Errorf("url = %q", got)
	}
	if got := src.SectionURL("nonsense"); got != "" {
		t.Errorf("malformed id should yield empty url, got %q", got)
	}
}

func TestAnchors_DiscoveryFailureIsFatal(t *testing.T) {
	getter := newFakeGetter(map[string]string{"https://docs.example.com/a": anchorsDoc})
	getter.fails["https://docs.example.com/b"] = true
	src := NewAnchors(AnchorsConfig{
		Name: "binance",
		Docs: map[string]string{
			"a": "https://docs.example.com/a",
			"b": "https://docs.example.com/b",
		},
		Getter: getter,
	})
	if _, err := src.Discover(context.Background()); err == nil {
		t.Error("a failed document must fail the whole discovery")
	}
}

func crawlSite() map[string]string {
	return map[string]string{
		"https://docs.example.com": `<html><body><h1>Home</h1>
			<a href="/articles/rate-limits">limits</a>
			<a href="/articles/rate-limits?utm=x#top">limits again</a>
			<a href="/articles/auth/">auth</a>
			<a href="/internal/secret">out of scope</a>
			<a href="https://other.example.com/articles/x">other host</a>
			<a href="mailto:docs@example.com">mail</a>
			</body></html>`,
		"https://docs.example.com/articles/rate-limits": `<html><body><h1>Rate Limits</h1><p>1200/min</p></body></html>`,
		"https://docs.example.com/articles/auth":        `<html><body><h1>Auth</h1><a href="/articles/rate-limits">back</a></body></html>`,
	}
}

func TestCrawl_BoundedCanonicalTraversal(t *testing.T) {
	getter := newFakeGetter(crawlSite())
	src := NewCrawl(CrawlConfig{
		Name:         "deribit",
		Seed:         "https://docs.example.com",
		PathPrefixes: []string{"articles/"},
		Getter:       getter,
	})

	sections, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := map[string]string{
		"https://docs.example.com":                      "Home",
		"https://docs.example.com/articles/rate-limits": "Rate Limits",
		"https://docs.example.com/articles/auth":        "Auth",
	}
	if len(sections) != len(want) {
		t.Fatalf("sections = %v, want %v", sections, want)
	}
	for id, title := range want {
		if sections[id] != title {
			t.Errorf("sections[%q] = %q, want %q", id, sections[id], title)
		}
	}
	// Fragment/query variant of rate-limits must not cost a second GET.
	if getter.gets["https://docs.example.com/articles/rate-limits"] != 1 {
		t.Errorf("canonical dedup broken: %v", getter.gets)
	}
}

func TestCrawl_MaxPagesBound(t *testing.T) {
	getter := newFakeGetter(crawlSite())
	src := NewCrawl(CrawlConfig{
		Name:         "deribit",
		Seed:         "https://docs.example.com",
		PathPrefixes: []string{"articles/"},
		MaxPages:     1,
		Getter:       getter,
	})

	sections, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(sections) != 1 {
		t.Errorf("sections = %d, want 1", len(sections))
	}
}

func TestCrawl_SubpageFailureSkipsOnlyThatPage(t *testing.T) {
	getter := newFakeGetter(crawlSite())
	getter.fails["https://docs.example.com/articles/auth"] = true
	src := NewCrawl(CrawlConfig{
		Name:         "deribit",
		Seed:         "https://docs.example.com",
		PathPrefixes: []string{"articles/"},
		Getter:       getter,
	})

	sections, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("subpage failure must not fail the crawl: %v", err)
	}
	if _, ok := sections["https://docs.example.com/articles/auth"]; ok {
		t.Error("failed page must not be discovered")
	}
	if _, ok := sections["https://docs.example.com/articles/rate-limits"]; !ok {
		t.Error("healthy page lost")
	}
}

func TestCrawl_SeedFailureIsFatal(t *testing.T) {
	getter := newFakeGetter(nil)
	src := NewCrawl(CrawlConfig{Name: "deribit", Seed: "https://docs.example.com", Getter: getter})
	if _, err := src.Discover(context.Background()); err == nil {
		t.Error("seed failure must fail discovery")
	}
}

func TestCrawl_FetchUsesRunCache(t *testing.T) {
	getter := newFakeGetter(crawlSite())
	src := NewCrawl(CrawlConfig{
		Name:         "deribit",
		Seed:         "https://docs.example.com",
		PathPrefixes: []string{"articles/"},
		Getter:       getter,
	})
	ctx := context.Background()

	if _, err := src.Discover(ctx); err != nil {
		t.Fatalf("discover: %v", err)
	}
	before := getter.total()
	text, err := src.Fetch(ctx, "https://docs.example.com/articles/rate-limits")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(text, "1200/min") {
		t.Errorf("text = %q", text)
	}
	if getter.total() != before {
		t.Errorf("fetch after crawl must be served from cache")
	}
}

func TestCanonicalURL(t *testing.T) {
	base, _ := url.Parse("https://Docs.Example.com/articles/intro")
	cases := []struct {
		href string
		want string
		ok   bool
	}{
		{"/articles/limits/", "https://docs.example.com/articles/limits", true},
		{"limits?b=2&a=1#frag", "https://docs.example.com/articles/limits", true},
		{"HTTPS://DOCS.EXAMPLE.COM/A", "https://docs.example.com/A", true},
		{"mailto:x@example.com", "", false},
		{"javascript:void(0)", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := canonicalURL(base, tc.href)
		if ok != tc.ok || got != tc.want {
			t.Errorf("canonicalURL(%q) = %q,%v want %q,%v", tc.href, got, ok, tc.want, tc.ok)
		}
	}
}

const rssBody = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Updates</title>
<item><title>API v2 launch</title><link>https://blog.example.com/api-v2</link>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
<description>New endpoints</description><category>API</category></item>
<item><title>Office party</title><link>https://blog.example.com/party</link>
<description>fun</description><category>culture</category></item>
<item><title>Maintenance window</title><link>https://blog.example.com/maint</link>
<description>downtime</description><category>product update</category></item>
</channel></rss>`

func TestFeed_KeywordFilter(t *testing.T) {
	feedURL := "https://blog.example.com/rss"
	getter := newFakeGetter(map[string]string{feedURL: rssBody})
	src := NewFeed(FeedConfig{
		Name:     "bitmex",
		FeedURL:  feedURL,
		Keywords: []string{"api", "update"},
		Getter:   getter,
	})

	sections, err := src.Discover(context.Background())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("sections = %v, want api-v2 (title match) and maint (category match)", sections)
	}
	if sections["https://blog.example.com/api-v2"] != "API v2 launch" {
		t.Errorf("title-matched entry missing: %v", sections)
	}
	if _, ok := sections["https://blog.example.com/maint"]; !ok {
		t.Errorf("category-matched entry missing: %v", sections)
	}
	if _, ok := sections["https://blog.example.com/party"]; ok {
		t.Error("non-matching entry kept")
	}
}

func TestFeed_FetchComposesEntryFields(t *testing.T) {
	feedURL := "https://blog.example.com/rss"
	getter := newFakeGetter(map[string]string{feedURL: rssBody})
	src := NewFeed(FeedConfig{Name: "bitmex", FeedURL: feedURL, Getter: getter})
	ctx := context.Background()

	if _, err := src.Discover(ctx); err != nil {
		t.Fatalf("discover: %v", err)
	}
	text, err := src.Fetch(ctx, "https://blog.example.com/api-v2")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, want := range []string{"API v2 launch", "New endpoints", "https://blog.example.com/api-v2", "API"} {
		if !strings.Contains(text, want) {
			t.Errorf("fetched text missing %q: %q", want, text)
		}
	}
	// Discover + fetch share the one feed GET.
	if getter.gets[feedURL] != 1 {
		t.Errorf("gets = %d, want 1", getter.gets[feedURL])
	}

	if _, err := src.Fetch(ctx, "https://blog.example.com/gone"); err == nil {
		t.Error("unknown entry must error")
	}
}

func TestFeed_ResetRefetches(t *testing.T) {
	feedURL := "https://blog.example.com/rss"
	getter := newFakeGetter(map[string]string{feedURL: rssBody})
	src := NewFeed(FeedConfig{Name: "bitmex", FeedURL: feedURL, Getter: getter})
	ctx := context.Background()

	src.Discover(ctx)
	src.Reset()
	src.Discover(ctx)
	if getter.gets[feedURL] != 2 {
		t.Errorf("gets = %d, want 2 after reset", getter.gets[feedURL])
	}
}
