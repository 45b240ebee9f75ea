// Package fetch retrieves raw page bytes for the section sources.
//
// Two implementations of the Getter contract exist: Client, a plain HTTP
// fetcher that covers static doc sites, and Renderer, a headless-browser
// fetcher for sites that only materialize their content through JavaScript.
// Which one a target uses is decided at construction time from its config.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Getter retrieves the body of a URL. A non-2xx status or transport error
// is returned as an error; callers treat any error as a failed fetch of
// that one page, never as a fatal condition for the whole run.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config configures the HTTP Client.
type Config struct {
	Timeout   time.Duration // per-request timeout. Default: 15s.
	MaxBytes  int64         // max response body size. Default: 10MB.
	UserAgent string        // sent with every request.
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; docveille/1.0)"
	}
}

// Client is the HTTP-only Getter.
type Client struct {
	client *http.Client
	config Config
}

// NewClient creates a Client with a bounded, validated redirect chain.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validateURL(req.URL); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// validateURL rejects targets that leave the web: only http and https URLs
// with a host are fetched. A redirecting doc site must not be able to point
// the fetcher at another scheme.
func validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsafe scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Get retrieves a URL. The body read is capped at MaxBytes.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if err := validateURL(req.URL); err != nil {
		return nil, fmt.Errorf("url blocked: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
