// Package config loads the monitoring configuration from a YAML file:
// global politeness and state settings, notification credentials, and one
// entry per monitored target.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	// StateDir holds per-target snapshot files. Default: "state".
	StateDir string `yaml:"state_dir"`
	// StateBackend selects snapshot persistence: "file" or "sqlite".
	StateBackend string `yaml:"state_backend"`
	// SQLitePath locates the sqlite database when StateBackend is "sqlite".
	// Default: {state_dir}/docveille.db.
	SQLitePath string `yaml:"sqlite_path"`

	RequestTimeout  time.Duration `yaml:"request_timeout"`
	PolitenessDelay time.Duration `yaml:"politeness_delay"`
	SaveContent     bool          `yaml:"save_content"`
	UserAgent       string        `yaml:"user_agent"`
	LogLevel        string        `yaml:"log_level"`

	// CheckInterval is the pause between full passes in daemon mode.
	CheckInterval time.Duration `yaml:"check_interval"`
	// StatusAddr, when set, serves the HTTP status endpoints.
	StatusAddr string `yaml:"status_addr"`
	// BrowserRemote points render-enabled targets at an already running
	// Chrome DevTools endpoint instead of launching one.
	BrowserRemote string `yaml:"browser_remote"`

	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`

	Targets []TargetConfig `yaml:"targets"`
}

// TelegramConfig holds bot credentials. Values support ${ENV_VAR}
// expansion so tokens stay out of the file.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// WebhookConfig holds the report webhook endpoint. Values support
// ${ENV_VAR} expansion.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// GatesConfig selects which change categories notify for one target.
// An absent block notifies everything.
type GatesConfig struct {
	Additions     bool `yaml:"additions"`
	Modifications bool `yaml:"modifications"`
	Deletions     bool `yaml:"deletions"`
}

// PageConfig is one entry of a static target's manifest.
type PageConfig struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"`
}

// TargetConfig describes one monitored documentation target. Kind selects
// the discovery strategy; the kind-specific fields below it apply.
type TargetConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"` // static | anchors | crawl | feed
	// Render fetches pages through the headless browser instead of plain
	// HTTP, for sites that only materialize content via JavaScript.
	Render bool `yaml:"render"`
	// StripPatterns are regexes removed from extracted text before
	// fingerprinting, for volatile fragments like "Last updated 3 days ago".
	StripPatterns []string     `yaml:"strip_patterns"`
	Notify        *GatesConfig `yaml:"notify"`

	// anchors
	Docs map[string]string `yaml:"docs"`

	// crawl
	Seed         string   `yaml:"seed"`
	PathPrefixes []string `yaml:"path_prefixes"`
	MaxPages     int      `yaml:"max_pages"`

	// feed
	FeedURL  string   `yaml:"feed_url"`
	Keywords []string `yaml:"keywords"`

	// static
	Pages []PageConfig `yaml:"pages"`
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.expandEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StateDir == "" {
		c.StateDir = "state"
	}
	if c.StateBackend == "" {
		c.StateBackend = "file"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = filepath.Join(c.StateDir, "docveille.db")
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.PolitenessDelay <= 0 {
		c.PolitenessDelay = 300 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 6 * time.Hour
	}
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Kind == "crawl" && t.MaxPages <= 0 {
			t.MaxPages = 500
		}
	}
}

// expandEnv resolves ${VAR} references in credential fields.
func (c *Config) expandEnv() {
	c.Telegram.BotToken = os.ExpandEnv(c.Telegram.BotToken)
	c.Telegram.ChatID = os.ExpandEnv(c.Telegram.ChatID)
	c.Webhook.URL = os.ExpandEnv(c.Webhook.URL)
	c.Webhook.Secret = os.ExpandEnv(c.Webhook.Secret)
}

func (c *Config) validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	if c.StateBackend != "file" && c.StateBackend != "sqlite" {
		return fmt.Errorf("unknown state_backend %q", c.StateBackend)
	}

	seen := map[string]bool{}
	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Name == "" {
			return fmt.Errorf("target %d: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target name %q", t.Name)
		}
		seen[t.Name] = true

		switch t.Kind {
		case "static":
			if len(t.Pages) == 0 {
				return fmt.Errorf("target %s: static needs pages", t.Name)
			}
			for _, p := range t.Pages {
				if p.URL == "" {
					return fmt.Errorf("target %s: page without url", t.Name)
				}
			}
		case "anchors":
			if len(t.Docs) == 0 {
				return fmt.Errorf("target %s: anchors needs docs", t.Name)
			}
		case "crawl":
			if t.Seed == "" {
				return fmt.Errorf("target %s: crawl needs seed", t.Name)
			}
		case "feed":
			if t.FeedURL == "" {
				return fmt.Errorf("target %s: feed needs feed_url", t.Name)
			}
		default:
			return fmt.Errorf("target %s: unknown kind %q", t.Name, t.Kind)
		}

		if _, err := t.CompilePatterns(); err != nil {
			return fmt.Errorf("target %s: %w", t.Name, err)
		}
	}
	return nil
}

// SnapshotPath returns the file-backend snapshot location for one target.
func (c *Config) SnapshotPath(target string) string {
	return filepath.Join(c.StateDir, target+"_docs_state.json")
}

// CompilePatterns compiles the target's strip_patterns.
func (t *TargetConfig) CompilePatterns() ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(t.StripPatterns))
	for _, p := range t.StripPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("strip_pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}
