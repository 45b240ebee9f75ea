package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docveille.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const fullConfig = `
state_dir: /var/lib/docveille
request_timeout: 20s
politeness_delay: 500ms
save_content: true
telegram:
  bot_token: ${DOCVEILLE_BOT_TOKEN}
  chat_id: "-1001234"
webhook:
  url: https://hooks.example.com/docs
  secret: ${DOCVEILLE_WEBHOOK_SECRET}
targets:
  - name: binance
    kind: anchors
    docs:
      spot: https://docs.example.com/spot
      derivatives: https://docs.example.com/derivatives
  - name: deribit
    kind: crawl
    seed: https://docs.deribit.example.com
    path_prefixes: [articles/, api-reference/]
    max_pages: 1000
    notify:
      additions: true
  - name: bitmex
    kind: feed
    feed_url: https://blog.example.com/rss
    keywords: [api, update]
  - name: coinbase
    kind: static
    pages:
      - url: https://docs.example.com/exchange
        title: Exchange API
    strip_patterns: ['Last updated\s+\d+ \w+ ago']
  - name: hyperliquid
    kind: crawl
    seed: https://docs.hyperliquid.example.com
    render: true
`

func TestLoadFile_FullConfig(t *testing.T) {
	t.Setenv("DOCVEILLE_BOT_TOKEN", "123:abc")
	t.Setenv("DOCVEILLE_WEBHOOK_SECRET", "s3cret")

	cfg, err := LoadFile(writeConfig(t, fullConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.RequestTimeout != 20*time.Second || cfg.PolitenessDelay != 500*time.Millisecond {
		t.Errorf("durations = %v / %v", cfg.RequestTimeout, cfg.PolitenessDelay)
	}
	if !cfg.SaveContent {
		t.Error("save_content not parsed")
	}
	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("env expansion failed: %q", cfg.Telegram.BotToken)
	}
	if cfg.Webhook.Secret != "s3cret" {
		t.Errorf("webhook secret = %q", cfg.Webhook.Secret)
	}
	if len(cfg.Targets) != 5 {
		t.Fatalf("targets = %d", len(cfg.Targets))
	}

	deribit := cfg.Targets[1]
	if deribit.Kind != "crawl" || deribit.MaxPages != 1000 {
		t.Errorf("deribit = %+v", deribit)
	}
	if deribit.Notify == nil || !deribit.Notify.Additions || deribit.Notify.Modifications {
		t.Errorf("deribit gates = %+v", deribit.Notify)
	}

	hyper := cfg.Targets[4]
	if !hyper.Render {
		t.Error("render flag not parsed")
	}
	if hyper.MaxPages != 500 {
		t.Errorf("crawl max_pages default = %d, want 500", hyper.MaxPages)
	}

	patterns, err := cfg.Targets[3].CompilePatterns()
	if err != nil {
		t.Fatalf("compile patterns: %v", err)
	}
	if len(patterns) != 1 || !patterns[0].MatchString("Last updated 3 days ago") {
		t.Errorf("pattern did not compile as expected")
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
targets:
  - name: coinbase
    kind: static
    pages: [{url: "https://docs.example.com/x", title: X}]
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "state" || cfg.StateBackend != "file" {
		t.Errorf("state defaults = %q / %q", cfg.StateDir, cfg.StateBackend)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("request_timeout default = %v", cfg.RequestTimeout)
	}
	if cfg.PolitenessDelay != 300*time.Millisecond {
		t.Errorf("politeness_delay default = %v", cfg.PolitenessDelay)
	}
	if cfg.CheckInterval != 6*time.Hour {
		t.Errorf("check_interval default = %v", cfg.CheckInterval)
	}
	if got := cfg.SnapshotPath("coinbase"); got != filepath.Join("state", "coinbase_docs_state.json") {
		t.Errorf("snapshot path = %q", got)
	}
	if cfg.SQLitePath != filepath.Join("state", "docveille.db") {
		t.Errorf("sqlite path = %q", cfg.SQLitePath)
	}
}

func TestLoadFile_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no targets", `state_dir: s`, "no targets"},
		{"unknown kind", `
targets: [{name: x, kind: scrape}]`, "unknown kind"},
		{"missing seed", `
targets: [{name: x, kind: crawl}]`, "needs seed"},
		{"missing feed url", `
targets: [{name: x, kind: feed}]`, "needs feed_url"},
		{"missing docs", `
targets: [{name: x, kind: anchors}]`, "needs docs"},
		{"missing pages", `
targets: [{name: x, kind: static}]`, "needs pages"},
		{"duplicate names", `
targets:
  - {name: x, kind: feed, feed_url: "https://a"}
  - {name: x, kind: feed, feed_url: "https://b"}`, "duplicate"},
		{"bad pattern", `
targets:
  - name: x
    kind: feed
    feed_url: "https://a"
    strip_patterns: ['[unclosed']`, "strip_pattern"},
		{"bad backend", `
state_backend: redis
targets: [{name: x, kind: feed, feed_url: "https://a"}]`, "state_backend"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}
