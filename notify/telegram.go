package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hazyhaar/docveille/monitor"
)

// telegramEntryLimit caps the entries listed per category; the counts in
// the header stay exact.
const telegramEntryLimit = 10

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Gates    Gates
	// Timeout bounds the sendMessage call. Default: 10s.
	Timeout time.Duration
	// BaseURL overrides the bot API endpoint, for tests.
	BaseURL string
}

func (c *TelegramConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://api.telegram.org"
	}
}

// Telegram sends change reports as Markdown messages through the bot API.
// It stays silent when credentials are missing or when no gated-in category
// changed.
type Telegram struct {
	config TelegramConfig
	client *http.Client
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(cfg TelegramConfig) *Telegram {
	cfg.defaults()
	return &Telegram{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Notify formats and sends the report. A nil return on a silent skip is
// deliberate: missing credentials or a no-change report are not failures.
func (t *Telegram) Notify(ctx context.Context, report *monitor.Report) error {
	if t.config.BotToken == "" || t.config.ChatID == "" {
		return nil
	}
	if t.config.Gates.relevant(report) == 0 {
		return nil
	}

	payload := map[string]any{
		"chat_id":                  t.config.ChatID,
		"text":                     t.format(report),
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.config.BaseURL, t.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram: sendMessage returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (t *Telegram) format(r *monitor.Report) string {
	gates := t.config.Gates
	var sb strings.Builder

	fmt.Fprintf(&sb, "*%s documentation changed*\n\n", r.Target)
	fmt.Fprintf(&sb, "Total changes: *%d*\n", gates.relevant(r))
	fmt.Fprintf(&sb, "%s\n\n", r.Timestamp)

	if (gates.open() || gates.Additions) && len(r.New) > 0 {
		fmt.Fprintf(&sb, "*NEW (%d)*\n", len(r.New))
		for i, e := range r.New {
			if i == telegramEntryLimit {
				fmt.Fprintf(&sb, "  ... and %d more\n", len(r.New)-telegramEntryLimit)
				break
			}
			writeEntry(&sb, e.Title, e.URL)
		}
		sb.WriteByte('\n')
	}

	if (gates.open() || gates.Modifications) && len(r.Modified) > 0 {
		fmt.Fprintf(&sb, "*MODIFIED (%d)*\n", len(r.Modified))
		for i, e := range r.Modified {
			if i == telegramEntryLimit {
				fmt.Fprintf(&sb, "  ... and %d more\n", len(r.Modified)-telegramEntryLimit)
				break
			}
			writeEntry(&sb, e.Title, e.URL)
		}
		sb.WriteByte('\n')
	}

	if (gates.open() || gates.Deletions) && len(r.Deleted) > 0 {
		fmt.Fprintf(&sb, "*DELETED (%d)*\n", len(r.Deleted))
		for i, e := range r.Deleted {
			if i == telegramEntryLimit {
				fmt.Fprintf(&sb, "  ... and %d more\n", len(r.Deleted)-telegramEntryLimit)
				break
			}
			writeEntry(&sb, e.Title, "")
		}
		sb.WriteByte('\n')
	}

	return strings.TrimRight(sb.String(), "\n")
}

func writeEntry(sb *strings.Builder, title, url string) {
	fmt.Fprintf(sb, "  • %s\n", title)
	if url != "" {
		fmt.Fprintf(sb, "    [View](%s)\n", url)
	}
}
