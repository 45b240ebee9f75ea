// Package monitor implements the change-detection engine.
//
// An Engine binds one Source to one snapshot.Store. Check runs a full cycle:
// discover the target's sections, fetch and fingerprint each one, classify
// it against the previous snapshot (new / modified / unchanged), derive
// deletions, persist the new snapshot wholesale, and return the Report.
//
// Failure policy: a discovery error aborts the run and leaves the previous
// snapshot untouched (fail-closed). A fetch error affects only that section
// — it is skipped for the run, excluded from both the report and the new
// snapshot, and the loop continues.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/hazyhaar/docveille/fingerprint"
	"github.com/hazyhaar/docveille/snapshot"
)

// ErrDiscovery marks a failed section discovery; the target's run is
// aborted and its snapshot left untouched.
var ErrDiscovery = errors.New("section discovery failed")

// Config configures an Engine.
type Config struct {
	// Delay is the politeness pause after every fetch attempt, including
	// failed ones. Default: 300ms.
	Delay time.Duration
	// SaveContent persists a readable rendition of each section inside the
	// snapshot for detailed diffs. Classification is unaffected.
	SaveContent bool
}

func (c *Config) defaults() {
	if c.Delay <= 0 {
		c.Delay = 300 * time.Millisecond
	}
}

// Engine runs change detection for one target.
type Engine struct {
	source Source
	store  snapshot.Store
	config Config
	logger *slog.Logger
}

// New creates an Engine.
func New(source Source, store snapshot.Store, cfg Config, logger *slog.Logger) *Engine {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source: source,
		store:  store,
		config: cfg,
		logger: logger.With("target", source.Name()),
	}
}

// Check runs one full monitoring cycle and returns the change report.
//
// The new snapshot is assembled entirely in memory and saved once at the
// end, unconditionally — even a run with zero changes refreshes the
// last_checked timestamps and captures newly discovered ids. If the save
// fails, the report is still returned alongside the error so the caller
// can notify while the on-disk state stays stale-but-consistent.
func (e *Engine) Check(ctx context.Context) (*Report, error) {
	if r, ok := e.source.(Resetter); ok {
		r.Reset()
	}

	sections, err := e.source.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDiscovery, e.source.Name(), err)
	}
	e.logger.Info("engine: discovered sections", "count", len(sections))

	prev, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}

	next := snapshot.New()
	report := &Report{Target: e.source.Name(), Timestamp: next.Timestamp}

	// Lexicographic order: affects only log and notification ordering,
	// never classification.
	ids := make([]string, 0, len(sections))
	for id := range sections {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		title := sections[id]
		log := e.logger.With("section", id, "n", i+1, "of", len(ids))

		content, err := e.source.Fetch(ctx, id)
		if err == nil && content == "" {
			// Empty normalized text is indistinguishable from a fetch that
			// located nothing; recording it would turn a transient failure
			// into a deletion-then-recreation on later runs.
			err = errors.New("empty content")
		}
		if err != nil {
			log.Warn("engine: fetch failed, skipping section", "error", err)
			report.Failed = append(report.Failed, id)
			e.pause(ctx)
			continue
		}

		hash := fingerprint.Digest(content)
		entry := snapshot.Section{
			Title:       title,
			Hash:        hash,
			LastChecked: time.Now().UTC().Format(time.RFC3339),
		}
		if e.config.SaveContent {
			entry.Content = e.rendered(ctx, id, content)
		}
		next.Sections[id] = entry

		prevSec, existed := prev.Sections[id]
		switch {
		case !existed:
			log.Info("engine: new section", "title", title)
			report.New = append(report.New, Entry{ID: id, Title: title, URL: e.source.SectionURL(id)})
		case prevSec.Hash != hash:
			log.Info("engine: modified section", "title", title,
				"old_hash", fingerprint.Short(prevSec.Hash), "new_hash", fingerprint.Short(hash))
			mod := ModifiedEntry{
				ID: id, Title: title, URL: e.source.SectionURL(id),
				OldHash: prevSec.Hash, NewHash: hash,
			}
			if prevSec.Content != "" && entry.Content != "" {
				mod.Diff = e.diff(id, prevSec.Content, entry.Content)
			}
			report.Modified = append(report.Modified, mod)
		default:
			// Title changes without a content change stay unchanged; the
			// new title is still persisted in the snapshot entry above.
			log.Debug("engine: unchanged section")
			report.Unchanged = append(report.Unchanged, id)
		}

		e.pause(ctx)
	}

	// Deletions: everything previously tracked that did not make it into
	// the new snapshot, whatever the reason (undiscovered or fetch-failed).
	deleted := make([]string, 0)
	for id := range prev.Sections {
		if _, ok := next.Sections[id]; !ok {
			deleted = append(deleted, id)
		}
	}
	sort.Strings(deleted)
	for _, id := range deleted {
		title := prev.Sections[id].Title
		e.logger.Info("engine: deleted section", "section", id, "title", title)
		report.Deleted = append(report.Deleted, Entry{ID: id, Title: title})
	}

	if err := e.store.Save(ctx, next); err != nil {
		return report, fmt.Errorf("save snapshot: %w", err)
	}

	e.logger.Info("engine: run complete",
		"new", len(report.New), "modified", len(report.Modified),
		"deleted", len(report.Deleted), "unchanged", len(report.Unchanged),
		"failed", len(report.Failed))
	return report, nil
}

// rendered produces the retained content for a section: the source's
// markdown rendition when available, the normalized text otherwise.
func (e *Engine) rendered(ctx context.Context, id, content string) string {
	cr, ok := e.source.(ContentRenderer)
	if !ok {
		return content
	}
	md, err := cr.Rendered(ctx, id)
	if err != nil || md == "" {
		e.logger.Debug("engine: rendition failed, retaining plain text", "section", id, "error", err)
		return content
	}
	return md
}

// diff renders a unified diff between the previous and current retained
// renditions of a modified section.
func (e *Engine) diff(id, before, after string) string {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "previous",
		ToFile:   "current",
		Context:  3,
	})
	if err != nil {
		e.logger.Debug("engine: diff failed", "section", id, "error", err)
		return ""
	}
	return text
}

// pause applies the politeness delay between fetches unless the context
// ends first.
func (e *Engine) pause(ctx context.Context) {
	select {
	case <-time.After(e.config.Delay):
	case <-ctx.Done():
	}
}
