package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/docveille/fingerprint"
	"github.com/hazyhaar/docveille/monitor"
)

// diffLineLimit caps the diff excerpt logged for one modified section.
const diffLineLimit = 50

// Log writes the change summary to the structured log. It is always wired,
// so a run leaves a trace even with every external sink disabled.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, r *monitor.Report) error {
	log := l.logger.With("target", r.Target)

	for _, e := range r.New {
		log.Info("summary: new section", "section", e.ID, "title", e.Title)
	}
	for _, e := range r.Modified {
		attrs := []any{"section", e.ID, "title", e.Title,
			"old_hash", fingerprint.Short(e.OldHash), "new_hash", fingerprint.Short(e.NewHash)}
		if e.Diff != "" {
			attrs = append(attrs, "diff", truncateDiff(e.Diff, diffLineLimit))
		}
		log.Info("summary: modified section", attrs...)
	}
	for _, e := range r.Deleted {
		log.Info("summary: deleted section", "section", e.ID, "title", e.Title)
	}

	if r.HasChanges() {
		log.Warn("summary: changes detected",
			"total", r.Total(), "new", len(r.New), "modified", len(r.Modified),
			"deleted", len(r.Deleted), "unchanged", len(r.Unchanged), "failed", len(r.Failed))
	} else {
		log.Info("summary: no changes detected",
			"unchanged", len(r.Unchanged), "failed", len(r.Failed))
	}
	return nil
}

// truncateDiff cuts a diff after max lines; long renditions stay readable
// in the log while the full diff remains available in the report.
func truncateDiff(diff string, max int) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	if len(lines) <= max {
		return diff
	}
	omitted := len(lines) - max
	return strings.Join(lines[:max], "\n") + fmt.Sprintf("\n... (%d more lines)", omitted)
}
