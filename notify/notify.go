// Package notify delivers change reports to the configured sinks. A failed
// notification is logged and never affects the monitoring run or the saved
// snapshot.
package notify

import (
	"context"
	"errors"

	"github.com/hazyhaar/docveille/monitor"
)

// Notifier delivers one target's change report.
type Notifier interface {
	Notify(ctx context.Context, report *monitor.Report) error
}

// Gates selects which change categories trigger a notification. A report
// whose changes are all gated out is not sent. The zero value gates nothing
// out (all categories notify).
type Gates struct {
	Additions     bool
	Modifications bool
	Deletions     bool
}

// open reports whether the gates are the zero value, meaning "notify
// everything".
func (g Gates) open() bool { return !g.Additions && !g.Modifications && !g.Deletions }

// relevant counts the changes that pass the gates.
func (g Gates) relevant(r *monitor.Report) int {
	if g.open() {
		return r.Total()
	}
	n := 0
	if g.Additions {
		n += len(r.New)
	}
	if g.Modifications {
		n += len(r.Modified)
	}
	if g.Deletions {
		n += len(r.Deleted)
	}
	return n
}

// Multi fans a report out to several notifiers. Every notifier runs; the
// failures are joined and returned after all have been attempted.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, report *monitor.Report) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
