package monitor

import "context"

// Source enumerates and fetches the sections of one monitored target.
//
// Implementations differ per vendor (static page set, anchored headings on
// one document, bounded crawl, feed filter) but all satisfy this contract.
// A Source is bound to one target at construction and holds its own
// configuration; it shares no state with other sources.
type Source interface {
	// Name identifies the target (e.g. "deribit") for logs and reports.
	Name() string

	// Discover enumerates the sections currently believed to exist,
	// as a map of section id → human title. Ids must be unique and stable
	// across runs for the same logical content. A discovery error is fatal
	// for the target's run.
	Discover(ctx context.Context) (map[string]string, error)

	// Fetch returns the normalized text content of one section previously
	// returned by Discover. An error — or empty content — means the fetch
	// failed; the engine skips the section for this run.
	Fetch(ctx context.Context, id string) (string, error)

	// SectionURL returns a link to the section for notifications.
	SectionURL(id string) string
}

// ContentRenderer is implemented by sources that can produce a readable
// rendition (markdown) of a section for content-retention mode. Retained
// content is persisted alongside the digest but never classified.
type ContentRenderer interface {
	Rendered(ctx context.Context, id string) (string, error)
}

// Resetter is implemented by sources that cache fetched documents across
// discover+fetch within one run. The engine calls Reset before each run so
// a long-lived source never serves a previous run's pages.
type Resetter interface {
	Reset()
}
