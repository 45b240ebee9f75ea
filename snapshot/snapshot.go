// Package snapshot persists the section state of one monitored target
// between runs.
//
// A snapshot is written wholesale at the end of a successful run and read
// once at the start of the next; there are no partial updates. Two stores
// implement the contract: FileStore (a JSON file, replaced atomically via
// rename) and SQLiteStore (a transactional full replace). A missing or
// unreadable prior snapshot loads as the empty snapshot — the bootstrap
// case, where every discovered section will classify as new.
package snapshot

import (
	"context"
	"time"
)

// Section is the persisted record for one tracked section.
type Section struct {
	Title       string `json:"title"`
	Hash        string `json:"hash"`
	LastChecked string `json:"last_checked"`
	// Content holds the section's markdown when content retention is
	// enabled. It never participates in change classification.
	Content string `json:"content,omitempty"`
}

// Snapshot is the full persisted state of one target after one run.
type Snapshot struct {
	Timestamp string             `json:"timestamp"`
	Sections  map[string]Section `json:"sections"`
}

// New returns an empty snapshot stamped with the current time.
func New() *Snapshot {
	return &Snapshot{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sections:  make(map[string]Section),
	}
}

// Store loads and saves snapshots for one target.
type Store interface {
	// Load returns the previous snapshot, or an empty one when no prior
	// state exists or it cannot be read.
	Load(ctx context.Context) (*Snapshot, error)
	// Save replaces the persisted snapshot wholesale. Either the new
	// snapshot is fully visible afterwards or the old one is untouched.
	Save(ctx context.Context, snap *Snapshot) error
}
