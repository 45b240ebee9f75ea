package snapshot

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore persists snapshots in a SQLite database, one row per section.
// Several targets can share one database; each store instance is bound to a
// single target name. Save replaces the target's rows inside one
// transaction, so readers never observe a half-written snapshot.
type SQLiteStore struct {
	db     *sql.DB
	target string
}

// Schema creates the snapshot tables if they do not exist. Call once per
// database before constructing stores.
func Schema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	target      TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_sections (
	target       TEXT NOT NULL,
	section_id   TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	hash         TEXT NOT NULL,
	last_checked TEXT NOT NULL DEFAULT '',
	content      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (target, section_id)
);`)
	if err != nil {
		return fmt.Errorf("apply snapshot schema: %w", err)
	}
	return nil
}

// NewSQLiteStore creates a store bound to one target name.
func NewSQLiteStore(db *sql.DB, target string) *SQLiteStore {
	return &SQLiteStore{db: db, target: target}
}

// Load reads the target's snapshot. No rows means bootstrap.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := New()

	var ts string
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM snapshot_meta WHERE target = ?`, s.target).Scan(&ts)
	if err == sql.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot meta: %w", err)
	}
	snap.Timestamp = ts

	rows, err := s.db.QueryContext(ctx,
		`SELECT section_id, title, hash, last_checked, content
		FROM snapshot_sections WHERE target = ?`, s.target)
	if err != nil {
		return nil, fmt.Errorf("load snapshot sections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var sec Section
		if err := rows.Scan(&id, &sec.Title, &sec.Hash, &sec.LastChecked, &sec.Content); err != nil {
			return nil, fmt.Errorf("scan snapshot section: %w", err)
		}
		snap.Sections[id] = sec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load snapshot sections: %w", err)
	}
	return snap, nil
}

// Save replaces the target's rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_sections WHERE target = ?`, s.target); err != nil {
		return fmt.Errorf("clear snapshot sections: %w", err)
	}

	for id, sec := range snap.Sections {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_sections (target, section_id, title, hash, last_checked, content)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.target, id, sec.Title, sec.Hash, sec.LastChecked, sec.Content); err != nil {
			return fmt.Errorf("insert snapshot section %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (target, timestamp) VALUES (?, ?)
		ON CONFLICT(target) DO UPDATE SET timestamp = excluded.timestamp`,
		s.target, snap.Timestamp); err != nil {
		return fmt.Errorf("upsert snapshot meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot save: %w", err)
	}
	return nil
}
