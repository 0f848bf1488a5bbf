package storage

import (
	"context"
	"fmt"
)

// Timestamps are stored as fixed-width UTC text so that lexicographic
// comparison matches chronological order on both Postgres and SQLite.
// Schema administration proper (migrations) lives outside this service;
// this bootstrap only guarantees first-run and test usability.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS raw_items (
		url          TEXT PRIMARY KEY,
		source       TEXT NOT NULL,
		title        TEXT NOT NULL,
		category     TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL,
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_items_created ON raw_items (created_at)`,

	`CREATE TABLE IF NOT EXISTS case_records (
		name            TEXT NOT NULL,
		case_number     TEXT NOT NULL,
		court           TEXT NOT NULL DEFAULT '',
		judge           TEXT NOT NULL DEFAULT '',
		case_group      TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT '',
		description     TEXT NOT NULL DEFAULT '',
		last_event_date TEXT NOT NULL DEFAULT '',
		upcoming_dates  TEXT NOT NULL DEFAULT '[]',
		active          INTEGER NOT NULL DEFAULT 1,
		source_url      TEXT NOT NULL DEFAULT '',
		updated_at      TEXT NOT NULL,
		PRIMARY KEY (name, case_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_case_records_updated ON case_records (updated_at)`,

	`CREATE TABLE IF NOT EXISTS case_updates (
		case_name   TEXT NOT NULL,
		update_text TEXT NOT NULL,
		update_date TEXT NOT NULL,
		PRIMARY KEY (case_name, update_text, update_date)
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id         TEXT PRIMARY KEY,
		event_text TEXT NOT NULL,
		category   TEXT NOT NULL,
		severity   TEXT NOT NULL,
		source     TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		event_time TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_created ON events (created_at)`,

	`CREATE TABLE IF NOT EXISTS deadlines (
		id            TEXT PRIMARY KEY,
		due_date      TEXT NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		deadline_text TEXT NOT NULL,
		severity      TEXT NOT NULL,
		source        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deadlines_due ON deadlines (due_date)`,

	`CREATE TABLE IF NOT EXISTS activity_tags (
		id            TEXT PRIMARY KEY,
		tag           TEXT NOT NULL,
		tag_text      TEXT NOT NULL,
		source        TEXT NOT NULL,
		source_url    TEXT NOT NULL DEFAULT '',
		activity_time TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS briefings (
		briefing_date TEXT PRIMARY KEY,
		sections      TEXT NOT NULL,
		generated_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS fetcher_run_state (
		fetcher_name TEXT PRIMARY KEY,
		last_run     TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id                 TEXT PRIMARY KEY,
		items_processed    INTEGER NOT NULL,
		events_created     INTEGER NOT NULL,
		deadlines_created  INTEGER NOT NULL,
		activity_created   INTEGER NOT NULL,
		briefing_generated INTEGER NOT NULL,
		ran_at             TEXT NOT NULL
	)`,
}

// EnsureSchema creates missing tables and indexes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
