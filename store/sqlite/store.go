// Package sqlite provides the durable [store.Storer] implementation backed
// by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/buildwatch/buildwatch/store"
)

// Store implements store.Storer on a sqlite database file.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dataSourceName and ensures the
// schema is up to date.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// migrate ensures the database schema is created.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS projects (
	key       TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	urls      TEXT NOT NULL,
	username  TEXT NOT NULL DEFAULT '',
	password  TEXT NOT NULL DEFAULT '',
	auth_url  TEXT NOT NULL DEFAULT '',
	accept    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_projects_kind ON projects (kind);

CREATE TABLE IF NOT EXISTS poll_outcomes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	project_key  TEXT NOT NULL,
	ok           INTEGER NOT NULL,
	jobs         INTEGER NOT NULL,
	detail       TEXT NOT NULL DEFAULT '',
	observed_at  TEXT NOT NULL,
	FOREIGN KEY(project_key) REFERENCES projects(key) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_poll_outcomes_key_observed ON poll_outcomes (project_key, observed_at DESC);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// UpsertProject inserts or replaces a project's stored configuration.
func (s *Store) UpsertProject(ctx context.Context, p store.Project) error {
	urls, err := json.Marshal(p.URLs)
	if err != nil {
		return fmt.Errorf("failed to encode urls: %w", err)
	}
	query := `
INSERT INTO projects (key, kind, urls, username, password, auth_url, accept)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	kind = excluded.kind,
	urls = excluded.urls,
	username = excluded.username,
	password = excluded.password,
	auth_url = excluded.auth_url,
	accept = excluded.accept`
	if _, err := s.db.ExecContext(ctx, query, p.Key, p.Kind, string(urls), p.Username, p.Password, p.AuthURL, p.Accept); err != nil {
		return fmt.Errorf("failed to upsert project: %w", err)
	}
	return nil
}

// DueProjects returns all non-tracker projects.
func (s *Store) DueProjects(ctx context.Context) ([]store.Project, error) {
	return s.selectProjects(ctx, `SELECT key, kind, urls, username, password, auth_url, accept FROM projects WHERE kind != 'tracker' ORDER BY key`)
}

// DueTrackers returns all tracker projects.
func (s *Store) DueTrackers(ctx context.Context) ([]store.Project, error) {
	return s.selectProjects(ctx, `SELECT key, kind, urls, username, password, auth_url, accept FROM projects WHERE kind = 'tracker' ORDER BY key`)
}

func (s *Store) selectProjects(ctx context.Context, query string) ([]store.Project, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []store.Project
	for rows.Next() {
		var p store.Project
		var urls string
		if err := rows.Scan(&p.Key, &p.Kind, &urls, &p.Username, &p.Password, &p.AuthURL, &p.Accept); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		if err := json.Unmarshal([]byte(urls), &p.URLs); err != nil {
			return nil, fmt.Errorf("failed to decode urls for %q: %w", p.Key, err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// RecordSuccess appends a successful outcome for the project.
func (s *Store) RecordSuccess(ctx context.Context, key string, jobs int) error {
	return s.record(ctx, store.Outcome{Key: key, OK: true, Jobs: jobs, ObservedAt: time.Now()})
}

// RecordFailure appends a failed outcome for the project.
func (s *Store) RecordFailure(ctx context.Context, key string, jobs int, cause string) error {
	return s.record(ctx, store.Outcome{Key: key, Jobs: jobs, Detail: cause, ObservedAt: time.Now()})
}

func (s *Store) record(ctx context.Context, o store.Outcome) error {
	ok := 0
	if o.OK {
		ok = 1
	}
	query := `INSERT INTO poll_outcomes (project_key, ok, jobs, detail, observed_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, o.Key, ok, o.Jobs, o.Detail, o.ObservedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// LastOutcome returns the most recent outcome recorded for the project.
func (s *Store) LastOutcome(ctx context.Context, key string) (*store.Outcome, error) {
	query := `
SELECT project_key, ok, jobs, detail, observed_at
FROM poll_outcomes WHERE project_key = ?
ORDER BY id DESC LIMIT 1`
	var o store.Outcome
	var ok int
	var observedAt string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&o.Key, &ok, &o.Jobs, &o.Detail, &observedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last outcome: %w", err)
	}
	o.OK = ok == 1
	o.ObservedAt, _ = time.Parse(time.RFC3339Nano, observedAt)
	return &o, nil
}
