// Package store is the durable metadata container for one import
// destination: the statcache, the pending changes, the reconstructed
// changesets, their marks, and the run bookkeeping used to resume an
// interrupted pull. Everything lives in one SQLite file so a single
// transaction can span statcache, change and changeset updates.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opencvs/cvsimport/internal/cvsimport/model"
)

// Store is a SQLite-backed implementation of the metadata store described
// in the component design: single-writer, committed opportunistically at
// natural boundaries by the caller.
type Store struct {
	db *sql.DB
}

// Open creates (or re-opens) the metadata database at path, following the
// same connection and pragma discipline as the rest of the importer's
// SQLite usage: a single connection, a generous busy timeout, and
// synchronous writes relaxed since the importer's own resumability design
// — not fsync — is what makes a crash recoverable. journal_mode stays at
// the default DELETE rather than WAL so that readers (the serve
// subcommand's web monitor) always see a consistent, fully-committed file
// rather than a separate -wal segment.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=DELETE;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=OFF;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: set pragma %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS statcache (
			path TEXT PRIMARY KEY,
			mtime TIMESTAMP NOT NULL,
			size INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS change (
			filename TEXT NOT NULL,
			revision TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			author TEXT NOT NULL,
			log TEXT NOT NULL,
			filestatus TEXT NOT NULL,
			state TEXT NOT NULL,
			mode TEXT NOT NULL DEFAULT '',
			changeset_id INTEGER,
			PRIMARY KEY (filename, revision)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_change_changeset ON change(changeset_id)`,
		`CREATE INDEX IF NOT EXISTS idx_change_timestamp ON change(timestamp)`,
		`CREATE TABLE IF NOT EXISTS changeset (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			mark TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_changeset_start ON changeset(start_time, id)`,
		`CREATE TABLE IF NOT EXISTS run (
			run_id TEXT PRIMARY KEY,
			source_path TEXT,
			target_path TEXT,
			last_changeset_id INTEGER,
			status TEXT,
			last_updated TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.db.SetMaxIdleConns(0)
	return s.db.Close()
}

// Lookup implements scanner.StatProvider.
func (s *Store) Lookup(path string) (model.StatcacheEntry, bool) {
	var e model.StatcacheEntry
	row := s.db.QueryRow(`SELECT path, mtime, size FROM statcache WHERE path = ?`, path)
	if err := row.Scan(&e.Path, &e.Mtime, &e.Size); err != nil {
		return model.StatcacheEntry{}, false
	}
	return e, true
}

// UpdateStatcache upserts entries. Called by ingest.Scan after a file's
// changes have been inserted — never by the scanner package.
func (s *Store) UpdateStatcache(entries []model.StatcacheEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin statcache update: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO statcache (path, mtime, size) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("store: prepare statcache update: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Path, e.Mtime, e.Size); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: update statcache entry %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

// AddChange inserts c, idempotent on (filename, revision).
func (s *Store) AddChange(c *model.Change) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO change (filename, revision, timestamp, author, log, filestatus, state, mode)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Filename, c.Revision, c.Timestamp, c.Author, c.Log, string(c.Filestatus), c.State, c.Mode,
	)
	if err != nil {
		return fmt.Errorf("store: add change %s@%s: %w", c.Filename, c.Revision, err)
	}
	return nil
}

// AddChangeset allocates an id for cs and attaches every member in the
// same transaction, so a crash midway leaves either all members attached
// or none, with the changeset row rolled back.
func (s *Store) AddChangeset(cs *model.Changeset) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin add changeset: %w", err)
	}

	res, err := tx.Exec(`INSERT INTO changeset (start_time, end_time) VALUES (?, ?)`, cs.StartTime, cs.EndTime)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("store: insert changeset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("store: read changeset id: %w", err)
	}

	stmt, err := tx.Prepare(`UPDATE change SET changeset_id = ? WHERE filename = ? AND revision = ?`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("store: prepare attach: %w", err)
	}
	for _, c := range cs.Members {
		if _, err := stmt.Exec(id, c.Filename, c.Revision); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, fmt.Errorf("store: attach %s@%s: %w", c.Filename, c.Revision, err)
		}
	}
	_ = stmt.Close()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit changeset: %w", err)
	}

	cs.ID = id
	return id, nil
}

// MarkChangeset records the sink's opaque identifier for changeset id.
func (s *Store) MarkChangeset(id int64, mark string) error {
	_, err := s.db.Exec(`UPDATE changeset SET mark = ? WHERE id = ?`, mark, id)
	if err != nil {
		return fmt.Errorf("store: mark changeset %d: %w", id, err)
	}
	return nil
}

// ChangesByTimestamp returns every change not yet attached to a changeset,
// ordered by timestamp ascending. The result is a snapshot: callers drive
// the changeset generator over it and call AddChangeset as changesets
// close, which is safe because the slice already fully materializes the
// candidate set rather than holding a live cursor open across the writes.
func (s *Store) ChangesByTimestamp() ([]*model.Change, error) {
	rows, err := s.db.Query(
		`SELECT filename, revision, timestamp, author, log, filestatus, state, mode
		 FROM change WHERE changeset_id IS NULL ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query free changes: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("store: close rows: %v", err)
		}
	}()

	var changes []*model.Change
	for rows.Next() {
		c := &model.Change{}
		var status, mode string
		if err := rows.Scan(&c.Filename, &c.Revision, &c.Timestamp, &c.Author, &c.Log, &status, &c.State, &mode); err != nil {
			return nil, fmt.Errorf("store: scan change: %w", err)
		}
		c.Filestatus = model.Filestatus(status)
		c.Mode = mode
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// ChangesetsByStartTime returns every changeset ordered by (start_time,
// id), hydrated with its member changes.
func (s *Store) ChangesetsByStartTime() ([]*model.Changeset, error) {
	rows, err := s.db.Query(`SELECT id, start_time, end_time, mark FROM changeset ORDER BY start_time ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query changesets: %w", err)
	}

	var changesets []*model.Changeset
	byID := make(map[int64]*model.Changeset)
	for rows.Next() {
		cs := &model.Changeset{}
		var mark sql.NullString
		if err := rows.Scan(&cs.ID, &cs.StartTime, &cs.EndTime, &mark); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("store: scan changeset: %w", err)
		}
		cs.Mark = mark.String
		changesets = append(changesets, cs)
		byID[cs.ID] = cs
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("store: close changeset rows: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberRows, err := s.db.Query(
		`SELECT filename, revision, timestamp, author, log, filestatus, state, mode, changeset_id
		 FROM change WHERE changeset_id IS NOT NULL ORDER BY changeset_id ASC, filename ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: query changeset members: %w", err)
	}
	defer func() {
		if err := memberRows.Close(); err != nil {
			log.Printf("store: close member rows: %v", err)
		}
	}()

	for memberRows.Next() {
		c := &model.Change{}
		var status, mode string
		var csID int64
		if err := memberRows.Scan(&c.Filename, &c.Revision, &c.Timestamp, &c.Author, &c.Log, &status, &c.State, &mode, &csID); err != nil {
			return nil, fmt.Errorf("store: scan changeset member: %w", err)
		}
		c.Filestatus = model.Filestatus(status)
		c.Mode = mode
		c.ChangesetID = csID
		if cs, ok := byID[csID]; ok {
			cs.Members = append(cs.Members, c)
			if cs.Author == "" {
				cs.Author = c.Author
				cs.Log = c.Log
			}
		}
	}

	sort.SliceStable(changesets, func(i, j int) bool {
		if !changesets[i].StartTime.Equal(changesets[j].StartTime) {
			return changesets[i].StartTime.Before(changesets[j].StartTime)
		}
		return changesets[i].ID < changesets[j].ID
	})

	return changesets, memberRows.Err()
}

// UnmarkedChangesets returns changesets without a mark, in export order —
// the set the exporter must still feed to the sink on a resumed run.
func (s *Store) UnmarkedChangesets() ([]*model.Changeset, error) {
	all, err := s.ChangesetsByStartTime()
	if err != nil {
		return nil, err
	}
	var pending []*model.Changeset
	for _, cs := range all {
		if cs.Mark == "" {
			pending = append(pending, cs)
		}
	}
	return pending, nil
}

// Run is the resume/progress bookkeeping record for one clone or pull
// invocation, stored in the same database as the core ingest tables.
type Run struct {
	RunID           string
	SourcePath      string
	TargetPath      string
	LastChangesetID int64
	Status          string
	LastUpdated     time.Time
}

// SaveRun upserts a Run record.
func (s *Store) SaveRun(r *Run) error {
	r.LastUpdated = time.Now()
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO run (run_id, source_path, target_path, last_changeset_id, status, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.SourcePath, r.TargetPath, r.LastChangesetID, r.Status, r.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("store: save run %s: %w", r.RunID, err)
	}
	return nil
}

// LoadRun fetches a Run record by id.
func (s *Store) LoadRun(runID string) (*Run, error) {
	r := &Run{}
	row := s.db.QueryRow(
		`SELECT run_id, source_path, target_path, last_changeset_id, status, last_updated FROM run WHERE run_id = ?`,
		runID,
	)
	if err := row.Scan(&r.RunID, &r.SourcePath, &r.TargetPath, &r.LastChangesetID, &r.Status, &r.LastUpdated); err != nil {
		return nil, fmt.Errorf("store: load run %s: %w", runID, err)
	}
	return r, nil
}

// Runs returns every Run record, most recently updated first.
func (s *Store) Runs() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, source_path, target_path, last_changeset_id, status, last_updated FROM run ORDER BY last_updated DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Printf("store: close run rows: %v", err)
		}
	}()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.RunID, &r.SourcePath, &r.TargetPath, &r.LastChangesetID, &r.Status, &r.LastUpdated); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
