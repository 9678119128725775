// Package db persists tracking sessions and their pointing-error samples to
// a local sqlite file.
package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/sattrack/internal/track"
)

type DB struct {
	*sql.DB
}

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			satellite TEXT,
			started_at TIMESTAMP,
			duration_seconds DOUBLE,
			dry_run BOOLEAN,
			loop_count INTEGER,
			overrun_count INTEGER
		);
		CREATE TABLE IF NOT EXISTS error_samples (
			session_id TEXT,
			rel_time DOUBLE,
			az_error DOUBLE,
			alt_error DOUBLE,
			FOREIGN KEY(session_id) REFERENCES sessions(session_id)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// RecordSession stores a finished session and all of its error samples in
// one transaction.
func (db *DB) RecordSession(s *track.Session) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO sessions (session_id, satellite, started_at, duration_seconds, dry_run, loop_count, overrun_count) VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.ID.String(), s.Satellite, s.StartedAt.UTC(), s.Duration.Seconds(), s.DryRun, s.Loops, s.Overruns)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO error_samples (session_id, rel_time, az_error, alt_error) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range s.Errors {
		if _, err := stmt.Exec(s.ID.String(), e.RelTime, e.AzError, e.AltError); err != nil {
			return fmt.Errorf("insert error sample: %w", err)
		}
	}

	return tx.Commit()
}

// SessionSummary is one row of the session history listing.
type SessionSummary struct {
	ID        uuid.UUID
	Satellite string
	StartedAt time.Time
	Duration  time.Duration
	DryRun    bool
	Loops     int
	Overruns  int
}

// Sessions lists recorded sessions, most recent first.
func (db *DB) Sessions(limit int) ([]SessionSummary, error) {
	rows, err := db.Query(
		"SELECT session_id, satellite, started_at, duration_seconds, dry_run, loop_count, overrun_count FROM sessions ORDER BY started_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			id      string
			s       SessionSummary
			seconds float64
		)
		if err := rows.Scan(&id, &s.Satellite, &s.StartedAt, &seconds, &s.DryRun, &s.Loops, &s.Overruns); err != nil {
			return nil, err
		}
		s.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("malformed session id %q: %w", id, err)
		}
		s.Duration = time.Duration(seconds * float64(time.Second))
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// ErrorSamples returns a session's pointing-error series in time order.
func (db *DB) ErrorSamples(id uuid.UUID) ([]track.ErrorSample, error) {
	rows, err := db.Query(
		"SELECT rel_time, az_error, alt_error FROM error_samples WHERE session_id = ? ORDER BY rel_time",
		id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []track.ErrorSample
	for rows.Next() {
		var e track.ErrorSample
		if err := rows.Scan(&e.RelTime, &e.AzError, &e.AltError); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
