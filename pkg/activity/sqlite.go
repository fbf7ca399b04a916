package activity

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// recordedAtLayout is fixed width so that text order is time order.
const recordedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteSink stores outcomes in a local database for later querying.
type SQLiteSink struct {
	db *sql.DB
}

func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLiteSink{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return s, nil
}

func (s *SQLiteSink) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		platform TEXT NOT NULL,
		username TEXT NOT NULL,
		action TEXT NOT NULL,
		post_url TEXT NOT NULL,
		status TEXT NOT NULL,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_recorded_at ON outcomes(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSink) Write(ctx context.Context, o Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, recorded_at, platform, username, action, post_url, status, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.RunID, o.Timestamp.UTC().Format(recordedAtLayout), o.Platform, o.Username,
		string(o.Action), o.Target, string(o.Status), o.Detail)
	if err != nil {
		return fmt.Errorf("failed to insert outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, recorded_at, platform, username, action, post_url, status, COALESCE(details, '')
		FROM outcomes
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		var recordedAt, action, status string
		if err := rows.Scan(&o.RunID, &recordedAt, &o.Platform, &o.Username, &action, &o.Target, &status, &o.Detail); err != nil {
			return nil, err
		}
		o.Timestamp, err = time.Parse(recordedAtLayout, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", recordedAt, err)
		}
		o.Action = Action(action)
		o.Status = Status(status)
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
