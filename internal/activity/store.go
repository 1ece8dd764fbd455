// Package activity persists automation sessions and their steps so runs
// can be audited after the fact.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	uuid "github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Session is one automation run against a device
type Session struct {
	ID          string
	Instruction string
	Status      string // "running", "completed", "failed"
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Step is one action taken during a session
type Step struct {
	ID             int64
	SessionID      string
	Seq            int
	Action         string // "tap", "swipe", "type", "key", ...
	Cell           int    // 0 when the action has no cell
	X              int
	Y              int
	Detail         string
	ScreenshotPath string
	Success        bool
	CreatedAt      time.Time
}

// Store is a SQLite-backed activity log
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the activity database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("failed to open activity database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{db: db, path: path}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		instruction TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		started_at DATETIME NOT NULL,
		completed_at DATETIME
	);
	CREATE TABLE IF NOT EXISTS steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		seq INTEGER NOT NULL,
		action TEXT NOT NULL,
		cell INTEGER NOT NULL DEFAULT 0,
		x INTEGER NOT NULL DEFAULT 0,
		y INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		screenshot_path TEXT NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_steps_session ON steps(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginSession records the start of a new session and returns it
func (s *Store) BeginSession(ctx context.Context, instruction string) (*Session, error) {
	session := &Session{
		ID:          uuid.NewString(),
		Instruction: instruction,
		Status:      "running",
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, instruction, status, started_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.Instruction, session.Status, session.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return session, nil
}

// FinishSession marks a session completed or failed
func (s *Store) FinishSession(ctx context.Context, sessionID, status string) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, completed_at = ? WHERE id = ?`,
		status, now, sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("no session with id %s", sessionID)
	}
	return nil
}

// AppendStep records one step of a session. The sequence number is
// assigned from the current step count; count and insert run in one
// transaction so concurrent appenders cannot claim the same number.
func (s *Store) AppendStep(ctx context.Context, step *Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var seq int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM steps WHERE session_id = ?`, step.SessionID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to count steps: %w", err)
	}

	step.Seq = seq + 1
	step.CreatedAt = time.Now().UTC()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO steps (session_id, seq, action, cell, x, y, detail, screenshot_path, success, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		step.SessionID, step.Seq, step.Action, step.Cell, step.X, step.Y,
		step.Detail, step.ScreenshotPath, step.Success, step.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert step: %w", err)
	}

	step.ID, err = result.LastInsertId()
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetSession returns one session by id
func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session := &Session{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, instruction, status, started_at, completed_at FROM sessions WHERE id = ?`,
		sessionID).Scan(&session.ID, &session.Instruction, &session.Status,
		&session.StartedAt, &session.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	return session, nil
}

// ListSessions returns sessions newest first
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, instruction, status, started_at, completed_at
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []Session
	for rows.Next() {
		var session Session
		if err := rows.Scan(&session.ID, &session.Instruction, &session.Status,
			&session.StartedAt, &session.CompletedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Steps returns a session's steps in sequence order
func (s *Store) Steps(ctx context.Context, sessionID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, action, cell, x, y, detail, screenshot_path, success, created_at
		 FROM steps WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []Step
	for rows.Next() {
		var step Step
		if err := rows.Scan(&step.ID, &step.SessionID, &step.Seq, &step.Action,
			&step.Cell, &step.X, &step.Y, &step.Detail, &step.ScreenshotPath,
			&step.Success, &step.CreatedAt); err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
