// Package store persists the occupancy counters in SQLite.
//
// Every boot is a session with its own ID. The counters of a session are
// saved whenever a period closes; a new session starts at zero.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sweeney/occupancy-sensor/internal/logic"
)

// DefaultHistoryLimit is used when History is called with limit <= 0.
const DefaultHistoryLimit = 20

// Session is one stored session.
type Session struct {
	ID           string     `json:"id"`
	NodeID       string     `json:"node_id"`
	StartedAt    time.Time  `json:"started_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	NetSeconds   int64      `json:"net_seconds"`
	GrossSeconds int64      `json:"gross_seconds"`
}

// Period is one stored occupancy period.
type Period struct {
	SessionID string    `json:"session_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Seconds   int64     `json:"seconds"`
}

// DB wraps the SQLite database connection and the current session.
type DB struct {
	conn    *sql.DB
	session string
	now     func() time.Time
}

// Open opens the database at path, runs migrations and starts a new session.
func Open(path, nodeID string) (*DB, error) {
	return OpenSession(path, nodeID, "")
}

// OpenSession is Open with an explicit session ID. An existing session is
// continued; an empty ID starts a new session.
func OpenSession(path, nodeID, sessionID string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := RunMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if _, err := conn.Exec(
		"INSERT OR IGNORE INTO sessions (id, node_id, started_at) VALUES (?, ?, ?)",
		sessionID, nodeID, db.now().Unix(),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	db.session = sessionID
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// SessionID returns the current session's ID.
func (db *DB) SessionID() string {
	return db.session
}

// SaveAccumulator stores the counters for the current session.
func (db *DB) SaveAccumulator(acc logic.Accumulator) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET net_seconds = ?, gross_seconds = ?, updated_at = ? WHERE id = ?",
		acc.NetSeconds, acc.GrossSeconds, db.now().Unix(), db.session,
	)
	if err != nil {
		return fmt.Errorf("failed to save accumulator: %w", err)
	}
	return nil
}

// LoadAccumulator returns the current session's counters. ok is false until
// the session has been saved at least once.
func (db *DB) LoadAccumulator() (logic.Accumulator, bool, error) {
	var (
		acc     logic.Accumulator
		updated sql.NullInt64
	)
	err := db.conn.QueryRow(
		"SELECT net_seconds, gross_seconds, updated_at FROM sessions WHERE id = ?", db.session,
	).Scan(&acc.NetSeconds, &acc.GrossSeconds, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return logic.Accumulator{}, false, nil
	}
	if err != nil {
		return logic.Accumulator{}, false, fmt.Errorf("failed to load accumulator: %w", err)
	}
	if !updated.Valid {
		return logic.Accumulator{}, false, nil
	}
	return acc, true, nil
}

// RecordPeriod stores a closed occupancy period in the current session.
func (db *DB) RecordPeriod(start, end time.Time, seconds int64) error {
	_, err := db.conn.Exec(
		"INSERT INTO periods (session_id, start_at, end_at, seconds) VALUES (?, ?, ?, ?)",
		db.session, start.Unix(), end.Unix(), seconds,
	)
	if err != nil {
		return fmt.Errorf("failed to record period: %w", err)
	}
	return nil
}

// History returns the most recent sessions, newest first.
func (db *DB) History(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := db.conn.Query(
		`SELECT id, node_id, started_at, updated_at, net_seconds, gross_seconds
		 FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			updated sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.NodeID, &started, &updated, &s.NetSeconds, &s.GrossSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = time.Unix(started, 0).UTC()
		if updated.Valid {
			t := time.Unix(updated.Int64, 0).UTC()
			s.UpdatedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Periods returns the most recent periods of the current session, newest first.
func (db *DB) Periods(limit int) ([]Period, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := db.conn.Query(
		`SELECT session_id, start_at, end_at, seconds FROM periods
		 WHERE session_id = ? ORDER BY id DESC LIMIT ?`, db.session, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var (
			p          Period
			start, end int64
		)
		if err := rows.Scan(&p.SessionID, &start, &end, &p.Seconds); err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		p.Start = time.Unix(start, 0).UTC()
		p.End = time.Unix(end, 0).UTC()
		periods = append(periods, p)
	}
	return periods, rows.Err()
}
