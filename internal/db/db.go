// Package db stores a transcript of every command/response exchange with the
// laser, grouped into connection sessions.
package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (or creates) the sqlite database at path and applies any pending
// schema migrations.
func Open(path string) (*DB, error) {
	// The pragma rides on the DSN so every pooled connection enforces
	// foreign keys, not just the first.
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Session is one open connection to the instrument.
type Session struct {
	ID        string     `json:"session_id"`
	Port      string     `json:"port"`
	StartedAt time.Time  `json:"started_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// Exchange is one command/response round trip.
type Exchange struct {
	ID             int64     `json:"exchange_id"`
	SessionID      string    `json:"session_id"`
	Command        string    `json:"command"`
	Response       string    `json:"response"`
	TransportError string    `json:"transport_error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// BeginSession records a new session against the given port and returns its
// generated ID.
func (db *DB) BeginSession(port string) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec("INSERT INTO sessions (session_id, port) VALUES (?, ?)", id, port)
	if err != nil {
		return "", fmt.Errorf("failed to begin session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's close time.
func (db *DB) EndSession(id string) error {
	_, err := db.Exec("UPDATE sessions SET closed_at = strftime('%s', 'now') WHERE session_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	return nil
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT session_id, port, started_at, closed_at
		FROM sessions ORDER BY started_at DESC, session_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var startedAtUnix int64
		var closedAtUnix sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Port, &startedAtUnix, &closedAtUnix); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(startedAtUnix, 0)
		if closedAtUnix.Valid {
			closedAt := time.Unix(closedAtUnix.Int64, 0)
			s.ClosedAt = &closedAt
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// RecordExchange appends one exchange to a session's transcript.
func (db *DB) RecordExchange(sessionID, command, response, transportError string) error {
	_, err := db.Exec(`
		INSERT INTO exchanges (session_id, command, response, transport_error)
		VALUES (?, ?, ?, ?)`, sessionID, command, response, transportError)
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// Exchanges returns the most recent exchanges for a session, newest first.
func (db *DB) Exchanges(sessionID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT exchange_id, session_id, command, response, transport_error, timestamp
		FROM exchanges WHERE session_id = ?
		ORDER BY exchange_id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var e Exchange
		var tsUnix int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Command, &e.Response, &e.TransportError, &tsUnix); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(tsUnix, 0)
		exchanges = append(exchanges, e)
	}
	return exchanges, rows.Err()
}

// SessionRecorder adapts one session to the bus Recorder hook. Recording is
// best effort: a store failure is logged and never fails the exchange.
type SessionRecorder struct {
	DB        *DB
	SessionID string
}

func (r *SessionRecorder) RecordExchange(command, response string, err error) {
	transportError := ""
	if err != nil {
		transportError = err.Error()
	}
	if dbErr := r.DB.RecordExchange(r.SessionID, command, response, transportError); dbErr != nil {
		log.Printf("failed to record exchange %q: %v", command, dbErr)
	}
}
