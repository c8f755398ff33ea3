package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// Session is one recorded try-on session.
type Session struct {
	ID        string     `json:"session_id"`
	Label     string     `json:"label"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Frames    int        `json:"frames"`
	Faces     int        `json:"frames_with_face"`
}

// CreateSession inserts a new session row. StartedAt defaults to now.
func (db *DB) CreateSession(s *Session) error {
	if s.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	_, err := db.Exec(`
		INSERT INTO sessions (session_id, label, width, height, started_unix_ms)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Label, s.Width, s.Height, s.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", s.ID, err)
	}
	return nil
}

// EndSession stamps the end time of a session.
func (db *DB) EndSession(id string, at time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix_ms = ? WHERE session_id = ?`, at.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// SetSessionSize records the surface size of a session once it is known.
func (db *DB) SetSessionSize(id string, width, height int) error {
	res, err := db.Exec(`UPDATE sessions SET width = ?, height = ? WHERE session_id = ?`, width, height, id)
	if err != nil {
		return fmt.Errorf("failed to size session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

const sessionColumns = `
	s.session_id, s.label, s.width, s.height, s.started_unix_ms, s.ended_unix_ms,
	(SELECT COUNT(*) FROM session_frames f WHERE f.session_id = s.session_id),
	(SELECT COUNT(*) FROM session_frames f WHERE f.session_id = s.session_id AND f.face_detected = 1)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (*Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := r.Scan(&s.ID, &s.Label, &s.Width, &s.Height, &started, &ended, &s.Frames, &s.Faces); err != nil {
		return nil, err
	}
	s.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		t := time.UnixMilli(ended.Int64)
		s.EndedAt = &t
	}
	return &s, nil
}

// GetSession returns one session with its frame counts.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return s, nil
}

// ListSessions returns the most recent sessions first. limit <= 0 means 100.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+sessionColumns+`
		FROM sessions s
		ORDER BY s.started_unix_ms DESC, s.session_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and, through the foreign key, its frames.
func (db *DB) DeleteSession(id string) error {
	res, err := db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
