package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/posture.report/internal/reba"
)

// Session is a stored assessment session.
type Session struct {
	ID         string                    `json:"session_id"`
	Name       string                    `json:"name"`
	Mode       reba.Mode                 `json:"mode"`
	Params     reba.AssessmentParameters `json:"params"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`
	FrameCount int                       `json:"frame_count"`
}

// CreateSession inserts a session. An empty ID is replaced with a new UUID;
// the stored session is returned.
func (s *Store) CreateSession(ctx context.Context, sess Session) (Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if !sess.Mode.Valid() {
		return Session{}, &reba.InvalidParameterError{Field: "mode", Reason: fmt.Sprintf("unknown value %d", int(sess.Mode))}
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	params, err := json.Marshal(sess.Params)
	if err != nil {
		return Session{}, fmt.Errorf("marshal params: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, name, mode, params_json, started_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Mode.String(), string(params),
		sess.StartedAt.UnixNano(), time.Now().UnixNano())
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	sess.FinishedAt = nil
	sess.FrameCount = 0
	return sess, nil
}

// FinishSession records the session end time.
func (s *Store) FinishSession(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET finished_at = ? WHERE session_id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

const sessionColumns = `
	s.session_id, s.name, s.mode, s.params_json, s.started_at, s.finished_at,
	(SELECT COUNT(*) FROM frames f WHERE f.session_id = s.session_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess     Session
		mode     string
		params   string
		started  int64
		finished sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.Name, &mode, &params, &started, &finished, &sess.FrameCount); err != nil {
		return Session{}, err
	}
	m, err := reba.ParseMode(mode)
	if err != nil {
		return Session{}, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Mode = m
	if err := json.Unmarshal([]byte(params), &sess.Params); err != nil {
		return Session{}, fmt.Errorf("session %s params: %w", sess.ID, err)
	}
	sess.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		sess.FinishedAt = &t
	}
	return sess, nil
}

// Session returns one session by ID.
func (s *Store) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

// ListSessions returns the most recently started sessions first. limit <= 0
// returns all of them.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its frames.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
