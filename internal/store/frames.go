package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
)

const insertFrameSQL = `
	INSERT OR REPLACE INTO frames (
		session_id, frame_id, ts_unix_nanos,
		neck_angle, trunk_angle, upper_arm_angle, forearm_angle, wrist_angle, leg_angle,
		trunk_score, neck_score, leg_score, upper_arm_score, forearm_score, wrist_score,
		posture_score_a, load_score, score_a,
		posture_score_b, coupling_score, score_b,
		score_c, activity_score, final_score, risk_level, unscored
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func nullAngle(a angles.Angle) sql.NullFloat64 {
	d, ok := a.Value()
	return sql.NullFloat64{Float64: d, Valid: ok}
}

func nullScore(v reba.Value) sql.NullInt64 {
	n, ok := v.Get()
	return sql.NullInt64{Int64: int64(n), Valid: ok}
}

// nullTime stores a zero timestamp as NULL.
func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func toTime(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}

func frameArgs(sessionID string, rec session.Record) []any {
	a, r := rec.Angles, rec.Result
	unscored := make([]string, len(r.Unscored))
	for i, p := range r.Unscored {
		unscored[i] = string(p)
	}
	return []any{
		sessionID, rec.FrameID, nullTime(rec.Timestamp),
		nullAngle(a.Neck), nullAngle(a.Trunk), nullAngle(a.UpperArm),
		nullAngle(a.Forearm), nullAngle(a.Wrist), nullAngle(a.Leg),
		nullScore(r.Trunk), nullScore(r.Neck), nullScore(r.Leg),
		nullScore(r.UpperArm), nullScore(r.Forearm), nullScore(r.Wrist),
		nullScore(r.PostureScoreA), r.LoadScore, nullScore(r.ScoreA),
		nullScore(r.PostureScoreB), r.CouplingScore, nullScore(r.ScoreB),
		nullScore(r.ScoreC), r.ActivityScore, nullScore(r.FinalScore),
		r.RiskLevel.String(), strings.Join(unscored, ","),
	}
}

// InsertFrame stores one scored frame. A frame with the same ID in the same
// session is replaced.
func (s *Store) InsertFrame(ctx context.Context, sessionID string, rec session.Record) error {
	if _, err := s.db.ExecContext(ctx, insertFrameSQL, frameArgs(sessionID, rec)...); err != nil {
		return fmt.Errorf("insert frame %d: %w", rec.FrameID, err)
	}
	return nil
}

// InsertFrames stores a batch of frames in one transaction.
func (s *Store) InsertFrames(ctx context.Context, sessionID string, recs []session.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertFrameSQL)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, frameArgs(sessionID, rec)...); err != nil {
			return fmt.Errorf("insert frame %d: %w", rec.FrameID, err)
		}
	}
	return tx.Commit()
}

// Frames returns a session's frames in timestamp order. limit <= 0 returns
// all of them.
func (s *Store) Frames(ctx context.Context, sessionID string, limit, offset int) ([]session.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame_id, ts_unix_nanos,
			neck_angle, trunk_angle, upper_arm_angle, forearm_angle, wrist_angle, leg_angle,
			trunk_score, neck_score, leg_score, upper_arm_score, forearm_score, wrist_score,
			posture_score_a, load_score, score_a,
			posture_score_b, coupling_score, score_b,
			score_c, activity_score, final_score, risk_level, unscored
		FROM frames WHERE session_id = ?
		ORDER BY ts_unix_nanos, frame_id
		LIMIT ? OFFSET ?`, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []session.Record
	for rows.Next() {
		rec, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanFrame(row rowScanner) (session.Record, error) {
	var (
		rec      session.Record
		ts       sql.NullInt64
		neck     sql.NullFloat64
		trunk    sql.NullFloat64
		upperArm sql.NullFloat64
		forearm  sql.NullFloat64
		wrist    sql.NullFloat64
		leg      sql.NullFloat64
		parts    [6]sql.NullInt64
		pa, a    sql.NullInt64
		pb, b    sql.NullInt64
		c, final sql.NullInt64
		risk     string
		unscored string
	)
	r := &rec.Result
	err := row.Scan(&rec.FrameID, &ts,
		&neck, &trunk, &upperArm, &forearm, &wrist, &leg,
		&parts[0], &parts[1], &parts[2], &parts[3], &parts[4], &parts[5],
		&pa, &r.LoadScore, &a,
		&pb, &r.CouplingScore, &b,
		&c, &r.ActivityScore, &final, &risk, &unscored)
	if err != nil {
		return session.Record{}, fmt.Errorf("scan frame: %w", err)
	}

	rec.Timestamp = toTime(ts)
	rec.Angles = angles.JointAngles{
		Neck: toAngle(neck), Trunk: toAngle(trunk), UpperArm: toAngle(upperArm),
		Forearm: toAngle(forearm), Wrist: toAngle(wrist), Leg: toAngle(leg),
	}
	r.Trunk, r.Neck, r.Leg = toScore(parts[0]), toScore(parts[1]), toScore(parts[2])
	r.UpperArm, r.Forearm, r.Wrist = toScore(parts[3]), toScore(parts[4]), toScore(parts[5])
	r.PostureScoreA, r.ScoreA = toScore(pa), toScore(a)
	r.PostureScoreB, r.ScoreB = toScore(pb), toScore(b)
	r.ScoreC, r.FinalScore = toScore(c), toScore(final)
	if r.RiskLevel, err = reba.ParseRiskLevel(risk); err != nil {
		return session.Record{}, fmt.Errorf("frame %d: %w", rec.FrameID, err)
	}
	if unscored != "" {
		for _, p := range strings.Split(unscored, ",") {
			r.Unscored = append(r.Unscored, reba.BodyPart(p))
		}
	}
	return rec, nil
}

func toAngle(v sql.NullFloat64) angles.Angle {
	if !v.Valid {
		return angles.Unavailable()
	}
	return angles.Degrees(v.Float64)
}

func toScore(v sql.NullInt64) reba.Value {
	if !v.Valid {
		return reba.Unscored()
	}
	return reba.Scored(int(v.Int64))
}

// RiskDistribution counts a session's frames per risk level.
func (s *Store) RiskDistribution(ctx context.Context, sessionID string) (map[reba.RiskLevel]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT risk_level, COUNT(*) FROM frames WHERE session_id = ? GROUP BY risk_level`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query risk distribution: %w", err)
	}
	defer rows.Close()

	out := make(map[reba.RiskLevel]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan risk distribution: %w", err)
		}
		lvl, err := reba.ParseRiskLevel(name)
		if err != nil {
			return nil, err
		}
		out[lvl] = n
	}
	return out, rows.Err()
}
