// Package session accumulates per-frame assessments into running statistics,
// a bounded recent-frame buffer and CSV, JSON and Markdown exports.
package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/reba"
)

// Record is one assessed frame.
type Record struct {
	FrameID   int                `json:"frame_id"`
	Timestamp time.Time          `json:"timestamp"`
	Angles    angles.JointAngles `json:"angles"`
	Result    reba.Result        `json:"result"`
}

// Scored reports whether the frame produced a final score.
func (r Record) Scored() bool { return r.Result.FinalScore.IsScored() }

// csvColumns is the fixed column order of the frame log.
var csvColumns = []string{
	"frame_id", "timestamp", "datetime",
	"neck_angle", "trunk_angle", "upper_arm_angle", "forearm_angle", "wrist_angle", "leg_angle",
	"trunk_score", "neck_score", "leg_score", "upper_arm_score", "forearm_score", "wrist_score",
	"posture_score_a", "load_score", "score_a",
	"posture_score_b", "coupling_score", "score_b",
	"score_c", "activity_score", "reba_score", "risk_level", "unscored",
}

// CSVHeader returns the column names written by CSVRow.
func CSVHeader() []string {
	out := make([]string, len(csvColumns))
	copy(out, csvColumns)
	return out
}

// CSVRow formats the record in CSVHeader order. A missing timestamp,
// unavailable angles and unscored values are empty cells.
func (r Record) CSVRow() []string {
	ang := func(a angles.Angle) string {
		if d, ok := a.Value(); ok {
			return strconv.FormatFloat(d, 'f', 2, 64)
		}
		return ""
	}
	val := func(v reba.Value) string {
		if n, ok := v.Get(); ok {
			return strconv.Itoa(n)
		}
		return ""
	}
	unscored := make([]string, len(r.Result.Unscored))
	for i, p := range r.Result.Unscored {
		unscored[i] = string(p)
	}
	var unixSeconds, datetime string
	if !r.Timestamp.IsZero() {
		unixSeconds = strconv.FormatFloat(float64(r.Timestamp.UnixNano())/1e9, 'f', 3, 64)
		datetime = r.Timestamp.Format(time.RFC3339Nano)
	}
	res := r.Result
	return []string{
		strconv.Itoa(r.FrameID),
		unixSeconds, datetime,
		ang(r.Angles.Neck), ang(r.Angles.Trunk), ang(r.Angles.UpperArm),
		ang(r.Angles.Forearm), ang(r.Angles.Wrist), ang(r.Angles.Leg),
		val(res.Trunk), val(res.Neck), val(res.Leg),
		val(res.UpperArm), val(res.Forearm), val(res.Wrist),
		val(res.PostureScoreA), strconv.Itoa(res.LoadScore), val(res.ScoreA),
		val(res.PostureScoreB), strconv.Itoa(res.CouplingScore), val(res.ScoreB),
		val(res.ScoreC), strconv.Itoa(res.ActivityScore), val(res.FinalScore),
		res.RiskLevel.String(), strings.Join(unscored, ";"),
	}
}
