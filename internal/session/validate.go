package session

import (
	"fmt"

	"github.com/banshee-data/posture.report/internal/reba"
)

// plausibleMax is the largest angle, in degrees, expected for each joint in
// normal working postures. All minima are 0.
var plausibleMax = [6]float64{90, 90, 180, 180, 90, 180}

// Validation reports data-quality problems in the recent-frame buffer.
// Issues make the buffer invalid; warnings flag implausible but legal values.
type Validation struct {
	Valid        bool     `json:"valid"`
	TotalRecords int      `json:"total_records"`
	TotalFrames  int      `json:"total_frames_processed"`
	Issues       []string `json:"issues"`
	Warnings     []string `json:"warnings"`
}

// ValidateRecord returns the issues and warnings for one record.
func ValidateRecord(rec Record) (issues, warnings []string) {
	if rec.Timestamp.IsZero() {
		issues = append(issues, fmt.Sprintf("frame %d: missing timestamp", rec.FrameID))
	}
	if f, ok := rec.Result.FinalScore.Get(); ok {
		lvl, err := reba.RiskLevelFor(f)
		switch {
		case err != nil:
			issues = append(issues, fmt.Sprintf("frame %d: %v", rec.FrameID, err))
		case lvl != rec.Result.RiskLevel:
			issues = append(issues, fmt.Sprintf("frame %d: risk level %s does not match score %d", rec.FrameID, rec.Result.RiskLevel, f))
		}
	} else if rec.Result.RiskLevel != reba.RiskInsufficientData {
		issues = append(issues, fmt.Sprintf("frame %d: risk level %s without a final score", rec.FrameID, rec.Result.RiskLevel))
	}
	for i, a := range angleSeries(rec.Angles) {
		if d, ok := a.Value(); ok && (d < 0 || d > plausibleMax[i]) {
			warnings = append(warnings, fmt.Sprintf("frame %d: %s angle %.1f outside 0-%.0f", rec.FrameID, angleNames[i], d, plausibleMax[i]))
		}
	}
	return issues, warnings
}

// Validate checks every buffered record and the timestamp order.
func (r *Recorder) Validate() Validation {
	recent := r.Recent()
	v := Validation{
		TotalRecords: len(recent),
		TotalFrames:  r.Summary().TotalFrames,
	}
	if len(recent) == 0 {
		v.Issues = append(v.Issues, "no frames recorded")
		return v
	}
	unordered := false
	for i, rec := range recent {
		iss, warn := ValidateRecord(rec)
		v.Issues = append(v.Issues, iss...)
		v.Warnings = append(v.Warnings, warn...)
		if i > 0 && rec.Timestamp.Before(recent[i-1].Timestamp) {
			unordered = true
		}
	}
	if unordered {
		v.Warnings = append(v.Warnings, "timestamps are not in order")
	}
	v.Valid = len(v.Issues) == 0
	return v
}
