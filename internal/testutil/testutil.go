// Package testutil provides shared fixtures for tests that sit above the
// scoring core: landmark sets, the worked-example posture and scored records.
package testutil

import (
	"testing"
	"time"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
)

// T0 is the start time used by fixtures.
var T0 = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

// UprightLandmarks is a standing figure facing the camera with a straight
// right arm hanging down and straight legs. Every landmark the right-side
// extractor needs is present and fully visible.
func UprightLandmarks() pose.Set {
	lm := func(x, y float64) pose.Landmark { return pose.Landmark{X: x, Y: y, Visibility: 0.99} }
	return pose.Set{
		pose.LeftEye:       lm(0.52, 0.10),
		pose.RightEye:      lm(0.48, 0.10),
		pose.LeftShoulder:  lm(0.60, 0.25),
		pose.RightShoulder: lm(0.40, 0.25),
		pose.LeftHip:       lm(0.56, 0.55),
		pose.RightHip:      lm(0.44, 0.55),
		pose.RightElbow:    lm(0.40, 0.40),
		pose.RightWrist:    lm(0.40, 0.55),
		pose.RightIndex:    lm(0.40, 0.60),
		pose.RightKnee:     lm(0.44, 0.75),
		pose.RightAnkle:    lm(0.44, 0.95),
	}
}

// WithoutHips is UprightLandmarks with both hips missing, which leaves the
// trunk and leg unmeasurable.
func WithoutHips() pose.Set {
	s := UprightLandmarks()
	delete(s, pose.LeftHip)
	delete(s, pose.RightHip)
	return s
}

// Frames returns n frames of set, 100ms apart from T0, numbered from 1.
func Frames(n int, set pose.Set) []pose.Frame {
	out := make([]pose.Frame, n)
	for i := range out {
		out[i] = pose.Frame{FrameID: i + 1, Timestamp: T0.Add(time.Duration(i) * 100 * time.Millisecond), Landmarks: set}
	}
	return out
}

// WorkedExampleAngles is neck 25, trunk 30, upper arm 135, forearm 80,
// wrist 10, leg 175. With WorkedExampleParams it scores 4 (medium).
func WorkedExampleAngles() angles.JointAngles {
	return angles.JointAngles{
		Neck: angles.Degrees(25), Trunk: angles.Degrees(30), UpperArm: angles.Degrees(135),
		Forearm: angles.Degrees(80), Wrist: angles.Degrees(10), Leg: angles.Degrees(175),
	}
}

// WorkedExampleParams is a 5 kg load with a fair grip.
func WorkedExampleParams() reba.AssessmentParameters {
	return reba.AssessmentParameters{LoadWeightKg: 5, Coupling: reba.CouplingFair}
}

// ScoredRecord scores a with WorkedExampleParams and wraps it as a record.
func ScoredRecord(t testing.TB, id int, ts time.Time, a angles.JointAngles, mode reba.Mode) session.Record {
	t.Helper()
	res, err := reba.Score(a, WorkedExampleParams(), mode)
	if err != nil {
		t.Fatalf("score frame %d: %v", id, err)
	}
	return session.Record{FrameID: id, Timestamp: ts, Angles: a, Result: res}
}
