package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
)

func TestWorkedExample(t *testing.T) {
	rec := ScoredRecord(t, 1, T0, WorkedExampleAngles(), reba.ModeStrict)
	assert.Equal(t, reba.Scored(4), rec.Result.FinalScore)
	assert.Equal(t, reba.RiskMedium, rec.Result.RiskLevel)
}

func TestUprightLandmarksExtract(t *testing.T) {
	ja := angles.NewExtractor(0.5).Extract(UprightLandmarks(), pose.SideRight)
	assert.Equal(t, 6, ja.Available())

	ja = angles.NewExtractor(0.5).Extract(WithoutHips(), pose.SideRight)
	assert.False(t, ja.Trunk.Available())
	assert.False(t, ja.Leg.Available())
}

func TestFrames(t *testing.T) {
	fs := Frames(3, UprightLandmarks())
	assert.Len(t, fs, 3)
	assert.Equal(t, 3, fs[2].FrameID)
	assert.True(t, fs[2].Timestamp.After(fs[1].Timestamp))
}
