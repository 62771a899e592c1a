package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/store"
	"github.com/banshee-data/posture.report/internal/testutil"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

func TestParseAngle(t *testing.T) {
	a, err := parseAngle("neck", "")
	require.NoError(t, err)
	assert.False(t, a.Available())

	a, err = parseAngle("neck", "12.5")
	require.NoError(t, err)
	d, ok := a.Value()
	assert.True(t, ok)
	assert.Equal(t, 12.5, d)

	_, err = parseAngle("neck", "abc")
	assert.ErrorContains(t, err, "--neck")
}

func TestRunScoreWorkedExample(t *testing.T) {
	var out bytes.Buffer
	err := runScore([]string{
		"--neck", "25", "--trunk", "30", "--upper-arm", "135", "--forearm", "80",
		"--wrist", "10", "--leg", "175", "--load", "5", "--coupling", "fair", "--json",
	}, &out)
	require.NoError(t, err)

	var res reba.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, reba.Scored(4), res.FinalScore)
	assert.Equal(t, reba.RiskMedium, res.RiskLevel)
}

func TestRunScoreText(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runScore([]string{"--neck", "25", "--leg", "175"}, &out))
	text := out.String()
	assert.Contains(t, text, "trunk")
	assert.Contains(t, text, "N/A")
	assert.Contains(t, text, "insufficient data")
}

func TestRunScoreStrictIncomplete(t *testing.T) {
	err := runScore([]string{"--mode", "strict", "--neck", "25"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, reba.ErrIncompleteAssessment)
}

func TestRunScoreBadFlags(t *testing.T) {
	assert.Error(t, runScore([]string{"--coupling", "sticky"}, &bytes.Buffer{}))
	assert.Error(t, runScore([]string{"--load", "-3"}, &bytes.Buffer{}))
	assert.Error(t, runScore([]string{"--config", "missing.json"}, &bytes.Buffer{}))
}

func TestRunScoreConfigOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"load_weight_kg": 20, "coupling": "poor"}`), 0o644))

	var out bytes.Buffer
	require.NoError(t, runScore([]string{"--config", path, "--coupling", "good", "--json"}, &out))
	var res reba.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 2, res.LoadScore, "load from config")
	assert.Equal(t, 0, res.CouplingScore, "flag overrides config")
}

func TestRunTables(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runTables(nil, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 13)
	assert.Contains(t, lines[0], "A\\B")
}

func writeJSONL(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		line, err := json.Marshal(pose.Frame{FrameID: i + 1, Timestamp: testutil.T0.Add(time.Duration(i) * 100 * time.Millisecond), Landmarks: testutil.UprightLandmarks()})
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteString("\nnot json\n")
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestReadFrames(t *testing.T) {
	frames, malformed, err := readFrames(strings.NewReader("{\"frame_id\":1}\n\n{oops\n{\"frame_id\":2}\n"))
	require.NoError(t, err)
	assert.Len(t, frames, 2)
	assert.Equal(t, 1, malformed)
}

func TestEveryNth(t *testing.T) {
	in := make([]pose.Frame, 7)
	for i := range in {
		in[i].FrameID = i
	}
	got := everyNth(in, 3)
	ids := make([]int, len(got))
	for i, f := range got {
		ids[i] = f.FrameID
	}
	assert.Equal(t, []int{0, 3, 6}, ids)
	assert.Len(t, everyNth(in, 1), 7)
}

func TestStampFrames(t *testing.T) {
	clk, err := timeutil.NewFrameClock(testutil.T0, 10)
	require.NoError(t, err)
	frames := make([]pose.Frame, 3)
	frames[1].Timestamp = testutil.T0.Add(time.Hour)

	assert.Equal(t, 2, stampFrames(frames, clk))
	assert.Equal(t, testutil.T0, frames[0].Timestamp)
	assert.Equal(t, testutil.T0.Add(time.Hour), frames[1].Timestamp)
	assert.Equal(t, testutil.T0.Add(200*time.Millisecond), frames[2].Timestamp)
}

func TestRunAnalyzeBadFPS(t *testing.T) {
	err := runAnalyze([]string{"--input", writeJSONL(t, 2), "--output-dir", t.TempDir(), "--fps", "-1"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "frame rate")
}

func TestRunAnalyze(t *testing.T) {
	input := writeJSONL(t, 12)
	outDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "reba.db")

	var out bytes.Buffer
	err := runAnalyze([]string{
		"--input", input, "--output-dir", outDir, "--db", dbPath,
		"--name", "bench", "--workers", "3", "--load", "5",
	}, &out)
	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "12 frames (12 scored, 1 malformed lines skipped)")

	for _, ext := range []string{".json", ".md", ".csv", "_timeline.png"} {
		matches, err := filepath.Glob(filepath.Join(outDir, "bench_*"+ext))
		require.NoError(t, err)
		assert.Len(t, matches, 1, ext)
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	sessions, err := st.ListSessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "bench", sessions[0].Name)
	assert.Equal(t, 12, sessions[0].FrameCount)
	assert.NotNil(t, sessions[0].FinishedAt)
}

func TestRunAnalyzeEveryN(t *testing.T) {
	var out bytes.Buffer
	err := runAnalyze([]string{"--input", writeJSONL(t, 10), "--output-dir", t.TempDir(), "--every", "5", "--no-png"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), fmt.Sprintf("%d frames", 2))
}

func TestRunAnalyzeEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o644))
	err := runAnalyze([]string{"--input", path, "--output-dir", t.TempDir()}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no frames")
}
