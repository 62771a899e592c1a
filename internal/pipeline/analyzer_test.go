package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/testutil"
)

func bestEffort() Settings {
	return Settings{Params: reba.AssessmentParameters{LoadWeightKg: 3}, Mode: reba.ModeBestEffort}
}

type memSink struct {
	mu   sync.Mutex
	recs []session.Record
	err  error
}

func (m *memSink) Write(rec session.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, rec)
	return nil
}

func TestNewAnalyzerValidates(t *testing.T) {
	_, err := NewAnalyzer(Options{})
	assert.True(t, errors.Is(err, reba.ErrInvalidParameter), "zero mode")

	_, err = NewAnalyzer(Options{Settings: Settings{Mode: reba.ModeStrict, Params: reba.AssessmentParameters{LoadWeightKg: -1}}})
	assert.True(t, errors.Is(err, reba.ErrInvalidParameter))
}

func TestAnalyzeMatchesScorer(t *testing.T) {
	a, err := NewAnalyzer(Options{Settings: bestEffort()})
	require.NoError(t, err)

	rec, err := a.Analyze(testutil.Frames(1, testutil.UprightLandmarks())[0])
	require.NoError(t, err)
	assert.Equal(t, 1, rec.FrameID)
	assert.True(t, testutil.T0.Equal(rec.Timestamp))

	want, err := reba.Score(rec.Angles, bestEffort().Params, reba.ModeBestEffort)
	require.NoError(t, err)
	assert.Equal(t, want, rec.Result)
	assert.True(t, rec.Scored())
}

func TestAnalyzeStrictIncomplete(t *testing.T) {
	a, err := NewAnalyzer(Options{Settings: Settings{Mode: reba.ModeStrict}})
	require.NoError(t, err)

	rec, err := a.Analyze(testutil.Frames(1, testutil.WithoutHips())[0])
	require.Error(t, err)
	assert.True(t, errors.Is(err, reba.ErrIncompleteAssessment))
	assert.False(t, rec.Scored())
	assert.Equal(t, reba.RiskInsufficientData, rec.Result.RiskLevel)
	assert.Contains(t, rec.Result.Unscored, reba.Trunk)
	assert.Contains(t, rec.Result.Unscored, reba.Leg)
}

// lowVisibility returns the upright figure with roles seen at visibility v.
func lowVisibility(v float64, roles ...pose.Role) pose.Set {
	set := testutil.UprightLandmarks()
	for _, r := range roles {
		l := set[r]
		l.Visibility = v
		set[r] = l
	}
	return set
}

func TestAnalyzeLowVisibilityTrunk(t *testing.T) {
	frame := testutil.Frames(1, lowVisibility(0.2, pose.LeftHip, pose.RightHip))[0]

	t.Run("strict", func(t *testing.T) {
		a, err := NewAnalyzer(Options{MinVisibility: 0.5, Settings: Settings{Mode: reba.ModeStrict}})
		require.NoError(t, err)
		_, err = a.Analyze(frame)
		require.Error(t, err)
		assert.True(t, errors.Is(err, reba.ErrIncompleteAssessment))
		assert.Contains(t, err.Error(), "insufficient data")
		assert.Contains(t, err.Error(), "trunk")
	})

	t.Run("best_effort", func(t *testing.T) {
		a, err := NewAnalyzer(Options{MinVisibility: 0.5, Settings: bestEffort()})
		require.NoError(t, err)
		rec, err := a.Analyze(frame)
		require.NoError(t, err)
		assert.False(t, rec.Result.Trunk.IsScored())
		assert.False(t, rec.Result.FinalScore.IsScored())
		assert.Equal(t, reba.RiskInsufficientData, rec.Result.RiskLevel)
		assert.True(t, rec.Result.ScoreB.IsScored(), "arm group does not use the hips")
	})

	t.Run("shoulders", func(t *testing.T) {
		a, err := NewAnalyzer(Options{MinVisibility: 0.5, Settings: Settings{Mode: reba.ModeStrict}})
		require.NoError(t, err)
		_, err = a.Analyze(testutil.Frames(1, lowVisibility(0.2, pose.LeftShoulder, pose.RightShoulder))[0])
		var inc *reba.IncompleteAssessmentError
		require.True(t, errors.As(err, &inc))
		assert.Contains(t, inc.Parts, reba.Trunk)
	})
}

func TestProcessEveryN(t *testing.T) {
	sink := &memSink{}
	a, err := NewAnalyzer(Options{EveryN: 3, Settings: bestEffort(), Sinks: []Sink{sink}})
	require.NoError(t, err)

	for _, f := range testutil.Frames(7, testutil.UprightLandmarks()) {
		_, _, err := a.Process(f)
		require.NoError(t, err)
	}
	ids := make([]int, len(sink.recs))
	for i, r := range sink.recs {
		ids[i] = r.FrameID
	}
	assert.Equal(t, []int{1, 4, 7}, ids)
	assert.Equal(t, Counters{Received: 7, Processed: 3, Skipped: 4}, a.Counters())
}

func TestProcessSinkError(t *testing.T) {
	boom := errors.New("disk full")
	a, err := NewAnalyzer(Options{Settings: bestEffort(), Sinks: []Sink{&memSink{err: boom}}})
	require.NoError(t, err)
	_, processed, err := a.Process(testutil.Frames(1, testutil.UprightLandmarks())[0])
	assert.True(t, processed)
	assert.ErrorIs(t, err, boom)
}

func TestRunStrictKeepsGoing(t *testing.T) {
	sink := &memSink{}
	a, err := NewAnalyzer(Options{Settings: Settings{Mode: reba.ModeStrict}, Sinks: []Sink{sink}})
	require.NoError(t, err)

	ch := make(chan pose.Frame, 3)
	ch <- pose.Frame{FrameID: 1, Timestamp: testutil.T0, Landmarks: testutil.UprightLandmarks()}
	ch <- pose.Frame{FrameID: 2, Timestamp: testutil.T0, Landmarks: testutil.WithoutHips()}
	ch <- pose.Frame{FrameID: 3, Timestamp: testutil.T0, Landmarks: testutil.UprightLandmarks()}
	close(ch)

	require.NoError(t, a.Run(context.Background(), ch))
	require.Len(t, sink.recs, 3)
	assert.False(t, sink.recs[1].Scored())
	assert.Equal(t, int64(1), a.Counters().Incomplete)
}

func TestRunCancelled(t *testing.T) {
	a, err := NewAnalyzer(Options{Settings: bestEffort()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Run(ctx, make(chan pose.Frame)), context.Canceled)
}

func TestSetSettings(t *testing.T) {
	a, err := NewAnalyzer(Options{Settings: bestEffort()})
	require.NoError(t, err)

	heavy := bestEffort()
	heavy.Params.LoadWeightKg = 20
	heavy.Params.Coupling = reba.CouplingPoor
	require.NoError(t, a.SetSettings(heavy))
	assert.Equal(t, heavy, a.Settings())

	rec, err := a.Analyze(testutil.Frames(1, testutil.UprightLandmarks())[0])
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Result.LoadScore)
	assert.Equal(t, 2, rec.Result.CouplingScore)

	assert.Error(t, a.SetSettings(Settings{}))
	assert.Equal(t, heavy, a.Settings(), "rejected settings leave the snapshot unchanged")
}

func TestScoreBatchPreservesOrder(t *testing.T) {
	a, err := NewAnalyzer(Options{Settings: Settings{Mode: reba.ModeStrict}})
	require.NoError(t, err)

	in := testutil.Frames(50, testutil.UprightLandmarks())
	in[10].Landmarks = testutil.WithoutHips()
	out, err := a.ScoreBatch(context.Background(), in, 4)
	require.NoError(t, err)
	require.Len(t, out, 50)
	for i, rec := range out {
		assert.Equal(t, i+1, rec.FrameID)
		assert.Equal(t, i != 10, rec.Scored())
	}
}

func TestScoreBatchCancelled(t *testing.T) {
	a, err := NewAnalyzer(Options{Settings: bestEffort()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.ScoreBatch(ctx, testutil.Frames(5, testutil.UprightLandmarks()), 2)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeInserter struct {
	session string
	ids     []int
}

func (f *fakeInserter) InsertFrame(_ context.Context, id string, rec session.Record) error {
	f.session = id
	f.ids = append(f.ids, rec.FrameID)
	return nil
}

func TestStoreSink(t *testing.T) {
	ins := &fakeInserter{}
	sink := NewStoreSink(context.Background(), ins, "s1")
	a, err := NewAnalyzer(Options{Settings: bestEffort(), Sinks: []Sink{sink}})
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background(), feed(testutil.Frames(2, testutil.UprightLandmarks()))))
	assert.Equal(t, "s1", ins.session)
	assert.Equal(t, []int{1, 2}, ins.ids)
}

func feed(fs []pose.Frame) <-chan pose.Frame {
	ch := make(chan pose.Frame, len(fs))
	for _, f := range fs {
		ch <- f
	}
	close(ch)
	return ch
}
