package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/posture.report/internal/pipeline"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/store"
	"github.com/banshee-data/posture.report/internal/testutil"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

var t0 = testutil.T0

type testEnv struct {
	server   *Server
	recorder *session.Recorder
	store    *store.Store
	mux      *http.ServeMux
}

func newTestEnv(t *testing.T, withStore bool) *testEnv {
	t.Helper()
	clock := timeutil.NewMockClock(t0)
	rec, err := session.NewRecorder(session.Options{OutputDir: t.TempDir(), Clock: clock})
	require.NoError(t, err)
	an, err := pipeline.NewAnalyzer(pipeline.Options{
		Settings: pipeline.Settings{Mode: reba.ModeBestEffort, Params: reba.AssessmentParameters{LoadWeightKg: 5, Coupling: reba.CouplingFair}},
		Sinks:    []pipeline.Sink{rec},
	})
	require.NoError(t, err)

	env := &testEnv{recorder: rec}
	opts := Options{Analyzer: an, Recorder: rec, Clock: clock}
	if withStore {
		st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		opts.Store = st
		env.store = st
	}
	env.server = NewServer(opts)
	env.mux = env.server.ServeMux()
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

const workedExample = `{"angles":{"neck":25,"trunk":30,"upper_arm":135,"forearm":80,"wrist":10,"leg":175}}`

func TestScoreWorkedExample(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodPost, "/api/score", workedExample)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res reba.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, reba.Scored(4), res.FinalScore)
	assert.Equal(t, reba.RiskMedium, res.RiskLevel)
}

func TestScoreStrictIncomplete(t *testing.T) {
	env := newTestEnv(t, false)
	body := `{"angles":{"neck":25,"trunk":null,"upper_arm":135,"forearm":80,"wrist":10,"leg":175},"mode":"strict"}`
	w := env.do(t, http.MethodPost, "/api/score", body)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp struct {
		Error   string `json:"error"`
		Details struct {
			Unscored []string `json:"unscored"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "insufficient data")
	assert.Equal(t, []string{"trunk"}, resp.Details.Unscored)

	// The same input in best-effort mode scores what it can.
	w = env.do(t, http.MethodPost, "/api/score", strings.Replace(body, `"strict"`, `"best_effort"`, 1))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"risk_level":"insufficient data"`)
}

func TestScoreBadRequests(t *testing.T) {
	env := newTestEnv(t, false)
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"angles":`},
		{"unknown field", `{"angels":{}}`},
		{"negative load", `{"angles":{},"params":{"load_weight_kg":-2}}`},
		{"bad coupling", `{"angles":{},"params":{"coupling":"sticky"}}`},
		{"bad mode", `{"angles":{},"mode":"lenient"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/score", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodGet, "/api/score", "").Code)
}

func TestFramesFeedRecorder(t *testing.T) {
	env := newTestEnv(t, false)
	frame := `{"frame_id":1,"landmarks":{
		"left_eye":{"x":0.52,"y":0.10,"visibility":0.99},"right_eye":{"x":0.48,"y":0.10,"visibility":0.99},
		"left_shoulder":{"x":0.60,"y":0.25,"visibility":0.99},"right_shoulder":{"x":0.40,"y":0.25,"visibility":0.99},
		"left_hip":{"x":0.56,"y":0.55,"visibility":0.99},"right_hip":{"x":0.44,"y":0.55,"visibility":0.99},
		"right_elbow":{"x":0.40,"y":0.40,"visibility":0.99},"right_wrist":{"x":0.40,"y":0.55,"visibility":0.99},
		"right_index":{"x":0.40,"y":0.60,"visibility":0.99},"right_knee":{"x":0.44,"y":0.75,"visibility":0.99},
		"right_ankle":{"x":0.44,"y":0.95,"visibility":0.99}}}`
	w := env.do(t, http.MethodPost, "/api/frames", frame)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Processed bool           `json:"processed"`
		Record    session.Record `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Processed)
	assert.True(t, resp.Record.Scored())
	assert.True(t, t0.Equal(resp.Record.Timestamp), "missing timestamp filled from the clock")
	assert.Equal(t, 1, env.recorder.Len())

	w = env.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats struct {
		Summary  session.Summary   `json:"summary"`
		Counters pipeline.Counters `json:"counters"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Summary.TotalFrames)
	assert.Equal(t, int64(1), stats.Counters.Processed)
}

func TestParamsRoundTrip(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/api/params", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"best_effort"`)

	w = env.do(t, http.MethodPut, "/api/params", `{"mode":"strict","params":{"load_weight_kg":12,"coupling":"poor","side":"left"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := env.server.analyzer.Settings()
	assert.Equal(t, reba.ModeStrict, got.Mode)
	assert.Equal(t, 12.0, got.Params.LoadWeightKg)
	assert.Equal(t, reba.CouplingPoor, got.Params.Coupling)

	w = env.do(t, http.MethodPut, "/api/params", `{"mode":"strict","params":{"load_weight_kg":-1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodDelete, "/api/params", "").Code)
}

func TestTableCAndVersion(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/api/tables/c", "")
	require.Equal(t, http.StatusOK, w.Code)
	var table [12][12]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &table))
	assert.Equal(t, reba.TableCMatrix(), table)

	w = env.do(t, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version"`)
}

func TestSessionsWithoutStore(t *testing.T) {
	env := newTestEnv(t, false)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/sessions", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.do(t, http.MethodGet, "/api/sessions/x/frames", "").Code)
}

func TestStoredSessions(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	sess, err := env.store.CreateSession(ctx, store.Session{Name: "line 3", Mode: reba.ModeBestEffort, StartedAt: t0})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		rec := testutil.ScoredRecord(t, i, t0.Add(time.Duration(i)*time.Second), testutil.WorkedExampleAngles(), reba.ModeStrict)
		require.NoError(t, env.store.InsertFrame(ctx, sess.ID, rec))
	}

	w := env.do(t, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "line 3", list[0].Name)

	w = env.do(t, http.MethodGet, "/api/sessions/"+sess.ID+"/frames?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var frames []session.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frames))
	assert.Len(t, frames, 2)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/sessions/missing/frames", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/sessions/"+sess.ID+"/frames?limit=x", "").Code)

	w = env.do(t, http.MethodGet, "/charts/risk?session="+sess.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), reba.RiskMedium.Color())

	w = env.do(t, http.MethodGet, "/charts/timeline?session="+sess.ID+"&format=png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestLiveCharts(t *testing.T) {
	env := newTestEnv(t, false)
	w := env.do(t, http.MethodGet, "/charts/timeline", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "Live session")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/charts/timeline?format=svg", "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/charts/risk", "").Code)
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Contains(t, statusCodeColor(200), "200")
	assert.Contains(t, statusCodeColor(503), colorBoldRed)
}
