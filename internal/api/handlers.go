package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/pipeline"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/posestream"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/store"
	"github.com/banshee-data/posture.report/internal/version"
)

// scoreRequest scores angles directly. Params and Mode default to the
// analyzer's current settings.
type scoreRequest struct {
	Angles angles.JointAngles         `json:"angles"`
	Params *reba.AssessmentParameters `json:"params,omitempty"`
	Mode   *reba.Mode                 `json:"mode,omitempty"`
}

// writeScoreError maps scorer errors to responses: incomplete strict
// assessments are 422 with the unscored parts, invalid input is 400.
func writeScoreError(w http.ResponseWriter, err error) {
	var incomplete *reba.IncompleteAssessmentError
	switch {
	case errors.As(err, &incomplete):
		httputil.Unprocessable(w, err.Error(), map[string]any{"unscored": incomplete.Parts})
	case errors.Is(err, reba.ErrInvalidParameter):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	var req scoreRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	settings := s.analyzer.Settings()
	if req.Params != nil {
		settings.Params = *req.Params
	}
	if req.Mode != nil {
		settings.Mode = *req.Mode
	}
	res, err := reba.Score(req.Angles, settings.Params, settings.Mode)
	if err != nil {
		writeScoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}

type frameResponse struct {
	Processed bool            `json:"processed"`
	Record    *session.Record `json:"record,omitempty"`
}

// framesHandler feeds one landmark frame through the live analyzer, which
// hands the record to the session recorder.
func (s *Server) framesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	var frame pose.Frame
	if err := httputil.DecodeJSON(r, &frame); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = s.clock.Now()
	}
	rec, processed, err := s.analyzer.Process(frame)
	if err != nil {
		writeScoreError(w, err)
		return
	}
	if !processed {
		httputil.WriteJSON(w, http.StatusAccepted, frameResponse{})
		return
	}
	httputil.WriteJSONOK(w, frameResponse{Processed: true, Record: &rec})
}

func (s *Server) paramsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		httputil.WriteJSONOK(w, s.analyzer.Settings())
	case http.MethodPut:
		var settings pipeline.Settings
		if err := httputil.DecodeJSON(r, &settings); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if err := s.analyzer.SetSettings(settings); err != nil {
			writeScoreError(w, err)
			return
		}
		httputil.WriteJSONOK(w, s.analyzer.Settings())
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

type statsResponse struct {
	Session  session.Info      `json:"session"`
	Summary  session.Summary   `json:"summary"`
	Counters pipeline.Counters `json:"counters"`
	Stream   *posestream.Stats `json:"stream,omitempty"`
	HighRisk int               `json:"high_risk_frames"`
	Settings pipeline.Settings `json:"settings"`
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	resp := statsResponse{
		Session:  s.recorder.Info(),
		Summary:  s.recorder.Summary(),
		Counters: s.analyzer.Counters(),
		HighRisk: len(s.recorder.HighRiskFrames(0)),
		Settings: s.analyzer.Settings(),
	}
	if s.stream != nil {
		st := s.stream.Stats()
		resp.Stream = &st
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) tableCHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, reba.TableCMatrix())
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, version.Current())
}

// intParam parses an optional non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid '%s' parameter", name)
	}
	return n, nil
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.store == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sessions, err := s.store.ListSessions(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

func (s *Server) sessionFramesHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	id := r.PathValue("id")
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	recs, ok := s.storedFrames(w, r, id, limit, offset)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, recs)
}

// storedFrames loads a stored session's frames, writing the error response
// itself when it fails.
func (s *Server) storedFrames(w http.ResponseWriter, r *http.Request, id string, limit, offset int) ([]session.Record, bool) {
	if _, err := s.store.Session(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, fmt.Sprintf("session %q not found", id))
		} else {
			httputil.InternalServerError(w, err.Error())
		}
		return nil, false
	}
	recs, err := s.store.Frames(r.Context(), id, limit, offset)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load frames: %v", err))
		return nil, false
	}
	if recs == nil {
		recs = []session.Record{}
	}
	return recs, true
}
