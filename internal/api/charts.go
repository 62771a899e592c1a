package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/banshee-data/posture.report/internal/charts"
	"github.com/banshee-data/posture.report/internal/httputil"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
)

// chartRecords returns the frames of ?session=<id> from the store, or the
// live recorder's recent frames when no session is given.
func (s *Server) chartRecords(w http.ResponseWriter, r *http.Request) (recs []session.Record, title string, ok bool) {
	id := r.URL.Query().Get("session")
	if id == "" {
		return s.recorder.Recent(), "Live session " + s.recorder.ID(), true
	}
	if s.store == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return nil, "", false
	}
	recs, ok = s.storedFrames(w, r, id, 0, 0)
	return recs, "Session " + id, ok
}

func (s *Server) timelineChartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	recs, title, ok := s.chartRecords(w, r)
	if !ok {
		return
	}

	buf := bytes.NewBuffer(nil)
	switch format := r.URL.Query().Get("format"); format {
	case "", "html":
		if err := charts.TimelineHTML(buf, title, recs); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case "png":
		if err := charts.WriteTimelinePNG(buf, recs); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
	default:
		httputil.BadRequest(w, fmt.Sprintf("unsupported format %q", format))
		return
	}
	w.Write(buf.Bytes())
}

func (s *Server) riskChartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	var (
		counts map[reba.RiskLevel]int
		title  string
	)
	if id := r.URL.Query().Get("session"); id != "" && s.store != nil {
		if _, ok := s.storedFrames(w, r, id, 1, 0); !ok {
			return
		}
		var err error
		if counts, err = s.store.RiskDistribution(r.Context(), id); err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		title = "Session " + id
	} else {
		recs, t, ok := s.chartRecords(w, r)
		if !ok {
			return
		}
		counts, title = charts.RiskCounts(recs), t
	}

	buf := bytes.NewBuffer(nil)
	if err := charts.RiskDistributionHTML(buf, title, counts); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
