// Package api serves REBA scoring, live session statistics, stored sessions
// and charts over HTTP.
package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/posture.report/internal/pipeline"
	"github.com/banshee-data/posture.report/internal/posestream"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/store"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server holds the live analyzer and recorder plus the optional store and
// pose stream.
type Server struct {
	analyzer *pipeline.Analyzer
	recorder *session.Recorder
	store    *store.Store
	stream   *posestream.Stream
	clock    timeutil.Clock
}

// Options configures a Server. Store and Stream may be nil.
type Options struct {
	Analyzer *pipeline.Analyzer
	Recorder *session.Recorder
	Store    *store.Store
	Stream   *posestream.Stream
	Clock    timeutil.Clock
}

func NewServer(opts Options) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		analyzer: opts.Analyzer,
		recorder: opts.Recorder,
		store:    opts.Store,
		stream:   opts.Stream,
		clock:    clock,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/score", s.scoreHandler)
	mux.HandleFunc("/api/frames", s.framesHandler)
	mux.HandleFunc("/api/params", s.paramsHandler)
	mux.HandleFunc("/api/stats", s.statsHandler)
	mux.HandleFunc("/api/tables/c", s.tableCHandler)
	mux.HandleFunc("/api/version", s.versionHandler)
	mux.HandleFunc("/api/sessions", s.listSessionsHandler)
	mux.HandleFunc("GET /api/sessions/{id}/frames", s.sessionFramesHandler)
	mux.HandleFunc("/charts/timeline", s.timelineChartHandler)
	mux.HandleFunc("/charts/risk", s.riskChartHandler)
	return mux
}

// AttachAdminRoutes mounts the store and stream debug routes when present.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) error {
	if s.store != nil {
		if err := s.store.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	if s.stream != nil {
		s.stream.AttachAdminRoutes(mux)
	}
	return nil
}

// Handler returns the API mux wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}
