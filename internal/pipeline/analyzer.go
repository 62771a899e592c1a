// Package pipeline turns landmark frames into scored session records:
// angle extraction, REBA scoring, frame skipping and delivery to sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
)

// Settings is the scoring configuration applied to every frame.
type Settings struct {
	Params reba.AssessmentParameters `json:"params"`
	Mode   reba.Mode                 `json:"mode"`
}

// Validate checks the mode and parameters.
func (s Settings) Validate() error {
	if !s.Mode.Valid() {
		return &reba.InvalidParameterError{Field: "mode", Reason: fmt.Sprintf("unknown value %d", int(s.Mode))}
	}
	return s.Params.Validate()
}

// Sink receives every processed record.
type Sink interface {
	Write(session.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(session.Record) error

func (f SinkFunc) Write(rec session.Record) error { return f(rec) }

// Options configures an Analyzer. EveryN processes one frame in every N
// received; values below 1 mean every frame.
type Options struct {
	MinVisibility float64
	EveryN        int
	Settings      Settings
	Sinks         []Sink
}

// Counters is a snapshot of an Analyzer's progress.
type Counters struct {
	Received   int64 `json:"received"`
	Processed  int64 `json:"processed"`
	Skipped    int64 `json:"skipped"`
	Incomplete int64 `json:"incomplete"`
}

// Analyzer scores frames with a settings snapshot that can be swapped while
// frames are flowing.
type Analyzer struct {
	extractor angles.Extractor
	everyN    int64
	sinks     []Sink
	settings  atomic.Pointer[Settings]

	received   atomic.Int64
	processed  atomic.Int64
	skipped    atomic.Int64
	incomplete atomic.Int64
}

// NewAnalyzer validates opts.Settings and returns an Analyzer.
func NewAnalyzer(opts Options) (*Analyzer, error) {
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}
	everyN := opts.EveryN
	if everyN < 1 {
		everyN = 1
	}
	a := &Analyzer{
		extractor: angles.NewExtractor(opts.MinVisibility),
		everyN:    int64(everyN),
		sinks:     opts.Sinks,
	}
	s := opts.Settings
	a.settings.Store(&s)
	return a, nil
}

// Settings returns the current settings.
func (a *Analyzer) Settings() Settings { return *a.settings.Load() }

// SetSettings replaces the settings used for subsequent frames.
func (a *Analyzer) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	a.settings.Store(&s)
	monitoring.Logf("pipeline: settings updated: mode=%s side=%s load=%.1fkg coupling=%s",
		s.Mode, s.Params.Side, s.Params.LoadWeightKg, s.Params.Coupling)
	return nil
}

// Counters returns the current counters.
func (a *Analyzer) Counters() Counters {
	return Counters{
		Received:   a.received.Load(),
		Processed:  a.processed.Load(),
		Skipped:    a.skipped.Load(),
		Incomplete: a.incomplete.Load(),
	}
}

// Analyze extracts and scores one frame with the current settings. An
// incomplete strict assessment still yields a record with every score unset,
// the risk level "insufficient data" and the unscored parts listed, alongside
// the *reba.IncompleteAssessmentError.
func (a *Analyzer) Analyze(frame pose.Frame) (session.Record, error) {
	s := a.settings.Load()
	ang := a.extractor.Extract(frame.Landmarks, s.Params.Side)
	rec := session.Record{FrameID: frame.FrameID, Timestamp: frame.Timestamp, Angles: ang}

	res, err := reba.Score(ang, s.Params, s.Mode)
	var incomplete *reba.IncompleteAssessmentError
	switch {
	case errors.As(err, &incomplete):
		rec.Result = reba.Result{Unscored: incomplete.Parts}
		return rec, err
	case err != nil:
		return rec, fmt.Errorf("frame %d: %w", frame.FrameID, err)
	}
	rec.Result = res
	return rec, nil
}

// Process applies frame skipping, analyzes the frame and hands the record to
// every sink. It reports whether the frame was processed.
func (a *Analyzer) Process(frame pose.Frame) (session.Record, bool, error) {
	n := a.received.Add(1)
	if (n-1)%a.everyN != 0 {
		a.skipped.Add(1)
		return session.Record{}, false, nil
	}
	rec, err := a.Analyze(frame)
	if err != nil {
		if !errors.Is(err, reba.ErrIncompleteAssessment) {
			return rec, false, err
		}
		a.incomplete.Add(1)
		if monitoring.DebugEnabled() {
			monitoring.Debugf("frame %d: %v", frame.FrameID, err)
		}
	}
	a.processed.Add(1)
	for _, sink := range a.sinks {
		if err := sink.Write(rec); err != nil {
			return rec, true, fmt.Errorf("sink: %w", err)
		}
	}
	return rec, true, nil
}

// Run processes frames until the channel closes or ctx is cancelled. A closed
// channel returns nil.
func (a *Analyzer) Run(ctx context.Context, frames <-chan pose.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if _, _, err := a.Process(frame); err != nil {
				return err
			}
		}
	}
}

// ScoreBatch analyzes frames concurrently with at most workers goroutines and
// returns records in input order. Frame skipping and sinks are not applied.
// Incomplete strict assessments are kept as unscored records.
func (a *Analyzer) ScoreBatch(ctx context.Context, frames []pose.Frame, workers int) ([]session.Record, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]session.Record, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range frames {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := a.Analyze(frames[i])
			if err != nil && !errors.Is(err, reba.ErrIncompleteAssessment) {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
