package session

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/reba"
)

// running is an online mean/variance accumulator (Welford). It keeps O(1)
// state per series so a session of any length costs constant memory.
type running struct {
	n        int
	mean, m2 float64
	min, max float64
}

func (r *running) add(x float64) {
	r.n++
	if r.n == 1 {
		r.min, r.max = x, x
	} else {
		r.min = math.Min(r.min, x)
		r.max = math.Max(r.max, x)
	}
	d := x - r.mean
	r.mean += d / float64(r.n)
	r.m2 += d * (x - r.mean)
}

func (r *running) summary() AngleSummary {
	if r.n == 0 {
		return AngleSummary{}
	}
	return AngleSummary{
		Count: r.n,
		Mean:  r.mean,
		Std:   math.Sqrt(r.m2 / float64(r.n)),
		Min:   r.min,
		Max:   r.max,
	}
}

// AngleSummary describes one joint angle over the session.
type AngleSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// ScoreSummary describes the final REBA scores of the session.
type ScoreSummary struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Median float64 `json:"median"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// Summary is a snapshot of session statistics.
type Summary struct {
	TotalFrames     int                     `json:"total_frames"`
	ValidFrames     int                     `json:"valid_frames"`
	InvalidFrames   int                     `json:"invalid_frames"`
	SuccessRate     float64                 `json:"success_rate"`
	DurationSeconds float64                 `json:"duration_seconds"`
	AverageFPS      float64                 `json:"average_fps"`
	REBA            *ScoreSummary           `json:"reba_score,omitempty"`
	Angles          map[string]AngleSummary `json:"angles"`
	RiskCounts      map[string]int          `json:"risk_counts"`
	RiskPercentages map[string]float64      `json:"risk_percentages"`
}

// HighRiskShare returns the fraction of valid frames rated high or very high.
func (s Summary) HighRiskShare() float64 {
	if s.ValidFrames == 0 {
		return 0
	}
	n := s.RiskCounts[reba.RiskHigh.String()] + s.RiskCounts[reba.RiskVeryHigh.String()]
	return float64(n) / float64(s.ValidFrames)
}

var angleNames = [...]string{"neck", "trunk", "upper_arm", "forearm", "wrist", "leg"}

func angleSeries(a angles.JointAngles) [6]angles.Angle {
	return [6]angles.Angle{a.Neck, a.Trunk, a.UpperArm, a.Forearm, a.Wrist, a.Leg}
}

// Stats accumulates session statistics in constant memory. Final scores are
// bounded to 1..15, so they are kept as a histogram and summarised with
// weighted statistics. Stats is not safe for concurrent use; Recorder guards
// it.
type Stats struct {
	total, valid int
	timed        int
	scoreCounts  [16]float64
	angles       [6]running
	risk         map[reba.RiskLevel]int
	first, last  time.Time
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{risk: make(map[reba.RiskLevel]int)}
}

// Add folds one record into the statistics.
func (s *Stats) Add(rec Record) {
	s.total++
	if !rec.Timestamp.IsZero() {
		s.timed++
		if s.first.IsZero() || rec.Timestamp.Before(s.first) {
			s.first = rec.Timestamp
		}
		if rec.Timestamp.After(s.last) {
			s.last = rec.Timestamp
		}
	}
	for i, a := range angleSeries(rec.Angles) {
		if d, ok := a.Value(); ok {
			s.angles[i].add(d)
		}
	}
	s.risk[rec.Result.RiskLevel]++
	if f, ok := rec.Result.FinalScore.Get(); ok && f >= 1 && f <= 15 {
		s.valid++
		s.scoreCounts[f]++
	}
}

// Summary computes a snapshot of the accumulated statistics.
func (s *Stats) Summary() Summary {
	out := Summary{
		TotalFrames:     s.total,
		ValidFrames:     s.valid,
		InvalidFrames:   s.total - s.valid,
		Angles:          make(map[string]AngleSummary),
		RiskCounts:      make(map[string]int),
		RiskPercentages: make(map[string]float64),
	}
	if s.total > 0 {
		out.SuccessRate = float64(s.valid) / float64(s.total)
	}
	if d := s.last.Sub(s.first); d > 0 {
		out.DurationSeconds = d.Seconds()
		out.AverageFPS = float64(s.timed-1) / d.Seconds()
	}
	for i, name := range angleNames {
		if s.angles[i].n > 0 {
			out.Angles[name] = s.angles[i].summary()
		}
	}
	for lvl, n := range s.risk {
		out.RiskCounts[lvl.String()] = n
		out.RiskPercentages[lvl.String()] = 100 * float64(n) / float64(s.total)
	}
	out.REBA = s.scoreSummary()
	return out
}

func (s *Stats) scoreSummary() *ScoreSummary {
	if s.valid == 0 {
		return nil
	}
	var x, w []float64
	for score := 1; score <= 15; score++ {
		if s.scoreCounts[score] > 0 {
			x = append(x, float64(score))
			w = append(w, s.scoreCounts[score])
		}
	}
	mean, std := stat.PopMeanStdDev(x, w)
	return &ScoreSummary{
		Mean:   mean,
		Std:    std,
		Min:    int(x[0]),
		Max:    int(x[len(x)-1]),
		Median: stat.Quantile(0.5, stat.Empirical, x, w),
		Q25:    stat.Quantile(0.25, stat.Empirical, x, w),
		Q75:    stat.Quantile(0.75, stat.Empirical, x, w),
	}
}
