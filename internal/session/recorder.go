package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/security"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// DefaultBufferSize is the number of recent frames kept in memory.
const DefaultBufferSize = 10000

// DefaultHighRiskThreshold is the final score at or above which a frame is
// counted as high risk.
const DefaultHighRiskThreshold = 8

// ErrNotRecording is returned by StopRecording when no CSV log is open.
var ErrNotRecording = errors.New("session is not recording")

// Options configures a Recorder.
type Options struct {
	OutputDir         string
	Name              string // optional label, used in file names and reports
	BufferSize        int
	HighRiskThreshold int
	Clock             timeutil.Clock
}

// Recorder collects assessed frames for one session. It is safe for
// concurrent use.
type Recorder struct {
	mu        sync.Mutex
	id        string
	name      string
	dir       string
	clock     timeutil.Clock
	started   time.Time
	threshold int

	ring  []Record
	next  int
	full  bool
	stats *Stats

	csv     *csvWriter
	csvPath string
}

// NewRecorder creates the output directory if needed and starts a session.
func NewRecorder(opts Options) (*Recorder, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.HighRiskThreshold <= 0 {
		opts.HighRiskThreshold = DefaultHighRiskThreshold
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Recorder{
		id:        uuid.New().String(),
		name:      opts.Name,
		dir:       opts.OutputDir,
		clock:     opts.Clock,
		started:   opts.Clock.Now(),
		threshold: opts.HighRiskThreshold,
		ring:      make([]Record, opts.BufferSize),
		stats:     NewStats(),
	}, nil
}

// ID returns the session identifier.
func (r *Recorder) ID() string { return r.id }

// Name returns the session label.
func (r *Recorder) Name() string { return r.name }

// StartedAt returns the session start time.
func (r *Recorder) StartedAt() time.Time { return r.started }

// HighRiskThreshold returns the configured high-risk score threshold.
func (r *Recorder) HighRiskThreshold() int { return r.threshold }

// Write adds one assessed frame. If a CSV log is open the row is appended.
func (r *Recorder) Write(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = rec
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
	r.stats.Add(rec)
	if r.csv != nil {
		if err := r.csv.writeRow(rec.CSVRow()); err != nil {
			return err
		}
	}
	return nil
}

// recentLocked returns buffered records oldest first.
func (r *Recorder) recentLocked() []Record {
	if !r.full {
		out := make([]Record, r.next)
		copy(out, r.ring[:r.next])
		return out
	}
	out := make([]Record, 0, len(r.ring))
	out = append(out, r.ring[r.next:]...)
	return append(out, r.ring[:r.next]...)
}

// Recent returns the buffered records, oldest first.
func (r *Recorder) Recent() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recentLocked()
}

// Len returns the number of buffered records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.ring)
	}
	return r.next
}

// Summary returns the statistics of every frame written so far, including
// frames that have left the recent buffer.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.Summary()
}

func (r *Recorder) filter(keep func(Record) bool) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.recentLocked() {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// HighRiskFrames returns buffered frames with a final score at or above
// threshold. A threshold <= 0 uses the recorder's configured value.
func (r *Recorder) HighRiskFrames(threshold int) []Record {
	if threshold <= 0 {
		threshold = r.threshold
	}
	return r.filter(func(rec Record) bool {
		f, ok := rec.Result.FinalScore.Get()
		return ok && f >= threshold
	})
}

// FilterByRisk returns buffered frames with the given risk level.
func (r *Recorder) FilterByRisk(level reba.RiskLevel) []Record {
	return r.filter(func(rec Record) bool { return rec.Result.RiskLevel == level })
}

// FramesInRange returns buffered frames with start <= timestamp <= end.
func (r *Recorder) FramesInRange(start, end time.Time) []Record {
	return r.filter(func(rec Record) bool {
		return !rec.Timestamp.Before(start) && !rec.Timestamp.After(end)
	})
}

// Frame returns the most recent buffered record with the given frame ID.
func (r *Recorder) Frame(id int) (Record, bool) {
	matches := r.filter(func(rec Record) bool { return rec.FrameID == id })
	if len(matches) == 0 {
		return Record{}, false
	}
	return matches[len(matches)-1], true
}

// Reset clears the buffer and statistics. An open CSV log is unaffected.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.ring {
		r.ring[i] = Record{}
	}
	r.next, r.full = 0, false
	r.stats = NewStats()
}

// outputPath joins a sanitized base name and extension under the output
// directory.
func (r *Recorder) outputPath(base, ext string) (string, error) {
	if base == "" {
		base = r.defaultBase()
	}
	base = strings.TrimSuffix(base, ext)
	p := filepath.Join(r.dir, security.SanitizeFilename(base)+ext)
	if err := security.ValidatePathWithinDirectory(p, r.dir); err != nil {
		return "", err
	}
	return p, nil
}

func (r *Recorder) defaultBase() string {
	base := "reba_session_" + r.started.Format("20060102_150405")
	if r.name != "" {
		base = r.name + "_" + r.started.Format("20060102_150405")
	}
	return base
}

// StartRecording opens a CSV frame log and returns its path. Every frame
// written afterwards is streamed to it.
func (r *Recorder) StartRecording(base string) (string, error) {
	path, err := r.outputPath(base, ".csv")
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.csv != nil {
		return "", fmt.Errorf("already recording to %s", r.csvPath)
	}
	w, err := newCSVWriter(path, CSVHeader())
	if err != nil {
		return "", err
	}
	r.csv, r.csvPath = w, path
	monitoring.Logf("session %s: recording frames to %s", r.id, path)
	return path, nil
}

// Recording reports whether a CSV log is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.csv != nil
}

// Flush pushes buffered CSV rows to disk. It is a no-op when not recording.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	w := r.csv
	r.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.flush()
}

// StopRecording flushes and closes the CSV log.
func (r *Recorder) StopRecording() error {
	r.mu.Lock()
	w, path := r.csv, r.csvPath
	r.csv, r.csvPath = nil, ""
	r.mu.Unlock()
	if w == nil {
		return ErrNotRecording
	}
	rows := w.count()
	if err := w.close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	monitoring.Logf("session %s: wrote %d frames to %s", r.id, rows, path)
	return nil
}

// SaveCSV writes the buffered frames to a standalone CSV file.
func (r *Recorder) SaveCSV(base string) (string, error) {
	path, err := r.outputPath(base, ".csv")
	if err != nil {
		return "", err
	}
	w, err := newCSVWriter(path, CSVHeader())
	if err != nil {
		return "", err
	}
	for _, rec := range r.Recent() {
		if err := w.writeRow(rec.CSVRow()); err != nil {
			w.close()
			return "", err
		}
	}
	if err := w.close(); err != nil {
		return "", err
	}
	return path, nil
}

// Close stops recording if a log is open.
func (r *Recorder) Close() error {
	if err := r.StopRecording(); err != nil && !errors.Is(err, ErrNotRecording) {
		return err
	}
	return nil
}
