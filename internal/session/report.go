package session

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/version"
)

// Info identifies a session in exports.
type Info struct {
	SessionID  string       `json:"session_id"`
	Name       string       `json:"name,omitempty"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
	BufferSize int          `json:"recent_buffer_size"`
	Build      version.Info `json:"build"`
}

// Export is the JSON document written by SaveJSON.
type Export struct {
	SessionInfo  Info     `json:"session_info"`
	Statistics   Summary  `json:"statistics"`
	RecentFrames []Record `json:"recent_frames,omitempty"`
}

// Info returns the session metadata as of now.
func (r *Recorder) Info() Info {
	return Info{
		SessionID:  r.id,
		Name:       r.name,
		StartTime:  r.started,
		EndTime:    r.clock.Now(),
		BufferSize: r.Len(),
		Build:      version.Current(),
	}
}

// Export builds the JSON export document. Frames are omitted when
// includeFrames is false.
func (r *Recorder) Export(includeFrames bool) Export {
	e := Export{SessionInfo: r.Info(), Statistics: r.Summary()}
	if includeFrames {
		e.RecentFrames = r.Recent()
	}
	return e
}

// SaveJSON writes session info, statistics and the recent frames.
func (r *Recorder) SaveJSON(base string) (string, error) {
	return r.saveJSON(base, true)
}

// SaveSummaryJSON writes session info and statistics without frames.
func (r *Recorder) SaveSummaryJSON(base string) (string, error) {
	if base == "" {
		base = "reba_summary_" + r.started.Format("20060102_150405")
	}
	return r.saveJSON(base, false)
}

func (r *Recorder) saveJSON(base string, frames bool) (string, error) {
	path, err := r.outputPath(base, ".json")
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(r.Export(frames), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal session export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// SaveMarkdown writes a human-readable session report.
func (r *Recorder) SaveMarkdown(base string) (string, error) {
	path, err := r.outputPath(base, ".md")
	if err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteMarkdown(f, r.Info(), r.Summary(), r.HighRiskFrames(0), r.threshold); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// SaveAll writes JSON and Markdown exports and, when frames are buffered and
// no CSV log is open, a CSV of the buffer. It returns the written paths by
// format.
func (r *Recorder) SaveAll(base string) (map[string]string, error) {
	if base == "" {
		base = r.defaultBase()
	}
	out := make(map[string]string)
	p, err := r.SaveJSON(base)
	if err != nil {
		return out, err
	}
	out["json"] = p
	if p, err = r.SaveMarkdown(base); err != nil {
		return out, err
	}
	out["markdown"] = p
	if !r.Recording() && r.Len() > 0 {
		if p, err = r.SaveCSV(base); err != nil {
			return out, err
		}
		out["csv"] = p
	}
	return out, nil
}

// maxReportedFrames caps the high-risk frame table in the Markdown report.
const maxReportedFrames = 20

// WriteMarkdown renders a session report.
func WriteMarkdown(w io.Writer, info Info, s Summary, highRisk []Record, threshold int) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# REBA Session Report\n\n")
	fmt.Fprintf(&b, "- **Session**: %s\n", info.SessionID)
	if info.Name != "" {
		fmt.Fprintf(&b, "- **Name**: %s\n", info.Name)
	}
	fmt.Fprintf(&b, "- **Started**: %s\n", info.StartTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Generated**: %s\n", info.EndTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Build**: %s\n\n", info.Build.Version)

	b.WriteString("## Frames\n\n")
	fmt.Fprintf(&b, "- **Total frames**: %d\n", s.TotalFrames)
	fmt.Fprintf(&b, "- **Scored frames**: %d\n", s.ValidFrames)
	fmt.Fprintf(&b, "- **Insufficient data**: %d\n", s.InvalidFrames)
	fmt.Fprintf(&b, "- **Success rate**: %.1f%%\n", s.SuccessRate*100)
	fmt.Fprintf(&b, "- **Duration**: %.2fs\n", s.DurationSeconds)
	fmt.Fprintf(&b, "- **Average FPS**: %.2f\n\n", s.AverageFPS)

	b.WriteString("## REBA Score\n\n")
	if s.REBA == nil {
		b.WriteString("No frame produced a score: insufficient data.\n\n")
	} else {
		b.WriteString("| Mean | Std | Min | Q25 | Median | Q75 | Max |\n|---|---|---|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %.2f | %.2f | %d | %.0f | %.0f | %.0f | %d |\n\n",
			s.REBA.Mean, s.REBA.Std, s.REBA.Min, s.REBA.Q25, s.REBA.Median, s.REBA.Q75, s.REBA.Max)
	}

	b.WriteString("## Risk Distribution\n\n| Level | Action | Frames | Share |\n|---|---|---|---|\n")
	for _, lvl := range append(append([]reba.RiskLevel{}, reba.RiskLevels...), reba.RiskInsufficientData) {
		n := s.RiskCounts[lvl.String()]
		if n == 0 && lvl == reba.RiskInsufficientData {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %.1f%% |\n", lvl, lvl.Action(), n, s.RiskPercentages[lvl.String()])
	}
	b.WriteString("\n")

	if len(s.Angles) > 0 {
		b.WriteString("## Joint Angles (degrees)\n\n| Joint | Frames | Mean | Std | Min | Max |\n|---|---|---|---|---|---|\n")
		names := make([]string, 0, len(s.Angles))
		for name := range s.Angles {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			a := s.Angles[name]
			fmt.Fprintf(&b, "| %s | %d | %.1f | %.1f | %.1f | %.1f |\n", name, a.Count, a.Mean, a.Std, a.Min, a.Max)
		}
		b.WriteString("\n")
	}

	if len(highRisk) > 0 {
		fmt.Fprintf(&b, "## Frames Scoring %d or Higher\n\n| Frame | Time | Score | Risk |\n|---|---|---|---|\n", threshold)
		for i, rec := range highRisk {
			if i == maxReportedFrames {
				fmt.Fprintf(&b, "\n%d more not shown.\n", len(highRisk)-maxReportedFrames)
				break
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", rec.FrameID, rec.Timestamp.Format("15:04:05.000"),
				rec.Result.FinalScore, rec.Result.RiskLevel)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommendations\n\n")
	share := s.HighRiskShare() * 100
	switch {
	case s.ValidFrames == 0:
		b.WriteString("Re-record with the whole body visible to the camera.\n")
	case share > 30:
		fmt.Fprintf(&b, "**Warning**: %.1f%% of frames are high risk.\n\n", share)
		b.WriteString("1. Review the task and workstation immediately\n2. Provide ergonomics training\n3. Consider lifting aids\n4. Schedule regular breaks\n")
	case share > 10:
		fmt.Fprintf(&b, "**Caution**: %.1f%% of frames are high risk.\n\n", share)
		b.WriteString("1. Identify and improve the high-risk movements\n2. Raise ergonomics awareness\n3. Reassess posture regularly\n")
	default:
		b.WriteString("Most postures are within acceptable limits.\n\n1. Keep the current working posture\n2. Self-check periodically\n3. Avoid accumulated fatigue\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
