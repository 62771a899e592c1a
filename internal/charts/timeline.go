// Package charts renders session score timelines and risk distributions as
// PNG images (gonum/plot) and interactive HTML pages (go-echarts).
package charts

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
)

// Default PNG dimensions.
var (
	TimelineWidth  = 12 * vg.Inch
	TimelineHeight = 4 * vg.Inch
)

// bandEdges are the lowest final scores of the low, medium, high and very
// high risk bands.
var bandEdges = []struct {
	score float64
	level reba.RiskLevel
}{
	{2, reba.RiskLow},
	{4, reba.RiskMedium},
	{8, reba.RiskHigh},
	{11, reba.RiskVeryHigh},
}

func hexColor(hex string) color.Color {
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.Gray{Y: 128}
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// scoredRuns splits records into runs of consecutive scored frames so that
// unscored frames show as gaps rather than zeros.
func scoredRuns(records []session.Record) []plotter.XYs {
	var runs []plotter.XYs
	var cur plotter.XYs
	for _, rec := range records {
		f, ok := rec.Result.FinalScore.Get()
		if !ok {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: float64(rec.FrameID), Y: float64(f)})
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}

// frameRange returns the frame ID span of records, widened to at least one
// frame so the band lines stay finite for empty and single-frame sessions.
func frameRange(records []session.Record) (lo, hi float64) {
	if len(records) == 0 {
		return 0, 1
	}
	lo, hi = float64(records[0].FrameID), float64(records[0].FrameID)
	for _, rec := range records[1:] {
		lo = min(lo, float64(rec.FrameID))
		hi = max(hi, float64(rec.FrameID))
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}

// TimelinePlot builds a plot of final score against frame ID with the risk
// band thresholds drawn as horizontal lines.
func TimelinePlot(title string, records []session.Record) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "REBA score"
	p.Y.Min, p.Y.Max = 0, 15

	runs := scoredRuns(records)
	p.X.Min, p.X.Max = frameRange(records)
	for _, edge := range bandEdges {
		line, err := plotter.NewLine(plotter.XYs{{X: p.X.Min, Y: edge.score}, {X: p.X.Max, Y: edge.score}})
		if err != nil {
			return nil, fmt.Errorf("band %s: %w", edge.level, err)
		}
		line.Color = hexColor(edge.level.Color())
		line.Width = vg.Points(0.5)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
	}
	for i, run := range runs {
		line, err := plotter.NewLine(run)
		if err != nil {
			return nil, fmt.Errorf("score run %d: %w", i, err)
		}
		line.Width = vg.Points(1)
		line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(line)
		if i == 0 {
			p.Legend.Add("final score", line)
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Add(plotter.NewGrid())
	return p, nil
}

// TimelinePNG renders the timeline to a PNG file.
func TimelinePNG(records []session.Record, path string) error {
	p, err := TimelinePlot("REBA score per frame", records)
	if err != nil {
		return err
	}
	if err := p.Save(TimelineWidth, TimelineHeight, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WriteTimelinePNG renders the timeline as PNG to w.
func WriteTimelinePNG(w io.Writer, records []session.Record) error {
	p, err := TimelinePlot("REBA score per frame", records)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(TimelineWidth, TimelineHeight, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
