package charts

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
)

// AssetsHost is where rendered pages load the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// TimelineHTML renders an interactive line chart of final score per frame.
// Unscored frames are gaps.
func TimelineHTML(w io.Writer, title string, records []session.Record) error {
	x := make([]string, len(records))
	y := make([]opts.LineData, len(records))
	for i, rec := range records {
		x[i] = strconv.Itoa(rec.FrameID)
		if f, ok := rec.Result.FinalScore.Get(); ok {
			y[i] = opts.LineData{Value: f, Name: rec.Result.RiskLevel.String()}
		} else {
			y[i] = opts.LineData{Value: "-", Name: reba.RiskInsufficientData.String()}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "REBA Timeline", Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("frames=%d", len(records))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "REBA score", Min: 0, Max: 15}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.SetXAxis(x).AddSeries("final score", y)
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render timeline: %w", err)
	}
	return nil
}

// RiskDistributionHTML renders a bar chart of frame counts per risk level,
// coloured by level.
func RiskDistributionHTML(w io.Writer, title string, counts map[reba.RiskLevel]int) error {
	levels := append(append([]reba.RiskLevel{}, reba.RiskLevels...), reba.RiskInsufficientData)
	x := make([]string, 0, len(levels))
	y := make([]opts.BarData, 0, len(levels))
	for _, lvl := range levels {
		x = append(x, lvl.String())
		y = append(y, opts.BarData{
			Value:     counts[lvl],
			ItemStyle: &opts.ItemStyle{Color: lvl.Color()},
		})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "REBA Risk Distribution", Width: "100%", Height: "480px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("frames", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render risk distribution: %w", err)
	}
	return nil
}

// RiskCounts tallies records per risk level.
func RiskCounts(records []session.Record) map[reba.RiskLevel]int {
	out := make(map[reba.RiskLevel]int)
	for _, rec := range records {
		out[rec.Result.RiskLevel]++
	}
	return out
}
