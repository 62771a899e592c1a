package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/banshee-data/posture.report/internal/charts"
	"github.com/banshee-data/posture.report/internal/pipeline"
	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/posestream"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/store"
	"github.com/banshee-data/posture.report/internal/timeutil"
)

// readFrames decodes a JSON-lines landmark stream. Blank lines are skipped;
// malformed lines are counted and skipped.
func readFrames(r io.Reader) (frames []pose.Frame, malformed int, err error) {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scan.Scan() {
		line++
		b := bytes.TrimSpace(scan.Bytes())
		if len(b) == 0 {
			continue
		}
		f, err := posestream.DecodeFrame(b)
		if err != nil {
			malformed++
			log.Printf("line %d: %v", line, err)
			continue
		}
		frames = append(frames, f)
	}
	return frames, malformed, scan.Err()
}

// stampFrames gives frames without a timestamp the time of their position
// in the input at the clock's frame rate.
func stampFrames(frames []pose.Frame, clk *timeutil.FrameClock) int {
	n := 0
	for i := range frames {
		if frames[i].Timestamp.IsZero() {
			frames[i].Timestamp = clk.At(i)
			n++
		}
	}
	return n
}

// everyNth keeps frames 0, n, 2n, ...
func everyNth(frames []pose.Frame, n int) []pose.Frame {
	if n <= 1 {
		return frames
	}
	out := make([]pose.Frame, 0, (len(frames)+n-1)/n)
	for i := 0; i < len(frames); i += n {
		out = append(out, frames[i])
	}
	return out
}

func runAnalyze(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	common := addCommonFlags(fs)
	input := fs.String("input", "-", "JSON-lines landmark file, or - for stdin")
	name := fs.String("name", "", "Session name used in reports and file names")
	outputDir := fs.String("output-dir", "", "Directory for reports (overrides config)")
	dbPath := fs.String("db", "", "SQLite database to store the session in (overrides config)")
	workers := fs.Int("workers", 0, "Parallel scoring workers (overrides config)")
	everyN := fs.Int("every", 0, "Process one frame in every N (overrides config)")
	noPNG := fs.Bool("no-png", false, "Skip the PNG timeline")
	fps := fs.Float64("fps", 0, "Frame rate used to timestamp frames that carry no timestamp (0 leaves them unset)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.config()
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "output-dir":
			cfg.OutputDir = outputDir
		case "db":
			cfg.DatabasePath = dbPath
		case "workers":
			cfg.Workers = workers
		case "every":
			cfg.ProcessEveryNFrames = everyN
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	settings, err := settingsFromConfig(cfg)
	if err != nil {
		return err
	}

	var src io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	frames, malformed, err := readFrames(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", *input, err)
	}
	if len(frames) == 0 {
		return errors.New("no frames decoded from input")
	}
	if *fps != 0 {
		clk, err := timeutil.NewFrameClock(timeutil.RealClock{}.Now(), *fps)
		if err != nil {
			return err
		}
		if n := stampFrames(frames, clk); n > 0 {
			log.Printf("stamped %d frames at %v intervals", n, clk.Interval())
		}
	}
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Timestamp.Before(frames[j].Timestamp) })
	frames = everyNth(frames, cfg.GetProcessEveryNFrames())

	analyzer, err := pipeline.NewAnalyzer(pipeline.Options{MinVisibility: cfg.GetMinVisibility(), Settings: settings})
	if err != nil {
		return err
	}
	ctx := context.Background()
	records, err := analyzer.ScoreBatch(ctx, frames, cfg.GetWorkers())
	if err != nil {
		return err
	}

	rec, err := session.NewRecorder(session.Options{
		OutputDir:         cfg.GetOutputDir(),
		Name:              *name,
		BufferSize:        max(len(records), cfg.GetRecentBufferSize()),
		HighRiskThreshold: cfg.GetHighRiskThreshold(),
	})
	if err != nil {
		return err
	}
	defer rec.Close()
	for _, r := range records {
		if err := rec.Write(r); err != nil {
			return err
		}
	}

	paths, err := rec.SaveAll("")
	if err != nil {
		return err
	}
	if !*noPNG {
		png := strings.TrimSuffix(paths["json"], ".json") + "_timeline.png"
		if err := charts.TimelinePNG(records, png); err != nil {
			return err
		}
		paths["png"] = png
	}

	if path := cfg.GetDatabasePath(); path != "" {
		if err := storeSession(ctx, path, rec, settings, records); err != nil {
			return err
		}
		paths["db"] = path
	}

	sum := rec.Summary()
	fmt.Fprintf(out, "Session %s: %d frames (%d scored, %d malformed lines skipped)\n",
		rec.ID(), sum.TotalFrames, sum.ValidFrames, malformed)
	if sum.REBA != nil {
		fmt.Fprintf(out, "REBA mean %.2f, median %.1f, max %d; %.1f%% of scored frames high risk\n",
			sum.REBA.Mean, sum.REBA.Median, sum.REBA.Max, sum.HighRiskShare()*100)
	}
	kinds := make([]string, 0, len(paths))
	for k := range paths {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-8s %s\n", k, paths[k])
	}
	return nil
}

func storeSession(ctx context.Context, path string, rec *session.Recorder, settings pipeline.Settings, records []session.Record) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	sess, err := st.CreateSession(ctx, store.Session{
		ID:        rec.ID(),
		Name:      rec.Name(),
		Mode:      settings.Mode,
		Params:    settings.Params,
		StartedAt: rec.StartedAt(),
	})
	if err != nil {
		return err
	}
	if err := st.InsertFrames(ctx, sess.ID, records); err != nil {
		return err
	}
	end := rec.StartedAt()
	if n := len(records); n > 0 && !records[n-1].Timestamp.IsZero() {
		end = records[n-1].Timestamp
	}
	return st.FinishSession(ctx, sess.ID, end)
}
