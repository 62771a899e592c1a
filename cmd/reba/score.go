package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/reba"
)

// parseAngle reads an angle flag; an empty value is unavailable.
func parseAngle(name, v string) (angles.Angle, error) {
	if v == "" {
		return angles.Unavailable(), nil
	}
	d, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return angles.Angle{}, fmt.Errorf("--%s: %q is not a number", name, v)
	}
	return angles.Degrees(d), nil
}

func runScore(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	common := addCommonFlags(fs)
	raw := map[string]*string{}
	for _, name := range []string{"neck", "trunk", "upper-arm", "forearm", "wrist", "leg"} {
		raw[name] = fs.String(name, "", fmt.Sprintf("%s angle in degrees (omit if unavailable)", name))
	}
	asJSON := fs.Bool("json", false, "Print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := common.config()
	if err != nil {
		return err
	}
	settings, err := settingsFromConfig(cfg)
	if err != nil {
		return err
	}

	var a angles.JointAngles
	for name, dst := range map[string]*angles.Angle{
		"neck": &a.Neck, "trunk": &a.Trunk, "upper-arm": &a.UpperArm,
		"forearm": &a.Forearm, "wrist": &a.Wrist, "leg": &a.Leg,
	} {
		if *dst, err = parseAngle(name, *raw[name]); err != nil {
			return err
		}
	}

	res, err := reba.Score(a, settings.Params, settings.Mode)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return writeBreakdown(out, a, res)
}

func writeBreakdown(out io.Writer, a angles.JointAngles, res reba.Result) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PART\tANGLE\tSCORE")
	rows := []struct {
		part  reba.BodyPart
		angle angles.Angle
		score reba.Value
	}{
		{reba.Trunk, a.Trunk, res.Trunk},
		{reba.Neck, a.Neck, res.Neck},
		{reba.Leg, a.Leg, res.Leg},
		{reba.UpperArm, a.UpperArm, res.UpperArm},
		{reba.Forearm, a.Forearm, res.Forearm},
		{reba.Wrist, a.Wrist, res.Wrist},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.part, r.angle, r.score)
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Score A\t%s\t(posture %s + load %d)\n", res.ScoreA, res.PostureScoreA, res.LoadScore)
	fmt.Fprintf(tw, "Score B\t%s\t(posture %s + coupling %d)\n", res.ScoreB, res.PostureScoreB, res.CouplingScore)
	fmt.Fprintf(tw, "Score C\t%s\t\n", res.ScoreC)
	fmt.Fprintf(tw, "REBA\t%s\t(activity %d)\n", res.FinalScore, res.ActivityScore)
	fmt.Fprintf(tw, "Risk\t%s\t%s\n", res.RiskLevel, res.RiskLevel.Action())
	return tw.Flush()
}

func runTables(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tables", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	m := reba.TableCMatrix()
	tw := tabwriter.NewWriter(out, 0, 4, 1, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "A\\B\t")
	for b := 1; b <= len(m[0]); b++ {
		fmt.Fprintf(tw, "%d\t", b)
	}
	fmt.Fprintln(tw)
	for i, row := range m {
		fmt.Fprintf(tw, "%d\t", i+1)
		for _, v := range row {
			fmt.Fprintf(tw, "%d\t", v)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
