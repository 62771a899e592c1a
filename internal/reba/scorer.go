// Package reba implements Rapid Entire Body Assessment scoring: body-part
// scores from joint angles, the A/B/C lookup tables, load, coupling and
// activity adjustments, and the final risk classification.
//
// All functions are pure and safe for concurrent use.
package reba

import (
	"fmt"
	"math"

	"github.com/banshee-data/posture.report/internal/angles"
	"github.com/banshee-data/posture.report/internal/monitoring"
)

// BodyPart names one of the six scored segments.
type BodyPart string

const (
	Trunk    BodyPart = "trunk"
	Neck     BodyPart = "neck"
	Leg      BodyPart = "leg"
	UpperArm BodyPart = "upper_arm"
	Forearm  BodyPart = "forearm"
	Wrist    BodyPart = "wrist"
)

// BodyParts lists the segments in scoring order: group A then group B.
var BodyParts = []BodyPart{Trunk, Neck, Leg, UpperArm, Forearm, Wrist}

// Result is the outcome of one assessment. Every score except the parameter
// derived adjustments may be unscored.
type Result struct {
	Trunk    Value `json:"trunk"`
	Neck     Value `json:"neck"`
	Leg      Value `json:"leg"`
	UpperArm Value `json:"upper_arm"`
	Forearm  Value `json:"forearm"`
	Wrist    Value `json:"wrist"`

	PostureScoreA Value `json:"posture_score_a"`
	LoadScore     int   `json:"load_score"`
	ScoreA        Value `json:"score_a"`

	PostureScoreB Value `json:"posture_score_b"`
	CouplingScore int   `json:"coupling_score"`
	ScoreB        Value `json:"score_b"`

	ScoreC        Value     `json:"score_c"`
	ActivityScore int       `json:"activity_score"`
	FinalScore    Value     `json:"final_score"`
	RiskLevel     RiskLevel `json:"risk_level"`

	// Unscored lists body parts whose angle was unavailable.
	Unscored []BodyPart `json:"unscored,omitempty"`
}

// Complete reports whether every body part was scored.
func (r Result) Complete() bool { return len(r.Unscored) == 0 }

// Part returns the score of a single body part.
func (r Result) Part(bp BodyPart) Value {
	switch bp {
	case Trunk:
		return r.Trunk
	case Neck:
		return r.Neck
	case Leg:
		return r.Leg
	case UpperArm:
		return r.UpperArm
	case Forearm:
		return r.Forearm
	case Wrist:
		return r.Wrist
	}
	return Unscored()
}

// ScoreTrunk scores trunk flexion or extension from vertical. Twisting or
// side flexion adds 1. Range 1..5.
func ScoreTrunk(angle float64, m PostureModifiers) int {
	a := math.Abs(angle)
	var s int
	switch {
	case a <= 5:
		s = 1
	case a < 20:
		s = 2
	case a < 60:
		s = 3
	default:
		s = 4
	}
	if m.TrunkTwisted || m.TrunkSideFlexed {
		s++
	}
	return min(s, 5)
}

// ScoreNeck scores neck flexion: 20 degrees or less is 1, more is 2.
// Range 1..3.
func ScoreNeck(angle float64, m PostureModifiers) int {
	s := 2
	if angle <= 20 {
		s = 1
	}
	if m.NeckTwisted || m.NeckSideBent {
		s++
	}
	return min(s, 3)
}

// ScoreLeg scores the knee. angle is the raw interior knee angle, 180 for a
// straight leg. Range 1..4.
func ScoreLeg(angle float64, m PostureModifiers) int {
	s := 2
	if !m.SingleLegSupport && angle >= 150 {
		s = 1
	}
	switch flexion := 180 - angle; {
	case flexion >= 60:
		s += 2
	case flexion >= 30:
		s++
	}
	return min(s, 4)
}

// ScoreUpperArm scores shoulder flexion. angle is the raw interior elbow
// angle; flexion is taken as its complement. Range 1..6.
func ScoreUpperArm(angle float64, m PostureModifiers) int {
	flexion := 180 - angle
	var s int
	switch {
	case flexion < -20:
		s = 2
	case flexion <= 20:
		s = 1
	case flexion <= 45:
		s = 2
	case flexion <= 90:
		s = 3
	default:
		s = 4
	}
	if m.ArmAbducted {
		s++
	}
	if m.ShoulderRaised {
		s++
	}
	if m.ArmSupported {
		s--
	}
	return clamp(s, 1, 6)
}

// ScoreForearm scores elbow flexion. 60..100 degrees scores 1, anything else
// 2.
func ScoreForearm(angle float64) int {
	if angle >= 60 && angle <= 100 {
		return 1
	}
	return 2
}

// ScoreWrist scores wrist deviation from neutral. Range 1..3.
func ScoreWrist(angle float64, m PostureModifiers) int {
	s := 2
	if math.Abs(angle) <= 15 {
		s = 1
	}
	if m.WristTwisted {
		s++
	}
	return min(s, 3)
}

// LoadScore is the load/force adjustment added to Score A. Range 0..3.
func LoadScore(p AssessmentParameters) int {
	var s int
	switch {
	case p.LoadWeightKg < 5:
		s = 0
	case p.LoadWeightKg < 10:
		s = 1
	default:
		s = 2
	}
	if p.StaticPosture || p.HighRepetition {
		s = max(s, 2)
	}
	if p.ShockLoading {
		s++
	}
	return min(s, 3)
}

// CouplingScore is the hand-hold adjustment added to Score B. Range 0..3.
func CouplingScore(c Coupling) int {
	return clamp(int(c), 0, 3)
}

// ActivityScore counts the activity flags. Range 0..3.
func ActivityScore(p AssessmentParameters) int {
	s := 0
	for _, f := range [...]bool{p.StaticPosture, p.HighRepetition, p.RapidLargeChange} {
		if f {
			s++
		}
	}
	return s
}

// Score runs the full assessment of one frame.
//
// Invalid parameters or mode return *InvalidParameterError. In ModeStrict any
// unavailable angle returns *IncompleteAssessmentError naming every unscored
// part; in ModeBestEffort the Result carries the gaps and every score that
// depends on them is unscored.
func Score(a angles.JointAngles, p AssessmentParameters, mode Mode) (Result, error) {
	if !mode.Valid() {
		return Result{}, &InvalidParameterError{Field: "mode", Reason: fmt.Sprintf("unknown value %d", int(mode))}
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	var r Result
	part := func(bp BodyPart, ang angles.Angle, f func(float64) int) Value {
		d, ok := ang.Value()
		if !ok {
			r.Unscored = append(r.Unscored, bp)
			return Unscored()
		}
		return Scored(f(d))
	}
	m := p.Posture
	r.Trunk = part(Trunk, a.Trunk, func(d float64) int { return ScoreTrunk(d, m) })
	r.Neck = part(Neck, a.Neck, func(d float64) int { return ScoreNeck(d, m) })
	r.Leg = part(Leg, a.Leg, func(d float64) int { return ScoreLeg(d, m) })
	r.UpperArm = part(UpperArm, a.UpperArm, func(d float64) int { return ScoreUpperArm(d, m) })
	r.Forearm = part(Forearm, a.Forearm, ScoreForearm)
	r.Wrist = part(Wrist, a.Wrist, func(d float64) int { return ScoreWrist(d, m) })

	if mode == ModeStrict && len(r.Unscored) > 0 {
		return Result{}, &IncompleteAssessmentError{Parts: r.Unscored}
	}

	r.LoadScore = LoadScore(p)
	r.CouplingScore = CouplingScore(p.Coupling)
	r.ActivityScore = ActivityScore(p)

	trunk, okT := r.Trunk.Get()
	neck, okN := r.Neck.Get()
	leg, okL := r.Leg.Get()
	if okT && okN && okL {
		pa := TableA(trunk, neck, leg)
		r.PostureScoreA = Scored(pa)
		r.ScoreA = Scored(pa + r.LoadScore)
	}

	ua, okU := r.UpperArm.Get()
	fa, okF := r.Forearm.Get()
	wr, okW := r.Wrist.Get()
	if okU && okF && okW {
		pb := TableB(ua, fa, wr)
		r.PostureScoreB = Scored(pb)
		r.ScoreB = Scored(pb + r.CouplingScore)
	}

	sa, okA := r.ScoreA.Get()
	sb, okB := r.ScoreB.Get()
	if okA && okB {
		c := TableC(sa, sb)
		r.ScoreC = Scored(c)
		final := c + r.ActivityScore
		level, err := RiskLevelFor(final)
		if err != nil {
			return Result{}, fmt.Errorf("score A=%d B=%d: %w", sa, sb, err)
		}
		r.FinalScore = Scored(final)
		r.RiskLevel = level
	}

	if monitoring.DebugEnabled() {
		monitoring.Debugf("reba: trunk=%s neck=%s leg=%s upper_arm=%s forearm=%s wrist=%s A=%s(+%d) B=%s(+%d) C=%s activity=%d final=%s risk=%s",
			r.Trunk, r.Neck, r.Leg, r.UpperArm, r.Forearm, r.Wrist,
			r.PostureScoreA, r.LoadScore, r.PostureScoreB, r.CouplingScore,
			r.ScoreC, r.ActivityScore, r.FinalScore, r.RiskLevel)
	}
	return r, nil
}
