package reba

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/posture.report/internal/pose"
)

// Coupling rates the quality of the hand hold on the load.
type Coupling int

const (
	CouplingGood Coupling = iota
	CouplingFair
	CouplingPoor
	CouplingUnacceptable
)

var couplingNames = [...]string{"good", "fair", "poor", "unacceptable"}

func (c Coupling) String() string {
	if !c.Valid() {
		return fmt.Sprintf("coupling(%d)", int(c))
	}
	return couplingNames[c]
}

// Valid reports whether c is one of the four defined ratings.
func (c Coupling) Valid() bool {
	return c >= CouplingGood && c <= CouplingUnacceptable
}

// ParseCoupling parses good, fair, poor or unacceptable.
func ParseCoupling(s string) (Coupling, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for i, name := range couplingNames {
		if name == norm {
			return Coupling(i), nil
		}
	}
	return 0, &InvalidParameterError{Field: "coupling", Reason: fmt.Sprintf("unknown value %q", s)}
}

func (c Coupling) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, &InvalidParameterError{Field: "coupling", Reason: fmt.Sprintf("unknown value %d", int(c))}
	}
	return []byte(c.String()), nil
}

func (c *Coupling) UnmarshalText(b []byte) error {
	v, err := ParseCoupling(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Mode selects how missing body-part measurements are handled. There is no
// default: the zero Mode is invalid.
type Mode int

const (
	// ModeStrict fails the whole assessment if any body part is unscored.
	ModeStrict Mode = iota + 1
	// ModeBestEffort scores what it can and marks dependent scores unscored.
	ModeBestEffort
)

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeBestEffort:
		return "best_effort"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is ModeStrict or ModeBestEffort.
func (m Mode) Valid() bool {
	return m == ModeStrict || m == ModeBestEffort
}

// ParseMode parses strict or best_effort (best-effort is also accepted).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return ModeStrict, nil
	case "best_effort", "best-effort", "besteffort":
		return ModeBestEffort, nil
	default:
		return 0, &InvalidParameterError{Field: "mode", Reason: fmt.Sprintf("unknown value %q", s)}
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, &InvalidParameterError{Field: "mode", Reason: fmt.Sprintf("unknown value %d", int(m))}
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// PostureModifiers are adjustments that cannot be derived from 2D landmark
// angles. The zero value means none apply and both feet bear weight.
type PostureModifiers struct {
	TrunkTwisted     bool `json:"trunk_twisted"`
	TrunkSideFlexed  bool `json:"trunk_side_flexed"`
	NeckTwisted      bool `json:"neck_twisted"`
	NeckSideBent     bool `json:"neck_side_bent"`
	SingleLegSupport bool `json:"single_leg_support"`
	ArmAbducted      bool `json:"arm_abducted"`
	ShoulderRaised   bool `json:"shoulder_raised"`
	ArmSupported     bool `json:"arm_supported"`
	WristTwisted     bool `json:"wrist_twisted"`
}

// AssessmentParameters are the non-geometric inputs to a REBA assessment.
// The zero value is a valid assessment of an unloaded good-grip task on the
// right side with no activity flags.
type AssessmentParameters struct {
	LoadWeightKg     float64          `json:"load_weight_kg"`
	Coupling         Coupling         `json:"coupling"`
	Side             pose.Side        `json:"side"`
	StaticPosture    bool             `json:"static_posture"`
	HighRepetition   bool             `json:"high_repetition"`
	RapidLargeChange bool             `json:"rapid_large_change"`
	ShockLoading     bool             `json:"shock_loading"`
	Posture          PostureModifiers `json:"posture"`
}

// ParseSide parses left or right.
func ParseSide(s string) (pose.Side, error) {
	side, err := pose.ParseSide(s)
	if err != nil {
		return 0, &InvalidParameterError{Field: "side", Reason: fmt.Sprintf("unknown value %q", s)}
	}
	return side, nil
}

// UnmarshalJSON decodes the parameters strictly, reporting a bad side like
// a bad coupling.
func (p *AssessmentParameters) UnmarshalJSON(b []byte) error {
	type plain AssessmentParameters
	aux := struct {
		*plain
		Side *string `json:"side"`
	}{plain: (*plain)(p)}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	if aux.Side != nil {
		side, err := ParseSide(*aux.Side)
		if err != nil {
			return err
		}
		p.Side = side
	}
	return nil
}

// Validate rejects parameters that cannot be scored.
func (p AssessmentParameters) Validate() error {
	if math.IsNaN(p.LoadWeightKg) || math.IsInf(p.LoadWeightKg, 0) {
		return &InvalidParameterError{Field: "load_weight_kg", Reason: "must be a finite number"}
	}
	if p.LoadWeightKg < 0 {
		return &InvalidParameterError{Field: "load_weight_kg", Reason: fmt.Sprintf("must be >= 0, got %g", p.LoadWeightKg)}
	}
	if !p.Coupling.Valid() {
		return &InvalidParameterError{Field: "coupling", Reason: fmt.Sprintf("unknown value %d", int(p.Coupling))}
	}
	if !p.Side.Valid() {
		return &InvalidParameterError{Field: "side", Reason: fmt.Sprintf("unknown value %d", int(p.Side))}
	}
	return nil
}
