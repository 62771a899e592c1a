// Package angles converts pose landmarks into the six joint angles used by
// REBA scoring.
package angles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Angle is a measured joint angle in degrees or an explicit "unavailable"
// marker. The zero value is unavailable.
type Angle struct {
	deg float64
	ok  bool
}

// Degrees returns an available angle. NaN and infinities yield Unavailable.
func Degrees(d float64) Angle {
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return Angle{}
	}
	return Angle{deg: d, ok: true}
}

// Unavailable returns an angle that could not be measured.
func Unavailable() Angle { return Angle{} }

// Value returns the angle in degrees and whether it is available.
func (a Angle) Value() (float64, bool) { return a.deg, a.ok }

// Available reports whether the angle holds a measurement.
func (a Angle) Available() bool { return a.ok }

func (a Angle) String() string {
	if !a.ok {
		return "N/A"
	}
	return strconv.FormatFloat(a.deg, 'f', 1, 64)
}

// MarshalJSON encodes an available angle as a number and an unavailable one
// as null.
func (a Angle) MarshalJSON() ([]byte, error) {
	if !a.ok {
		return []byte("null"), nil
	}
	return json.Marshal(a.deg)
}

func (a *Angle) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*a = Angle{}
		return nil
	}
	var d float64
	if err := json.Unmarshal(b, &d); err != nil {
		return fmt.Errorf("decode angle: %w", err)
	}
	*a = Degrees(d)
	return nil
}

// JointAngles holds the six angles of one frame.
//
// Forearm and Wrist are already expressed as deviation from a straight limb;
// UpperArm and Leg are the raw interior angles at the elbow and knee.
type JointAngles struct {
	Neck     Angle `json:"neck"`
	Trunk    Angle `json:"trunk"`
	UpperArm Angle `json:"upper_arm"`
	Forearm  Angle `json:"forearm"`
	Wrist    Angle `json:"wrist"`
	Leg      Angle `json:"leg"`
}

// Available returns how many of the six angles were measured.
func (j JointAngles) Available() int {
	n := 0
	for _, a := range [...]Angle{j.Neck, j.Trunk, j.UpperArm, j.Forearm, j.Wrist, j.Leg} {
		if a.ok {
			n++
		}
	}
	return n
}
