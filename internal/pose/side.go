package pose

import (
	"fmt"
	"strings"
)

// Side selects which limb chain is analysed for the arm, wrist and leg angles.
type Side int

const (
	SideRight Side = iota
	SideLeft
)

func (s Side) String() string {
	switch s {
	case SideRight:
		return "right"
	case SideLeft:
		return "left"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Valid reports whether s is left or right.
func (s Side) Valid() bool {
	return s == SideRight || s == SideLeft
}

// ParseSide parses "left" or "right" (case-insensitive).
func ParseSide(v string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "right":
		return SideRight, nil
	case "left":
		return SideLeft, nil
	default:
		return 0, fmt.Errorf("unknown side %q: expected left or right", v)
	}
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid side %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Limb holds the roles of one side's arm and leg chain.
type Limb struct {
	Shoulder, Elbow, Wrist, Index Role
	Hip, Knee, Ankle              Role
}

// LimbFor returns the landmark roles for the given side.
func LimbFor(s Side) Limb {
	if s == SideLeft {
		return Limb{
			Shoulder: LeftShoulder, Elbow: LeftElbow, Wrist: LeftWrist, Index: LeftIndex,
			Hip: LeftHip, Knee: LeftKnee, Ankle: LeftAnkle,
		}
	}
	return Limb{
		Shoulder: RightShoulder, Elbow: RightElbow, Wrist: RightWrist, Index: RightIndex,
		Hip: RightHip, Knee: RightKnee, Ankle: RightAnkle,
	}
}
