// Package pose defines the body landmark model produced by an external pose
// detector: named 3D joint positions with a per-point visibility score,
// following the 33-point MediaPipe Pose layout.
package pose

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Role identifies a landmark by its semantic body position. The numeric value
// matches the MediaPipe Pose landmark index.
type Role int

const (
	Nose Role = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// NumRoles is the number of landmarks in the layout.
	NumRoles = 33
)

var roleNames = [NumRoles]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// String returns the canonical snake_case name of the role.
func (r Role) String() string {
	if r < 0 || int(r) >= NumRoles {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// Valid reports whether r is one of the 33 defined roles.
func (r Role) Valid() bool {
	return r >= 0 && int(r) < NumRoles
}

// ParseRole accepts "left_shoulder", "left shoulder", "LEFT_SHOULDER" and
// "left-shoulder" spellings.
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for i, name := range roleNames {
		if name == norm {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown landmark role %q", s)
}

// MarshalText implements encoding.TextMarshaler so Role can key JSON maps.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid landmark role %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	role, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// Landmark is one detected joint position. Coordinates are normalised image
// coordinates (y grows downwards); Visibility is the detector's confidence in
// [0,1].
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Vec returns the landmark position as a 3D vector.
func (l Landmark) Vec() r3.Vec {
	return r3.Vec{X: l.X, Y: l.Y, Z: l.Z}
}

// Finite reports whether every coordinate is a finite number.
func (l Landmark) Finite() bool {
	for _, v := range [...]float64{l.X, l.Y, l.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Set holds the landmarks of one frame keyed by role. Missing roles were not
// reported by the detector.
type Set map[Role]Landmark

// Get returns the landmark for role and whether it is present.
func (s Set) Get(role Role) (Landmark, bool) {
	l, ok := s[role]
	return l, ok
}

// Visible returns the landmark for role if it is present, finite and at or
// above the visibility threshold.
func (s Set) Visible(role Role, minVisibility float64) (Landmark, bool) {
	l, ok := s[role]
	if !ok || !l.Finite() || math.IsNaN(l.Visibility) || l.Visibility < minVisibility {
		return Landmark{}, false
	}
	return l, true
}

// UnmarshalJSON decodes either a map of role names to landmarks or an array
// of up to 33 landmarks in MediaPipe index order. Null array entries are
// skipped.
func (s *Set) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	out := make(Set)
	switch {
	case trimmed == "null":
		*s = nil
		return nil
	case strings.HasPrefix(trimmed, "["):
		var list []*Landmark
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("decode landmark array: %w", err)
		}
		if len(list) > NumRoles {
			return fmt.Errorf("landmark array has %d entries, max %d", len(list), NumRoles)
		}
		for i, l := range list {
			if l != nil {
				out[Role(i)] = *l
			}
		}
	default:
		var named map[string]Landmark
		if err := json.Unmarshal(data, &named); err != nil {
			return fmt.Errorf("decode landmark map: %w", err)
		}
		for name, l := range named {
			role, err := ParseRole(name)
			if err != nil {
				return err
			}
			out[role] = l
		}
	}
	*s = out
	return nil
}

// Frame is one detector output: a frame counter, capture time and landmarks.
type Frame struct {
	FrameID   int       `json:"frame_id"`
	Timestamp time.Time `json:"timestamp"`
	Landmarks Set       `json:"landmarks"`
}
