package angles

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/posture.report/internal/pose"
)

// DefaultMinVisibility is the visibility threshold used when an Extractor is
// constructed without one.
const DefaultMinVisibility = 0.5

// degenerateNorm is the vector length below which a direction is undefined.
const degenerateNorm = 1e-9

// up is the upward direction in image coordinates, where y grows downwards.
var up = r2.Vec{X: 0, Y: -1}

// Extractor computes joint angles from a landmark set. It holds no state
// beyond its threshold and is safe for concurrent use.
type Extractor struct {
	// MinVisibility is the inclusive threshold a landmark must meet to be
	// used. Zero selects DefaultMinVisibility.
	MinVisibility float64
}

// NewExtractor returns an Extractor with the given visibility threshold.
func NewExtractor(minVisibility float64) Extractor {
	return Extractor{MinVisibility: minVisibility}
}

func (e Extractor) threshold() float64 {
	if e.MinVisibility <= 0 || math.IsNaN(e.MinVisibility) {
		return DefaultMinVisibility
	}
	return e.MinVisibility
}

// Extract computes the six REBA joint angles for the chosen side. Angles whose
// landmarks are missing, below threshold or geometrically degenerate are
// Unavailable.
func (e Extractor) Extract(set pose.Set, side pose.Side) JointAngles {
	limb := pose.LimbFor(side)
	min := e.threshold()

	get := func(roles ...pose.Role) ([]pose.Landmark, bool) {
		out := make([]pose.Landmark, len(roles))
		for i, r := range roles {
			l, ok := set.Visible(r, min)
			if !ok {
				return nil, false
			}
			out[i] = l
		}
		return out, true
	}

	var ja JointAngles

	if pts, ok := get(pose.LeftEye, pose.RightEye, pose.LeftShoulder, pose.RightShoulder); ok {
		eyes := midpoint(pts[0], pts[1])
		shoulders := midpoint(pts[2], pts[3])
		ja.Neck = verticalAngle(r3.Sub(eyes, shoulders))
	}

	if pts, ok := get(pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip); ok {
		shoulders := midpoint(pts[0], pts[1])
		hips := midpoint(pts[2], pts[3])
		ja.Trunk = verticalAngle(r3.Sub(shoulders, hips))
	}

	if pts, ok := get(limb.Shoulder, limb.Elbow, limb.Wrist); ok {
		elbow := interiorAngle(pts[0].Vec(), pts[1].Vec(), pts[2].Vec())
		ja.UpperArm = elbow
		if d, ok := elbow.Value(); ok {
			ja.Forearm = Degrees(math.Abs(180 - d))
		}
	}

	if pts, ok := get(limb.Elbow, limb.Wrist, limb.Index); ok {
		if d, ok := interiorAngle(pts[0].Vec(), pts[1].Vec(), pts[2].Vec()).Value(); ok {
			ja.Wrist = Degrees(math.Abs(180 - d))
		}
	}

	if pts, ok := get(limb.Hip, limb.Knee, limb.Ankle); ok {
		ja.Leg = interiorAngle(pts[0].Vec(), pts[1].Vec(), pts[2].Vec())
	}

	return ja
}

func midpoint(a, b pose.Landmark) r3.Vec {
	return r3.Scale(0.5, r3.Add(a.Vec(), b.Vec()))
}

// InteriorAngle returns the angle at b formed by the rays b→a and b→c, in
// [0,180]. It is Unavailable when either ray has zero length.
func InteriorAngle(a, b, c r3.Vec) Angle {
	return interiorAngle(a, b, c)
}

func interiorAngle(a, b, c r3.Vec) Angle {
	ba := r3.Sub(a, b)
	bc := r3.Sub(c, b)
	na, nc := r3.Norm(ba), r3.Norm(bc)
	if !(na > degenerateNorm) || !(nc > degenerateNorm) {
		return Unavailable()
	}
	return Degrees(acosDegrees(r3.Dot(ba, bc) / (na * nc)))
}

// VerticalAngle returns the angle in [0,180] between the (x,y) projection of v
// and straight up in image coordinates. Z is ignored.
func VerticalAngle(v r3.Vec) Angle {
	return verticalAngle(v)
}

func verticalAngle(v r3.Vec) Angle {
	flat := r2.Vec{X: v.X, Y: v.Y}
	n := r2.Norm(flat)
	if !(n > degenerateNorm) {
		return Unavailable()
	}
	return Degrees(acosDegrees(r2.Dot(flat, up) / n))
}

// acosDegrees clamps cos into [-1,1] so rounding never produces NaN.
func acosDegrees(cos float64) float64 {
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
