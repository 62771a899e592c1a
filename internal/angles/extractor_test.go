package angles

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/posture.report/internal/pose"
)

// uprightSet is a standing figure facing the camera with a straight right arm
// hanging down and straight legs.
func uprightSet() pose.Set {
	lm := func(x, y float64) pose.Landmark { return pose.Landmark{X: x, Y: y, Visibility: 0.99} }
	return pose.Set{
		pose.LeftEye:       lm(0.52, 0.10),
		pose.RightEye:      lm(0.48, 0.10),
		pose.LeftShoulder:  lm(0.60, 0.25),
		pose.RightShoulder: lm(0.40, 0.25),
		pose.LeftHip:       lm(0.56, 0.55),
		pose.RightHip:      lm(0.44, 0.55),
		pose.RightElbow:    lm(0.40, 0.40),
		pose.RightWrist:    lm(0.40, 0.55),
		pose.RightIndex:    lm(0.40, 0.60),
		pose.RightKnee:     lm(0.44, 0.75),
		pose.RightAnkle:    lm(0.44, 0.95),
	}
}

func TestExtractUpright(t *testing.T) {
	ja := Extractor{}.Extract(uprightSet(), pose.SideRight)

	tests := []struct {
		name  string
		angle Angle
		want  float64
	}{
		{"neck", ja.Neck, 0},
		{"trunk", ja.Trunk, 0},
		{"upper_arm", ja.UpperArm, 180},
		{"forearm", ja.Forearm, 0},
		{"wrist", ja.Wrist, 0},
		{"leg", ja.Leg, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := tt.angle.Value()
			require.True(t, ok)
			assert.InDelta(t, tt.want, d, 1e-6)
		})
	}
}

func TestExtractBentElbow(t *testing.T) {
	s := uprightSet()
	// Forearm horizontal: 90 degree interior angle at the elbow.
	s[pose.RightWrist] = pose.Landmark{X: 0.55, Y: 0.40, Visibility: 0.9}
	s[pose.RightIndex] = pose.Landmark{X: 0.60, Y: 0.40, Visibility: 0.9}

	ja := Extractor{}.Extract(s, pose.SideRight)
	ua, ok := ja.UpperArm.Value()
	require.True(t, ok)
	assert.InDelta(t, 90, ua, 1e-6)
	fa, ok := ja.Forearm.Value()
	require.True(t, ok)
	assert.InDelta(t, 90, fa, 1e-6)
	w, ok := ja.Wrist.Value()
	require.True(t, ok)
	assert.InDelta(t, 0, w, 1e-6)
}

func TestExtractTrunkLean(t *testing.T) {
	s := uprightSet()
	// Shift shoulders forward so the shoulder-hip vector is 45 degrees off vertical.
	s[pose.LeftShoulder] = pose.Landmark{X: 0.86, Y: 0.25, Visibility: 0.9}
	s[pose.RightShoulder] = pose.Landmark{X: 0.74, Y: 0.25, Visibility: 0.9}

	ja := Extractor{}.Extract(s, pose.SideRight)
	d, ok := ja.Trunk.Value()
	require.True(t, ok)
	assert.InDelta(t, 45, d, 1e-6)
}

func TestExtractLowVisibility(t *testing.T) {
	s := uprightSet()
	hip := s[pose.LeftHip]
	hip.Visibility = 0.3
	s[pose.LeftHip] = hip

	ja := Extractor{}.Extract(s, pose.SideRight)
	assert.False(t, ja.Trunk.Available(), "trunk depends on left hip")
	assert.True(t, ja.Leg.Available(), "right leg does not use left hip")
	assert.True(t, ja.Neck.Available())

	// A lower threshold accepts the same landmark.
	ja = NewExtractor(0.25).Extract(s, pose.SideRight)
	assert.True(t, ja.Trunk.Available())
}

func TestExtractMissingSide(t *testing.T) {
	ja := Extractor{}.Extract(uprightSet(), pose.SideLeft)
	assert.False(t, ja.UpperArm.Available())
	assert.False(t, ja.Forearm.Available())
	assert.False(t, ja.Wrist.Available())
	assert.False(t, ja.Leg.Available())
	assert.True(t, ja.Neck.Available())
	assert.True(t, ja.Trunk.Available())
	assert.Equal(t, 2, ja.Available())
}

func TestExtractCoincidentPoints(t *testing.T) {
	s := uprightSet()
	s[pose.RightElbow] = s[pose.RightShoulder]

	ja := Extractor{}.Extract(s, pose.SideRight)
	assert.False(t, ja.UpperArm.Available())
	assert.False(t, ja.Forearm.Available())
	// The other angles are unaffected.
	assert.True(t, ja.Leg.Available())
	assert.True(t, ja.Trunk.Available())
	assert.True(t, ja.Neck.Available())
}

func TestExtractNonFinite(t *testing.T) {
	s := uprightSet()
	s[pose.RightKnee] = pose.Landmark{X: math.Inf(1), Y: 0.7, Visibility: 0.9}

	ja := Extractor{}.Extract(s, pose.SideRight)
	assert.False(t, ja.Leg.Available())
}

func TestInteriorAngleRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		v := func() r3.Vec { return r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()} }
		a, b, c := v(), v(), v()
		if i%10 == 0 {
			c = r3.Add(b, r3.Scale(rng.Float64(), r3.Sub(a, b))) // collinear
		}
		got := InteriorAngle(a, b, c)
		d, ok := got.Value()
		require.True(t, ok)
		require.False(t, math.IsNaN(d))
		require.GreaterOrEqual(t, d, 0.0)
		require.LessOrEqual(t, d, 180.0)

		va := VerticalAngle(r3.Sub(a, b))
		d, ok = va.Value()
		require.True(t, ok)
		require.GreaterOrEqual(t, d, 0.0)
		require.LessOrEqual(t, d, 180.0)
	}
}

func TestVerticalAngleIgnoresDepth(t *testing.T) {
	assert.False(t, VerticalAngle(r3.Vec{Z: 1}).Available())
	d, ok := VerticalAngle(r3.Vec{X: 0, Y: 1, Z: 5}).Value()
	require.True(t, ok)
	assert.InDelta(t, 180, d, 1e-9)
}

func TestExtractIdempotent(t *testing.T) {
	s := uprightSet()
	e := Extractor{}
	first := e.Extract(s, pose.SideRight)
	_ = e.Extract(pose.Set{}, pose.SideLeft)
	assert.Equal(t, first, e.Extract(s, pose.SideRight))
}

func TestAngleJSON(t *testing.T) {
	ja := JointAngles{Neck: Degrees(25), Trunk: Unavailable()}
	data, err := json.Marshal(ja)
	require.NoError(t, err)
	assert.JSONEq(t, `{"neck":25,"trunk":null,"upper_arm":null,"forearm":null,"wrist":null,"leg":null}`, string(data))

	var back JointAngles
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ja, back)

	assert.Equal(t, "N/A", Unavailable().String())
	assert.Equal(t, "25.0", Degrees(25).String())
	assert.False(t, Degrees(math.NaN()).Available())
}
