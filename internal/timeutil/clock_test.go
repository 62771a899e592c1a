package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func TestRealClock(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, clock.Since(before.Add(-time.Second)), time.Second)
}

func TestMockClock(t *testing.T) {
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, c.Since(start))

	c.Set(start.Add(time.Hour))
	assert.Equal(t, time.Hour, c.Since(start))
}

func TestFrameClock(t *testing.T) {
	c, err := NewFrameClock(start, 25)
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, c.Interval())
	assert.Equal(t, time.Duration(0), c.Since(start))

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(40*time.Millisecond), c.Now())
	assert.Equal(t, 40*time.Millisecond, c.Since(start))
	assert.Equal(t, start.Add(time.Second), c.At(25))
}

func TestFrameClockRejectsBadRates(t *testing.T) {
	for _, fps := range []float64{0, -5, 1001} {
		_, err := NewFrameClock(start, fps)
		assert.Error(t, err, "fps %v", fps)
	}
}
