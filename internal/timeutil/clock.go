// Package timeutil provides the clocks used to timestamp sessions and frames.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock reads wall-clock time.
type RealClock struct{}

func (RealClock) Now() time.Time                  { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// MockClock only moves when told to. Tests use it to pin session start times
// and frame timestamps.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// FrameClock stamps video frames at a fixed rate from a start time. Each
// call to Now returns the next frame's timestamp.
type FrameClock struct {
	mu       sync.Mutex
	start    time.Time
	interval time.Duration
	next     int
}

// NewFrameClock returns a clock ticking fps frames per second from start.
func NewFrameClock(start time.Time, fps float64) (*FrameClock, error) {
	if !(fps > 0) || fps > 1000 {
		return nil, fmt.Errorf("frame rate %v out of range (0, 1000]", fps)
	}
	return &FrameClock{start: start, interval: time.Duration(float64(time.Second) / fps)}, nil
}

// Interval is the time between consecutive frames.
func (c *FrameClock) Interval() time.Duration { return c.interval }

// At returns the timestamp of frame n, counting from zero.
func (c *FrameClock) At(n int) time.Time {
	return c.start.Add(time.Duration(n) * c.interval)
}

func (c *FrameClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.At(c.next)
	c.next++
	return t
}

// Since measures from the most recently issued frame.
func (c *FrameClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.At(max(c.next-1, 0)).Sub(t)
}
