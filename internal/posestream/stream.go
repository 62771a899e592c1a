// Package posestream multiplexes a line-delimited JSON stream of pose frames
// from a single source (typically a tracker on a serial port) to any number
// of subscribers.
package posestream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"tailscale.com/tsweb"

	"github.com/banshee-data/posture.report/internal/monitoring"
	"github.com/banshee-data/posture.report/internal/pose"
)

// ErrMalformedFrame reports a line that could not be decoded as a frame.
var ErrMalformedFrame = errors.New("malformed pose frame")

// maxLineBytes bounds a single JSON line; 33 landmarks fit comfortably.
const maxLineBytes = 1 << 20

// subscriberBuffer is the per-subscriber channel depth. Frames are dropped
// for a subscriber whose buffer is full.
const subscriberBuffer = 64

// Stream reads pose frames from a Source and fans them out to subscribers.
type Stream struct {
	src Source

	subscriberMu sync.Mutex
	subscribers  map[string]chan pose.Frame

	closingMu sync.Mutex
	closing   bool

	received  atomic.Int64
	malformed atomic.Int64
	dropped   atomic.Int64
}

// New wraps src. Call Monitor to start reading.
func New(src Source) *Stream {
	return &Stream{
		src:         src,
		subscribers: make(map[string]chan pose.Frame),
	}
}

// Subscribe returns an ID and a channel receiving every decoded frame.
func (s *Stream) Subscribe() (string, <-chan pose.Frame) {
	id := uuid.NewString()
	ch := make(chan pose.Frame, subscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe closes and removes the subscriber's channel.
func (s *Stream) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// DecodeFrame parses one JSON line into a frame.
func DecodeFrame(line []byte) (pose.Frame, error) {
	var f pose.Frame
	if err := json.Unmarshal(line, &f); err != nil {
		return pose.Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Landmarks == nil {
		f.Landmarks = pose.Set{}
	}
	return f, nil
}

// Monitor reads lines until the source ends, ctx is cancelled or Close is
// called. Blank lines are skipped and malformed lines are counted and logged.
// A clean end of input returns nil.
func (s *Stream) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.src)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineChan := make(chan []byte)
	scanErrChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			line := bytes.Clone(scan.Bytes())
			select {
			case lineChan <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			if s.isClosing() {
				return nil
			}
			return fmt.Errorf("read pose stream: %w", err)

		case line, ok := <-lineChan:
			if !ok {
				select {
				case err := <-scanErrChan:
					if !s.isClosing() {
						return fmt.Errorf("read pose stream: %w", err)
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			frame, err := DecodeFrame(line)
			if err != nil {
				n := s.malformed.Add(1)
				monitoring.Logf("posestream: skipping line (%d malformed so far): %v", n, err)
				continue
			}
			s.received.Add(1)
			s.publish(frame)
		}
	}
}

func (s *Stream) publish(frame pose.Frame) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- frame:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Stream) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// Stats is a snapshot of stream counters.
type Stats struct {
	Received    int64 `json:"received"`
	Malformed   int64 `json:"malformed"`
	Dropped     int64 `json:"dropped"`
	Subscribers int   `json:"subscribers"`
}

// Stats returns the current counters.
func (s *Stream) Stats() Stats {
	s.subscriberMu.Lock()
	n := len(s.subscribers)
	s.subscriberMu.Unlock()
	return Stats{
		Received:    s.received.Load(),
		Malformed:   s.malformed.Load(),
		Dropped:     s.dropped.Load(),
		Subscribers: n,
	}
}

// Close closes every subscriber channel and the source.
func (s *Stream) Close() error {
	s.closingMu.Lock()
	if s.closing {
		s.closingMu.Unlock()
		return nil
	}
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.src.Close()
}

// AttachAdminRoutes mounts a live server-sent-events tail of decoded frames
// and a counters endpoint on the tsweb debug index.
func (s *Stream) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("pose-stats", "pose stream counters", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.Stats())
	})
	debug.HandleSilentFunc("pose-tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()
		for {
			select {
			case frame, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(frame)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
