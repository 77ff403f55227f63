// Package media provides microphone and camera acquisition for live
// coaching sessions.
//
// A Provider hands out a Stream whose tracks are exclusively owned by the
// session that acquired them; the session must call Stop exactly once per
// acquired stream on every exit path. Synthetic implementations let the
// whole pipeline run without hardware.
package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
)

// ErrPermissionDenied is returned when the user (or platform policy) denies
// access to the camera or microphone.
var ErrPermissionDenied = errors.New("media: permission denied")

// ErrNoDevice is returned when no capture device is available.
var ErrNoDevice = errors.New("media: no capture device")

// DeviceError wraps a hardware fault from an otherwise available device.
type DeviceError struct {
	Cause error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("media: device failure: %v", e.Cause)
}

func (e *DeviceError) Unwrap() error {
	return e.Cause
}

// Constraints describes the requested capture configuration.
type Constraints struct {
	// Width and Height are the preferred camera frame size.
	Width  int
	Height int

	// FacingFront requests the user-facing camera on devices that have one.
	FacingFront bool

	// SampleRate is the microphone sample rate the consumer expects, in Hz.
	SampleRate int
}

// DefaultConstraints matches the coaching client's preview surface:
// a front camera at 640x360 and a 16 kHz microphone.
func DefaultConstraints() Constraints {
	return Constraints{Width: 640, Height: 360, FacingFront: true, SampleRate: 16000}
}

// Mic is a microphone track delivering normalized float samples (-1..1).
type Mic interface {
	// Read fills p with captured samples and returns the count read.
	Read(p []float32) (int, error)
	// Format returns the PCM format the samples represent.
	Format() pcm.Format
	// Close releases the track.
	Close() error
}

// Camera is a video track that can be sampled one frame at a time.
type Camera interface {
	// Grab returns the current frame.
	Grab() (image.Image, error)
	// Size returns the frame dimensions.
	Size() (width, height int)
	// Close releases the track.
	Close() error
}

// Provider acquires media streams.
type Provider interface {
	Acquire(ctx context.Context, c Constraints) (*Stream, error)
}

// Stream bundles the acquired tracks. It is owned by exactly one session.
type Stream struct {
	Mic    Mic
	Camera Camera

	stopOnce sync.Once
	stopped  bool
	mu       sync.Mutex
}

// Stop releases both tracks. Safe to call multiple times.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		if s.Mic != nil {
			_ = s.Mic.Close()
		}
		if s.Camera != nil {
			_ = s.Camera.Close()
		}
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
	})
}

// Stopped reports whether Stop has run.
func (s *Stream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
