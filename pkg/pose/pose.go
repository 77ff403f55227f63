// Package pose defines the pose-estimation boundary of the live coaching
// pipeline: world landmarks for a detected person and an Estimator
// interface the frame pipeline calls once per sampled frame.
//
// Estimation backends vary by platform (an on-device landmarker on mobile,
// none at all on headless hosts), so callers hold an Estimator and never
// branch on platform specifics; hosts without a backend use Disabled.
package pose

import (
	"context"
	"errors"
	"image"
)

// NumLandmarks is the number of world landmarks produced per detection.
const NumLandmarks = 33

// ErrNoPerson reports that no person was detected in the frame.
// It is an expected per-frame outcome, not a failure.
var ErrNoPerson = errors.New("pose: no person detected")

// ErrNotSupported reports that no estimation backend is available.
var ErrNotSupported = errors.New("pose: estimation not supported on this host")

// Landmark is one world landmark: meters from the hip midpoint, plus the
// backend's visibility confidence.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Estimator detects pose world landmarks in a single frame.
type Estimator interface {
	// Detect returns the detected landmarks, ErrNoPerson when the frame
	// contains no person, or another error for backend failures.
	Detect(ctx context.Context, img image.Image) ([]Landmark, error)
	// Close releases backend resources.
	Close() error
}

// Disabled is the Estimator for hosts without an estimation backend.
// Detect always returns ErrNotSupported.
type Disabled struct{}

// Detect implements Estimator.
func (Disabled) Detect(context.Context, image.Image) ([]Landmark, error) {
	return nil, ErrNotSupported
}

// Close implements Estimator.
func (Disabled) Close() error { return nil }

// Fixed is an Estimator that returns a canned result, for tests and
// synthetic sessions.
type Fixed struct {
	// Landmarks is returned by every Detect call. If nil, Detect returns
	// ErrNoPerson.
	Landmarks []Landmark

	// Err, if set, is returned instead.
	Err error
}

// Detect implements Estimator.
func (f *Fixed) Detect(context.Context, image.Image) ([]Landmark, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Landmarks == nil {
		return nil, ErrNoPerson
	}
	return f.Landmarks, nil
}

// Close implements Estimator.
func (f *Fixed) Close() error { return nil }

// StandingFigure returns a plausible full-body landmark set for a person
// standing centered in frame, useful as synthetic Detect output.
func StandingFigure() []Landmark {
	out := make([]Landmark, NumLandmarks)
	for i := range out {
		out[i] = Landmark{
			X:          0,
			Y:          -0.9 + float64(i)*(1.8/float64(NumLandmarks-1)),
			Z:          0.05,
			Visibility: 0.98,
		}
	}
	return out
}
