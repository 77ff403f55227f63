package media

import (
	"context"
	"image"
	"image/color"
	"io"
	"math"
	"sync"
	"time"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
)

// SyntheticProvider grants a synthetic stream: a sine-tone microphone and a
// moving-gradient camera. It is the default for CLI runs without hardware
// and for tests.
type SyntheticProvider struct {
	// ToneHz is the mic tone frequency. Defaults to 440.
	ToneHz float64
}

// Acquire implements Provider.
func (p *SyntheticProvider) Acquire(_ context.Context, c Constraints) (*Stream, error) {
	hz := p.ToneHz
	if hz <= 0 {
		hz = 440
	}
	rate := c.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 360
	}
	return &Stream{
		Mic:    NewSineMic(hz, rate),
		Camera: NewPatternCamera(w, h),
	}, nil
}

// DeniedProvider always refuses acquisition, simulating a user denying the
// browser permission prompt.
type DeniedProvider struct{}

// Acquire implements Provider.
func (DeniedProvider) Acquire(context.Context, Constraints) (*Stream, error) {
	return nil, ErrPermissionDenied
}

// SineMic produces a continuous sine tone at a fixed amplitude. Reads
// are paced to the sample rate so the tone arrives in real time, like a
// capture device would deliver it.
type SineMic struct {
	freq float64
	rate int

	mu     sync.Mutex
	phase  float64
	next   time.Time
	closed bool
}

// NewSineMic creates a SineMic with the given tone frequency and sample rate.
func NewSineMic(freq float64, rate int) *SineMic {
	return &SineMic{freq: freq, rate: rate}
}

// Read implements Mic.
func (m *SineMic) Read(p []float32) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, io.EOF
	}
	now := time.Now()
	if m.next.IsZero() || m.next.Before(now) {
		m.next = now
	}
	wait := m.next.Sub(now)
	m.next = m.next.Add(time.Duration(len(p)) * time.Second / time.Duration(m.rate))

	step := 2 * math.Pi * m.freq / float64(m.rate)
	for i := range p {
		p[i] = float32(0.3 * math.Sin(m.phase))
		m.phase += step
	}
	m.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}
	return len(p), nil
}

// Format implements Mic.
func (m *SineMic) Format() pcm.Format {
	switch m.rate {
	case 24000:
		return pcm.L16Mono24K
	case 48000:
		return pcm.L16Mono48K
	default:
		return pcm.L16Mono16K
	}
}

// Close implements Mic.
func (m *SineMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// PatternCamera renders a horizontally scrolling gradient, so consecutive
// frames differ and JPEG encoding has real content to chew on.
type PatternCamera struct {
	w, h int

	mu     sync.Mutex
	tick   int
	closed bool
}

// NewPatternCamera creates a PatternCamera with the given frame size.
func NewPatternCamera(w, h int) *PatternCamera {
	return &PatternCamera{w: w, h: h}
}

// Grab implements Camera.
func (c *PatternCamera) Grab() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, c.w, c.h))
	shift := c.tick * 7
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x + shift) % 256),
				G: uint8((y + shift) % 256),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	c.tick++
	return img, nil
}

// Size implements Camera.
func (c *PatternCamera) Size() (int, int) {
	return c.w, c.h
}

// Close implements Camera.
func (c *PatternCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
