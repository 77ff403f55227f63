package media

import (
	"io"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
	"github.com/pulsefit/livecoach/pkg/audio/resampler"
)

// ReaderMic adapts a raw 16-bit PCM byte stream (a recording, or a pipe from
// a system capture tool) into a Mic, resampling from the source format to
// 16 kHz mono.
type ReaderMic struct {
	rs  resampler.Resampler
	buf []byte
}

// NewReaderMic creates a ReaderMic reading srcFmt PCM from src.
func NewReaderMic(src io.Reader, srcFmt resampler.Format) (*ReaderMic, error) {
	rs, err := resampler.New(src, srcFmt, resampler.Uplink)
	if err != nil {
		return nil, err
	}
	return &ReaderMic{rs: rs}, nil
}

// Read implements Mic.
func (m *ReaderMic) Read(p []float32) (int, error) {
	need := len(p) * 2
	if cap(m.buf) < need {
		m.buf = make([]byte, need)
	}
	n, err := m.rs.Read(m.buf[:need])
	if n == 0 {
		return 0, err
	}
	samples := pcm.Int16ToFloat32(m.buf[:n])
	copy(p, samples)
	return len(samples), err
}

// Format implements Mic.
func (m *ReaderMic) Format() pcm.Format {
	return pcm.L16Mono16K
}

// Close implements Mic.
func (m *ReaderMic) Close() error {
	return m.rs.Close()
}
