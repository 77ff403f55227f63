package resampler

import "io"

// sampleReader aligns reads from an arbitrary io.Reader to whole PCM
// frames. Conversion math assumes it never sees a torn sample, so any
// unaligned tail from the source is held back until the next call.
type sampleReader struct {
	r         io.Reader
	frameSize int

	// tail holds the unaligned remainder of the previous read,
	// at most frameSize-1 bytes.
	tail  []byte
	tailN int
}

func newSampleReader(r io.Reader, frameSize int) *sampleReader {
	return &sampleReader{
		r:         r,
		frameSize: frameSize,
		tail:      make([]byte, frameSize-1),
	}
}

// Read fills p with a whole number of frames. len(p) must be at least
// one frame or ErrShortBuffer is returned. A source that ends mid-frame
// yields io.ErrUnexpectedEOF.
func (sr *sampleReader) Read(p []byte) (int, error) {
	if len(p) < sr.frameSize {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)-len(p)%sr.frameSize]

	n := 0
	if sr.tailN > 0 {
		n = copy(p, sr.tail[:sr.tailN])
		sr.tailN = 0
	}

	rn, err := sr.r.Read(p[n:])
	n += rn
	if err != nil {
		if err == io.EOF && n%sr.frameSize != 0 {
			return n, io.ErrUnexpectedEOF
		}
		return n, err
	}
	if rem := n % sr.frameSize; rem != 0 {
		n -= rem
		copy(sr.tail, p[n:n+rem])
		sr.tailN = rem
	}
	return n, nil
}
