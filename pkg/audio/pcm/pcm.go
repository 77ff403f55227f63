// Package pcm provides types and utilities for 16-bit linear PCM audio.
//
// The live coaching pipeline uses three fixed formats: the microphone's
// native 48 kHz capture format, the 16 kHz mono uplink format expected by
// the coaching model, and the 24 kHz mono downlink format of server speech.
//
// Key types:
//   - Format: sample rate / channels / depth plus byte and duration math
//   - Chunk: interface for audio data chunks
//   - DataChunk, SilenceChunk: concrete chunks
package pcm

import (
	"fmt"
	"io"
	"time"
)

const (
	// L16Mono16K is the uplink format: audio/pcm;rate=16000, mono, 16-bit.
	L16Mono16K Format = iota
	// L16Mono24K is the downlink format of server speech.
	L16Mono24K
	// L16Mono48K is the typical native microphone format.
	L16Mono48K
)

// Chunk is a chunk of audio data.
type Chunk interface {
	Len() int64
	Format() Format
	WriteTo(w io.Writer) (int64, error)
}

// Format represents a fixed PCM audio format.
type Format int

// SampleRate returns the sample rate in Hz.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid format")
}

// Channels returns the number of audio channels.
func (f Format) Channels() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 1
	}
	panic("pcm: invalid format")
}

// Depth returns the bit depth.
func (f Format) Depth() int {
	switch f {
	case L16Mono16K, L16Mono24K, L16Mono48K:
		return 16
	}
	panic("pcm: invalid format")
}

// MIMEType returns the MIME annotation sent alongside audio payloads,
// e.g. "audio/pcm;rate=16000".
func (f Format) MIMEType() string {
	switch f {
	case L16Mono16K:
		return "audio/pcm;rate=16000"
	case L16Mono24K:
		return "audio/pcm;rate=24000"
	case L16Mono48K:
		return "audio/pcm;rate=48000"
	}
	panic("pcm: invalid format")
}

// FormatFromMIME resolves a MIME annotation back to a Format.
func FormatFromMIME(mime string) (Format, error) {
	for _, f := range []Format{L16Mono16K, L16Mono24K, L16Mono48K} {
		if f.MIMEType() == mime {
			return f, nil
		}
	}
	return 0, fmt.Errorf("pcm: unsupported MIME type %q", mime)
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels()) / int64(f.Depth())
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.Channels()) * int64(f.Depth()) / 8
}

// Duration returns the playback duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// String returns a human-readable representation of the format.
func (f Format) String() string {
	switch f {
	case L16Mono16K:
		return "audio/L16; rate=16000; channels=1"
	case L16Mono24K:
		return "audio/L16; rate=24000; channels=1"
	case L16Mono48K:
		return "audio/L16; rate=48000; channels=1"
	}
	panic("pcm: invalid format")
}

// DataChunk returns a chunk wrapping the given audio bytes.
func (f Format) DataChunk(data []byte) Chunk {
	return &DataChunk{Data: data, fmt: f}
}

// SilenceChunk returns a silence chunk of the given duration.
func (f Format) SilenceChunk(duration time.Duration) Chunk {
	return &SilenceChunk{
		Duration: duration,
		len:      f.BytesInDuration(duration),
		fmt:      f,
	}
}

// DataChunk is a chunk of raw audio bytes.
type DataChunk struct {
	Data []byte
	fmt  Format
}

// Len returns the length of the audio data in bytes.
func (c *DataChunk) Len() int64 {
	return int64(len(c.Data))
}

// Format returns the audio format of this chunk.
func (c *DataChunk) Format() Format {
	return c.fmt
}

// WriteTo writes the audio data to the writer.
func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}

// SilenceChunk is a chunk of silence.
type SilenceChunk struct {
	Duration time.Duration
	len      int64
	fmt      Format
}

// Len returns the length of the silence in bytes.
func (c *SilenceChunk) Len() int64 {
	return c.len
}

// Format returns the audio format of this chunk.
func (c *SilenceChunk) Format() Format {
	return c.fmt
}

var silence [32000]byte

// WriteTo writes zero bytes to the writer.
func (c *SilenceChunk) WriteTo(w io.Writer) (int64, error) {
	left := c.len
	var written int64
	for left > 0 {
		b := silence[:]
		if left < int64(len(b)) {
			b = b[:left]
		}
		n, err := w.Write(b)
		if err != nil {
			return written, err
		}
		written += int64(n)
		left -= int64(n)
	}
	return written, nil
}
