package resampler

// Preset formats of the capture path.
var (
	// NativeMic is the typical microphone capture format, 48 kHz mono.
	NativeMic = Format{SampleRate: 48000}

	// Uplink is the 16 kHz mono format the coaching model expects.
	Uplink = Format{SampleRate: 16000}
)

// Format describes a 16-bit signed PCM stream on either side of a
// conversion.
type Format struct {
	// SampleRate in Hz, e.g. 48000 for typical microphone capture or
	// 16000 for the uplink.
	SampleRate int

	// Stereo selects two interleaved channels; false means mono.
	Stereo bool
}

// channels is the interleaved channel count.
func (f Format) channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

// sampleBytes is the size of one frame: all channels of one sample
// instant, two bytes each.
func (f Format) sampleBytes() int {
	return 2 * f.channels()
}
