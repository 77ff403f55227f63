package coach

import (
	"errors"
	"io"
	"log/slog"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
	"github.com/pulsefit/livecoach/pkg/media"
)

// captureWindow is the number of samples accumulated before a chunk is
// sent uplink. At 16 kHz this is 256 ms of audio.
const captureWindow = 4096

// pumpAudio reads the microphone in fixed windows, converts each window
// to 16-bit PCM and forwards it on the transport. It returns when the
// mic closes or stop is signalled. Send failures are logged and the
// loop keeps going.
func pumpAudio(mic media.Mic, transport Transport, stop <-chan struct{}, log *slog.Logger) {
	format := mic.Format()
	window := make([]float32, captureWindow)
	filled := 0

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := mic.Read(window[filled:])
		filled += n
		if filled == len(window) {
			if sendErr := transport.SendAudio(pcm.Float32ToInt16(window), format); sendErr != nil {
				log.Warn("audio send failed", "err", sendErr)
			}
			filled = 0
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn("microphone read failed", "err", err)
			}
			return
		}
	}
}
