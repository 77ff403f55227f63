package coach

import (
	"context"
	"iter"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
)

// Text payload tags recognized by the coaching model.
const (
	// TagPose labels a pose world-landmarks payload.
	TagPose = "POSE_DATA"
	// TagPhysio labels a physiological telemetry payload.
	TagPhysio = "PHYSIO_DATA"
)

// Server event types.
const (
	// EventOpened signals the transport handshake completed; pipelines may
	// start.
	EventOpened = "opened"
	// EventServerAudio carries a chunk of model speech PCM.
	EventServerAudio = "server_audio"
	// EventInputTranscript carries a transcription delta of the user's
	// speech.
	EventInputTranscript = "input_transcript"
	// EventOutputTranscript carries a transcription delta of the model's
	// speech.
	EventOutputTranscript = "output_transcript"
	// EventTurnComplete signals the current exchange finished.
	EventTurnComplete = "turn_complete"
	// EventInterrupted signals the in-flight model reply was cut short and
	// scheduled playback must be flushed.
	EventInterrupted = "interrupted"
	// EventClosed signals the server closed the stream normally.
	EventClosed = "closed"
)

// ServerEvent is one typed event from the coaching model.
type ServerEvent struct {
	// Type is one of the Event* constants.
	Type string

	// Audio is the raw PCM payload for EventServerAudio.
	Audio []byte

	// AudioFormat is the format of Audio.
	AudioFormat pcm.Format

	// Text is the transcription delta for EventInputTranscript and
	// EventOutputTranscript.
	Text string
}

// ConnectConfig configures a live connection.
type ConnectConfig struct {
	// Model is the coaching model identifier.
	Model string

	// SystemInstruction is the localized coaching persona.
	SystemInstruction string
}

// DefaultInstruction returns the built-in coaching persona speaking the
// given language ("English" when empty).
func DefaultInstruction(language string) string {
	if language == "" {
		language = "English"
	}
	return "You are an encouraging fitness coach watching a live workout. " +
		"You hear the athlete, see a camera frame each second, and receive " +
		"body landmarks tagged " + TagPose + " plus heart-rate readings " +
		"tagged " + TagPhysio + ". Give short spoken cues on form, pacing " +
		"and breathing. Speak " + language + "."
}

// Connector opens live transports.
type Connector interface {
	Connect(ctx context.Context, cfg *ConnectConfig) (Transport, error)
}

// Transport is one bidirectional streaming connection to the coaching
// model. Send methods are best-effort: callers log failures and keep
// going; a failed send never stops a pipeline.
type Transport interface {
	// Events returns an iterator over server events. The iterator ends
	// after an error is yielded or the transport closes.
	Events() iter.Seq2[*ServerEvent, error]

	// SendAudio forwards one chunk of uplink PCM.
	SendAudio(data []byte, format pcm.Format) error

	// SendImage forwards one JPEG-encoded camera frame.
	SendImage(jpegData []byte) error

	// SendText forwards a tagged text payload (see TagPose, TagPhysio).
	SendText(tag, payload string) error

	// Close closes the connection. Safe to call multiple times.
	Close() error
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, cfg *ConnectConfig) (Transport, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context, cfg *ConnectConfig) (Transport, error) {
	return f(ctx, cfg)
}

type eventOrError struct {
	event *ServerEvent
	err   error
}

// eventsIter drains ch into a typed event iterator, stopping on the close
// signal and after the first yielded error.
func eventsIter(closeCh <-chan struct{}, ch <-chan eventOrError) iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-closeCh:
				return
			case item, ok := <-ch:
				if !ok {
					return
				}
				if !yield(item.event, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}
