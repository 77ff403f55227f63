package coach

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/genai"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
)

// DefaultModel is the live coaching model used when none is configured.
const DefaultModel = "gemini-2.0-flash-live-001"

// GeminiConnector opens live sessions against the Gemini Live API.
type GeminiConnector struct {
	Client *genai.Client
}

// Connect implements Connector. The session is configured for audio
// responses with input and output transcription enabled.
func (c *GeminiConnector) Connect(ctx context.Context, cfg *ConnectConfig) (Transport, error) {
	if cfg == nil {
		cfg = &ConnectConfig{}
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	liveCfg := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.SystemInstruction != "" {
		liveCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}

	session, err := c.Client.Live.Connect(ctx, model, liveCfg)
	if err != nil {
		if e, ok := err.(*apierror.APIError); ok {
			err = e.Unwrap()
		}
		return nil, fmt.Errorf("coach: live connect: %w", err)
	}

	t := &geminiTransport{
		session:  session,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
	go t.readLoop()
	return t, nil
}

type geminiTransport struct {
	session *genai.Session

	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once
	mu        sync.Mutex
}

// SendAudio forwards one chunk of uplink PCM with its MIME annotation.
func (t *geminiTransport) SendAudio(data []byte, format pcm.Format) error {
	return t.sendRealtime(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: data, MIMEType: format.MIMEType()},
	})
}

// SendImage forwards one JPEG camera frame.
func (t *geminiTransport) SendImage(jpegData []byte) error {
	return t.sendRealtime(genai.LiveRealtimeInput{
		Media: &genai.Blob{Data: jpegData, MIMEType: "image/jpeg"},
	})
}

// SendText forwards a tagged text payload.
func (t *geminiTransport) SendText(tag, payload string) error {
	return t.sendRealtime(genai.LiveRealtimeInput{
		Text: tag + ": " + payload,
	})
}

func (t *geminiTransport) sendRealtime(input genai.LiveRealtimeInput) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.closeCh:
		return fmt.Errorf("coach: send on closed transport")
	default:
	}
	return t.session.SendRealtimeInput(input)
}

// Events implements Transport.
func (t *geminiTransport) Events() iter.Seq2[*ServerEvent, error] {
	return eventsIter(t.closeCh, t.eventsCh)
}

// Close implements Transport.
func (t *geminiTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		err = t.session.Close()
	})
	return err
}

// readLoop pumps server messages into typed events. The handshake is
// already complete when Connect returns, so Opened is emitted first.
func (t *geminiTransport) readLoop() {
	defer close(t.eventsCh)

	if !t.emit(eventOrError{event: &ServerEvent{Type: EventOpened}}) {
		return
	}

	for {
		msg, err := t.session.Receive()
		if err != nil {
			select {
			case <-t.closeCh:
				// Locally closed; not a transport failure.
			default:
				t.emit(eventOrError{err: fmt.Errorf("coach: live receive: %w", err)})
			}
			return
		}
		for _, ev := range t.convert(msg) {
			if !t.emit(eventOrError{event: ev}) {
				return
			}
		}
	}
}

func (t *geminiTransport) emit(item eventOrError) bool {
	select {
	case <-t.closeCh:
		return false
	case t.eventsCh <- item:
		return true
	}
}

// convert maps one Gemini Live server message to typed events. Order
// matters: transcription deltas and audio precede the turn-complete and
// interruption flags carried on the same message.
func (t *geminiTransport) convert(msg *genai.LiveServerMessage) []*ServerEvent {
	sc := msg.ServerContent
	if sc == nil {
		return nil
	}

	var events []*ServerEvent
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		events = append(events, &ServerEvent{
			Type: EventInputTranscript,
			Text: sc.InputTranscription.Text,
		})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		events = append(events, &ServerEvent{
			Type: EventOutputTranscript,
			Text: sc.OutputTranscription.Text,
		})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			if !strings.HasPrefix(part.InlineData.MIMEType, "audio/pcm") {
				slog.Debug("ignoring non-audio inline part", "mime", part.InlineData.MIMEType)
				continue
			}
			events = append(events, &ServerEvent{
				Type:        EventServerAudio,
				Audio:       part.InlineData.Data,
				AudioFormat: pcm.L16Mono24K,
			})
		}
	}
	if sc.Interrupted {
		events = append(events, &ServerEvent{Type: EventInterrupted})
	}
	if sc.TurnComplete {
		events = append(events, &ServerEvent{Type: EventTurnComplete})
	}
	return events
}

var _ Transport = (*geminiTransport)(nil)
