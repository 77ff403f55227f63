package coach

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
)

// WSMessage is one frame of the loopback development protocol: a JSON
// envelope with binary payloads carried as base64. The same shape is
// used in both directions.
type WSMessage struct {
	// Type discriminates the message.
	Type string `json:"type"`

	// MIMEType annotates Data for "audio" and "image" messages.
	MIMEType string `json:"mimeType,omitempty"`

	// Data is the base64-encoded binary payload.
	Data string `json:"data,omitempty"`

	// Tag and Text carry tagged text payloads and transcription deltas.
	Tag  string `json:"tag,omitempty"`
	Text string `json:"text,omitempty"`

	// Model and Instruction configure the session on the "setup" message.
	Model       string `json:"model,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

// WSMessage types.
const (
	WSTypeSetup            = "setup"
	WSTypeAudio            = "audio"
	WSTypeImage            = "image"
	WSTypeText             = "text"
	WSTypeOpened           = "opened"
	WSTypeInputTranscript  = "input_transcript"
	WSTypeOutputTranscript = "output_transcript"
	WSTypeTurnComplete     = "turn_complete"
	WSTypeInterrupted      = "interrupted"
	WSTypeClosed           = "closed"
)

// WSConnector opens live sessions against a WebSocket endpoint speaking
// the loopback development protocol.
type WSConnector struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Header is sent with the handshake request.
	Header http.Header

	// HandshakeTimeout bounds the dial. Zero means 10 seconds.
	HandshakeTimeout time.Duration
}

// Connect implements Connector.
func (c *WSConnector) Connect(ctx context.Context, cfg *ConnectConfig) (Transport, error) {
	if cfg == nil {
		cfg = &ConnectConfig{}
	}
	timeout := c.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, c.URL, c.Header)
	if err != nil {
		return nil, fmt.Errorf("coach: dial %s: %w", c.URL, err)
	}

	t := &wsTransport{
		conn:     conn,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
	if err := t.send(WSMessage{
		Type:        WSTypeSetup,
		Model:       cfg.Model,
		Instruction: cfg.SystemInstruction,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("coach: setup: %w", err)
	}

	go t.readLoop()
	return t, nil
}

type wsTransport struct {
	conn *websocket.Conn

	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once
	mu        sync.Mutex
}

// SendAudio implements Transport.
func (t *wsTransport) SendAudio(data []byte, format pcm.Format) error {
	return t.send(WSMessage{
		Type:     WSTypeAudio,
		MIMEType: format.MIMEType(),
		Data:     base64.StdEncoding.EncodeToString(data),
	})
}

// SendImage implements Transport.
func (t *wsTransport) SendImage(jpegData []byte) error {
	return t.send(WSMessage{
		Type:     WSTypeImage,
		MIMEType: "image/jpeg",
		Data:     base64.StdEncoding.EncodeToString(jpegData),
	})
}

// SendText implements Transport.
func (t *wsTransport) SendText(tag, payload string) error {
	return t.send(WSMessage{Type: WSTypeText, Tag: tag, Text: payload})
}

// Events implements Transport.
func (t *wsTransport) Events() iter.Seq2[*ServerEvent, error] {
	return eventsIter(t.closeCh, t.eventsCh)
}

// Close implements Transport.
func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		err = t.conn.Close()
	})
	return err
}

func (t *wsTransport) send(msg WSMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.closeCh:
		return fmt.Errorf("coach: send on closed transport")
	default:
	}
	return t.conn.WriteJSON(&msg)
}

func (t *wsTransport) readLoop() {
	defer close(t.eventsCh)

	for {
		select {
		case <-t.closeCh:
			return
		default:
		}

		var msg WSMessage
		if err := t.conn.ReadJSON(&msg); err != nil {
			select {
			case <-t.closeCh:
			default:
				t.emit(eventOrError{err: fmt.Errorf("coach: ws read: %w", err)})
			}
			return
		}

		ev, err := t.convert(&msg)
		if err != nil {
			if !t.emit(eventOrError{err: err}) {
				return
			}
			return
		}
		if ev == nil {
			continue
		}
		if !t.emit(eventOrError{event: ev}) {
			return
		}
		if ev.Type == EventClosed {
			return
		}
	}
}

func (t *wsTransport) emit(item eventOrError) bool {
	select {
	case <-t.closeCh:
		return false
	case t.eventsCh <- item:
		return true
	}
}

func (t *wsTransport) convert(msg *WSMessage) (*ServerEvent, error) {
	switch msg.Type {
	case WSTypeOpened:
		return &ServerEvent{Type: EventOpened}, nil
	case WSTypeAudio:
		data, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("coach: decode audio payload: %w", err)
		}
		format, err := pcm.FormatFromMIME(msg.MIMEType)
		if err != nil {
			return nil, err
		}
		return &ServerEvent{Type: EventServerAudio, Audio: data, AudioFormat: format}, nil
	case WSTypeInputTranscript:
		return &ServerEvent{Type: EventInputTranscript, Text: msg.Text}, nil
	case WSTypeOutputTranscript:
		return &ServerEvent{Type: EventOutputTranscript, Text: msg.Text}, nil
	case WSTypeTurnComplete:
		return &ServerEvent{Type: EventTurnComplete}, nil
	case WSTypeInterrupted:
		return &ServerEvent{Type: EventInterrupted}, nil
	case WSTypeClosed:
		return &ServerEvent{Type: EventClosed}, nil
	default:
		// Unknown types are skipped for forward compatibility.
		return nil, nil
	}
}

var _ Transport = (*wsTransport)(nil)
