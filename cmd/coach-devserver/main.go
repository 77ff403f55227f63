// Package main implements coach-devserver, a loopback WebSocket server
// speaking the livecoach development protocol. It lets the full client
// pipeline run without the Gemini Live API: it consumes uplink audio,
// frames and telemetry, and replies with scripted coaching turns whose
// speech is a synthesized tone.
//
// Usage:
//
//	coach-devserver [-addr :8700] [-turn-every 6s] [-interrupt-every 4]
//
// Point the client at it with:
//
//	livecoach run --server ws://localhost:8700/live
package main

import (
	"bytes"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
	"github.com/pulsefit/livecoach/pkg/buffer"
	"github.com/pulsefit/livecoach/pkg/coach"
)

var (
	addr           = flag.String("addr", ":8700", "listen address")
	turnEvery      = flag.Duration("turn-every", 6*time.Second, "interval between scripted coaching turns")
	interruptEvery = flag.Int("interrupt-every", 0, "cut every Nth turn short with an interruption (0 = never)")
	verbose        = flag.Bool("v", false, "verbose output")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

var coachingLines = []string{
	"Good posture, keep your core engaged.",
	"Slow down a little, control the movement.",
	"Nice depth on that one, keep breathing.",
	"Drive through your heels on the way up.",
	"Halfway there, keep this rhythm going.",
	"Strong finish, shake it out for a second.",
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	http.HandleFunc("/live", handleLive)
	slog.Info("coach-devserver listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("upgrade failed", "err", err)
		return
	}
	sess := &liveSession{conn: conn, log: slog.With("remote", r.RemoteAddr)}
	sess.run()
}

type liveSession struct {
	conn *websocket.Conn
	log  *slog.Logger

	mu         sync.Mutex
	audioBytes int64
	frames     int
	turn       int
}

func (s *liveSession) run() {
	defer s.conn.Close()

	var setup coach.WSMessage
	if err := s.conn.ReadJSON(&setup); err != nil || setup.Type != coach.WSTypeSetup {
		s.log.Warn("bad handshake", "err", err, "type", setup.Type)
		return
	}
	s.log.Info("session opened", "model", setup.Model)
	if err := s.conn.WriteJSON(coach.WSMessage{Type: coach.WSTypeOpened}); err != nil {
		return
	}

	// Uplink messages go through a growable buffer so a burst of frames
	// never blocks the client's send path.
	uplink := buffer.N[coach.WSMessage](64)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer uplink.CloseWrite()
		for {
			var msg coach.WSMessage
			if err := s.conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := uplink.Add(msg); err != nil {
				return
			}
		}
	}()
	go func() {
		for {
			msg, err := uplink.Next()
			if err != nil {
				return
			}
			s.track(&msg)
		}
	}()

	ticker := time.NewTicker(*turnEvery)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			s.mu.Lock()
			s.log.Info("client gone",
				"audio_bytes", s.audioBytes, "frames", s.frames, "turns", s.turn)
			s.mu.Unlock()
			return
		case <-ticker.C:
			if err := s.sendTurn(); err != nil {
				s.log.Warn("turn send failed", "err", err)
				return
			}
		}
	}
}

func (s *liveSession) track(msg *coach.WSMessage) {
	switch msg.Type {
	case coach.WSTypeAudio:
		if data, err := base64.StdEncoding.DecodeString(msg.Data); err == nil {
			s.mu.Lock()
			s.audioBytes += int64(len(data))
			s.mu.Unlock()
		}
	case coach.WSTypeImage:
		s.mu.Lock()
		s.frames++
		s.mu.Unlock()
	case coach.WSTypeText:
		s.log.Debug("uplink text", "tag", msg.Tag, "payload", msg.Text)
	}
}

// sendTurn emits one scripted exchange: an input transcript echoing the
// session stats, the coaching line as output transcript deltas, its
// spoken audio, and the closing turn-complete. Every Nth turn is cut
// short with an interruption instead.
func (s *liveSession) sendTurn() error {
	s.turn++
	line := coachingLines[(s.turn-1)%len(coachingLines)]

	s.mu.Lock()
	audioBytes, frames := s.audioBytes, s.frames
	s.mu.Unlock()
	input := fmt.Sprintf("(%.0fs of audio, %d frames so far)",
		pcm.L16Mono16K.Duration(audioBytes).Seconds(), frames)
	if err := s.conn.WriteJSON(coach.WSMessage{Type: coach.WSTypeInputTranscript, Text: input}); err != nil {
		return err
	}

	interrupted := *interruptEvery > 0 && s.turn%*interruptEvery == 0

	half := len(line) / 2
	if err := s.conn.WriteJSON(coach.WSMessage{Type: coach.WSTypeOutputTranscript, Text: line[:half]}); err != nil {
		return err
	}
	if err := s.sendSpeech(time.Second); err != nil {
		return err
	}
	if interrupted {
		s.log.Debug("interrupting turn", "turn", s.turn)
		return s.conn.WriteJSON(coach.WSMessage{Type: coach.WSTypeInterrupted})
	}
	// A short breath between the two halves, like a model pausing
	// mid-sentence.
	if err := s.sendSilence(250 * time.Millisecond); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(coach.WSMessage{Type: coach.WSTypeOutputTranscript, Text: line[half:]}); err != nil {
		return err
	}
	if err := s.sendSpeech(time.Second); err != nil {
		return err
	}
	return s.conn.WriteJSON(coach.WSMessage{Type: coach.WSTypeTurnComplete})
}

func (s *liveSession) sendSpeech(d time.Duration) error {
	return s.conn.WriteJSON(coach.WSMessage{
		Type:     coach.WSTypeAudio,
		MIMEType: pcm.L16Mono24K.MIMEType(),
		Data:     base64.StdEncoding.EncodeToString(sineTonePCM16LE(330, d)),
	})
}

func (s *liveSession) sendSilence(d time.Duration) error {
	var buf bytes.Buffer
	if _, err := pcm.L16Mono24K.SilenceChunk(d).WriteTo(&buf); err != nil {
		return err
	}
	return s.conn.WriteJSON(coach.WSMessage{
		Type:     coach.WSTypeAudio,
		MIMEType: pcm.L16Mono24K.MIMEType(),
		Data:     base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// sineTonePCM16LE synthesizes a mono sine tone in the downlink format.
func sineTonePCM16LE(freq float64, d time.Duration) []byte {
	format := pcm.L16Mono24K
	samples := format.SamplesInDuration(d)
	out := make([]byte, samples*2)
	step := 2 * math.Pi * freq / float64(format.SampleRate())
	for i := int64(0); i < samples; i++ {
		v := int16(0.25 * math.Sin(step*float64(i)) * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
