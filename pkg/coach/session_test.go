package coach

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
	"github.com/pulsefit/livecoach/pkg/media"
	"github.com/pulsefit/livecoach/pkg/pose"
)

// fakeTransport records sends and replays scripted server events.
type fakeTransport struct {
	mu         sync.Mutex
	audioSends int
	imageSends int
	textSends  []string
	closed     bool

	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
}

func (t *fakeTransport) push(ev *ServerEvent) { t.eventsCh <- eventOrError{event: ev} }
func (t *fakeTransport) pushErr(err error)    { t.eventsCh <- eventOrError{err: err} }
func (t *fakeTransport) finish()              { close(t.eventsCh) }

func (t *fakeTransport) SendAudio([]byte, pcm.Format) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.audioSends++
	return nil
}

func (t *fakeTransport) SendImage([]byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.imageSends++
	return nil
}

func (t *fakeTransport) SendText(tag, payload string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.textSends = append(t.textSends, tag+": "+payload)
	return nil
}

func (t *fakeTransport) Events() iter.Seq2[*ServerEvent, error] {
	return eventsIter(t.closeCh, t.eventsCh)
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
	})
	return nil
}

func (t *fakeTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// failingTransport records sends like fakeTransport but fails each one.
type failingTransport struct {
	*fakeTransport
}

func (t *failingTransport) SendAudio(data []byte, f pcm.Format) error {
	t.fakeTransport.SendAudio(data, f)
	return fmt.Errorf("send failed")
}

func (t *failingTransport) SendImage(data []byte) error {
	t.fakeTransport.SendImage(data)
	return fmt.Errorf("send failed")
}

func (t *failingTransport) SendText(tag, payload string) error {
	t.fakeTransport.SendText(tag, payload)
	return fmt.Errorf("send failed")
}

// manualClock is a Clock advanced by hand.
type manualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *manualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// fakePlayer records scheduled chunks without rendering them.
type fakePlayer struct {
	mu    sync.Mutex
	plays []fakePlay
}

type fakePlay struct {
	data   []byte
	format pcm.Format
	at     time.Duration
	handle *fakeHandle
}

type fakeHandle struct {
	once    sync.Once
	doneCh  chan struct{}
	stopped bool
	mu      sync.Mutex
}

func (h *fakeHandle) Stop() {
	h.once.Do(func() {
		h.mu.Lock()
		h.stopped = true
		h.mu.Unlock()
		close(h.doneCh)
	})
}

func (h *fakeHandle) Done() <-chan struct{} { return h.doneCh }

func (h *fakeHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func (p *fakePlayer) Play(data []byte, format pcm.Format, at time.Duration) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := &fakeHandle{doneCh: make(chan struct{})}
	p.plays = append(p.plays, fakePlay{data: data, format: format, at: at, handle: h})
	return h, nil
}

func (p *fakePlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.plays)
}

func (p *fakePlayer) play(i int) fakePlay {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.plays[i]
}

func newTestSession(t *testing.T, transport *fakeTransport) (*Session, *media.SyntheticProvider) {
	t.Helper()
	provider := &media.SyntheticProvider{}
	sess := NewSession(Config{
		Media: provider,
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			transport.push(&ServerEvent{Type: EventOpened})
			return transport, nil
		}),
		Pose:   pose.Disabled{},
		Player: &fakePlayer{},
		Clock:  &manualClock{},
	})
	return sess, provider
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSession_StartStop(t *testing.T) {
	transport := newFakeTransport()
	sess, _ := newTestSession(t, transport)

	if got := sess.State(); got != StateIdle {
		t.Fatalf("initial state = %v; want idle", got)
	}
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := sess.State(); got != StateActive {
		t.Fatalf("state after Start = %v; want active", got)
	}

	sess.Stop()
	if got := sess.State(); got != StateEnded {
		t.Fatalf("state after Stop = %v; want ended", got)
	}
	if !transport.isClosed() {
		t.Error("transport not closed by Stop")
	}

	// Stop is idempotent.
	sess.Stop()
	sess.Stop()
	if got := sess.State(); got != StateEnded {
		t.Fatalf("state after repeated Stop = %v; want ended", got)
	}
}

func TestSession_StopDuringConnect(t *testing.T) {
	transport := newFakeTransport()
	connected := make(chan struct{})
	release := make(chan struct{})
	sess := NewSession(Config{
		Media: &media.SyntheticProvider{},
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			close(connected)
			<-release
			transport.push(&ServerEvent{Type: EventOpened})
			return transport, nil
		}),
		Player: &fakePlayer{},
		Clock:  &manualClock{},
	})

	startErr := make(chan error, 1)
	go func() { startErr <- sess.Start(context.Background()) }()

	<-connected
	sess.Stop()
	close(release)

	if err := <-startErr; err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := sess.State(); got != StateEnded {
		t.Fatalf("state = %v; want ended", got)
	}
	waitFor(t, "transport closed", transport.isClosed)
	sess.mu.Lock()
	held := sess.transport
	sess.mu.Unlock()
	if held != nil {
		t.Error("session still holds a transport after Stop")
	}
}

func TestSession_DuplicateOpened(t *testing.T) {
	transport := newFakeTransport()
	sess := NewSession(Config{
		Media: &media.SyntheticProvider{},
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			// Some servers re-announce readiness; the second one must not
			// stall the event loop.
			transport.push(&ServerEvent{Type: EventOpened})
			transport.push(&ServerEvent{Type: EventOpened})
			return transport, nil
		}),
		Player: &fakePlayer{},
		Clock:  &manualClock{},
	})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer sess.Stop()

	transport.push(&ServerEvent{Type: EventOutputTranscript, Text: "keep going"})
	transport.push(&ServerEvent{Type: EventTurnComplete})
	waitFor(t, "completed turn", func() bool { return len(sess.Transcript().Turns()) == 1 })
}

func TestSession_VitalsLifecycle(t *testing.T) {
	transport := newFakeTransport()
	vitals := NewSimulatedVitals(rand.NewPCG(7, 7))
	sess := NewSession(Config{
		Media: &media.SyntheticProvider{},
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			transport.push(&ServerEvent{Type: EventOpened})
			return transport, nil
		}),
		Player: &fakePlayer{},
		Clock:  &manualClock{},
		Vitals: vitals,
	})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	// Going active seeds the walk at the workout baseline.
	sess.mu.Lock()
	stats := sess.stats
	sess.mu.Unlock()
	if hr := stats.Current().HeartRate; hr < vitalsBaselineHR-6 || hr > vitalsBaselineHR+6 {
		t.Errorf("heart rate after Start = %d; want near %d", hr, vitalsBaselineHR)
	}

	sess.Stop()

	// Ending the session returns the source to its resting readings.
	if hr := vitals.Sample().HeartRate; hr < vitalsRestingHR-6 || hr > vitalsRestingHR+6 {
		t.Errorf("heart rate after Stop = %d; want near %d", hr, vitalsRestingHR)
	}
}

func TestSession_StartWhileActive(t *testing.T) {
	transport := newFakeTransport()
	connects := 0
	sess := NewSession(Config{
		Media: &media.SyntheticProvider{},
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			connects++
			transport.push(&ServerEvent{Type: EventOpened})
			return transport, nil
		}),
		Player: &fakePlayer{},
		Clock:  &manualClock{},
	})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer sess.Stop()

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("second Start error: %v", err)
	}
	if connects != 1 {
		t.Errorf("connects = %d; want 1", connects)
	}
	if got := sess.State(); got != StateActive {
		t.Errorf("state = %v; want active", got)
	}
}

func TestSession_PermissionDenied(t *testing.T) {
	sess := NewSession(Config{
		Media: media.DeniedProvider{},
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			t.Fatal("connector called despite denied media")
			return nil, nil
		}),
		Player: &fakePlayer{},
		Clock:  &manualClock{},
	})

	err := sess.Start(context.Background())
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Code != CodePermissionDenied {
		t.Fatalf("Start error = %v; want code %s", err, CodePermissionDenied)
	}
	if got := sess.State(); got != StateError {
		t.Errorf("state = %v; want error", got)
	}

	// A failed session can be started again.
	if !sess.State().Terminal() {
		t.Error("error state must permit a new Start")
	}
}

func TestSession_ConnectFailure(t *testing.T) {
	var acquired *media.Stream
	provider := &media.SyntheticProvider{}
	sess := NewSession(Config{
		Media: providerFunc(func(ctx context.Context, c media.Constraints) (*media.Stream, error) {
			s, err := provider.Acquire(ctx, c)
			acquired = s
			return s, err
		}),
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			return nil, fmt.Errorf("refused")
		}),
		Player: &fakePlayer{},
		Clock:  &manualClock{},
	})

	err := sess.Start(context.Background())
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Code != CodeTransportOpen {
		t.Fatalf("Start error = %v; want code %s", err, CodeTransportOpen)
	}
	if !acquired.Stopped() {
		t.Error("media stream not released after connect failure")
	}
	if got := sess.State(); got != StateError {
		t.Errorf("state = %v; want error", got)
	}
}

type providerFunc func(ctx context.Context, c media.Constraints) (*media.Stream, error)

func (f providerFunc) Acquire(ctx context.Context, c media.Constraints) (*media.Stream, error) {
	return f(ctx, c)
}

func TestSession_Transcript(t *testing.T) {
	transport := newFakeTransport()
	sess, _ := newTestSession(t, transport)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer sess.Stop()

	transport.push(&ServerEvent{Type: EventInputTranscript, Text: "how is "})
	transport.push(&ServerEvent{Type: EventInputTranscript, Text: "my form"})
	transport.push(&ServerEvent{Type: EventOutputTranscript, Text: "keep your back straight"})
	transport.push(&ServerEvent{Type: EventTurnComplete})
	// An exchange with no text on either side leaves no trace.
	transport.push(&ServerEvent{Type: EventTurnComplete})

	waitFor(t, "completed turn", func() bool { return len(sess.Transcript().Turns()) == 1 })
	turns := sess.Transcript().Turns()
	if turns[0].UserInput != "how is my form" {
		t.Errorf("UserInput = %q", turns[0].UserInput)
	}
	if turns[0].ModelOutput != "keep your back straight" {
		t.Errorf("ModelOutput = %q", turns[0].ModelOutput)
	}
}

func TestSession_RestartClearsTranscript(t *testing.T) {
	transport := newFakeTransport()
	sess, _ := newTestSession(t, transport)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	transport.push(&ServerEvent{Type: EventOutputTranscript, Text: "nice pace"})
	transport.push(&ServerEvent{Type: EventTurnComplete})
	waitFor(t, "first turn", func() bool { return len(sess.Transcript().Turns()) == 1 })
	sess.Stop()

	// Transcript survives the end of the session.
	if len(sess.Transcript().Turns()) != 1 {
		t.Fatal("transcript cleared by Stop")
	}

	transport2 := newFakeTransport()
	sess2 := sess
	sess2.cfg.Connector = ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
		transport2.push(&ServerEvent{Type: EventOpened})
		return transport2, nil
	})
	if err := sess2.Start(context.Background()); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	defer sess2.Stop()
	if got := len(sess2.Transcript().Turns()); got != 0 {
		t.Errorf("turns after restart = %d; want 0", got)
	}
}

func TestSession_RuntimeError(t *testing.T) {
	transport := newFakeTransport()
	sess, _ := newTestSession(t, transport)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	transport.pushErr(fmt.Errorf("stream reset"))
	waitFor(t, "error state", func() bool { return sess.State() == StateError })

	var cerr *Error
	if !errors.As(sess.Err(), &cerr) || cerr.Code != CodeTransportRuntime {
		t.Fatalf("Err() = %v; want code %s", sess.Err(), CodeTransportRuntime)
	}
}

func TestSession_ServerClosed(t *testing.T) {
	transport := newFakeTransport()
	sess, _ := newTestSession(t, transport)

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	transport.push(&ServerEvent{Type: EventClosed})
	waitFor(t, "ended state", func() bool { return sess.State() == StateEnded })
}

func TestSession_InterruptFlushesPlayback(t *testing.T) {
	transport := newFakeTransport()
	player := &fakePlayer{}
	sess := NewSession(Config{
		Media: &media.SyntheticProvider{},
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			transport.push(&ServerEvent{Type: EventOpened})
			return transport, nil
		}),
		Player: player,
		Clock:  &manualClock{},
	})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer sess.Stop()

	chunk := make([]byte, pcm.L16Mono24K.BytesInDuration(time.Second))
	transport.push(&ServerEvent{Type: EventServerAudio, Audio: chunk, AudioFormat: pcm.L16Mono24K})
	transport.push(&ServerEvent{Type: EventServerAudio, Audio: chunk, AudioFormat: pcm.L16Mono24K})
	waitFor(t, "two scheduled chunks", func() bool { return player.count() == 2 })

	// Chunks are scheduled back to back.
	if p0, p1 := player.play(0), player.play(1); p1.at != p0.at+time.Second {
		t.Errorf("second chunk at %v; want %v", p1.at, p0.at+time.Second)
	}

	transport.push(&ServerEvent{Type: EventInterrupted})
	waitFor(t, "flush", func() bool {
		return player.play(0).handle.isStopped() && player.play(1).handle.isStopped()
	})
}

func TestSession_Recorder(t *testing.T) {
	transport := newFakeTransport()
	var recorded []Summary
	var mu sync.Mutex
	sess := NewSession(Config{
		Media: &media.SyntheticProvider{},
		Connector: ConnectorFunc(func(context.Context, *ConnectConfig) (Transport, error) {
			transport.push(&ServerEvent{Type: EventOpened})
			return transport, nil
		}),
		Player: &fakePlayer{},
		Clock:  &manualClock{},
		Recorder: recorderFunc(func(s Summary) {
			mu.Lock()
			recorded = append(recorded, s)
			mu.Unlock()
		}),
	})

	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	transport.push(&ServerEvent{Type: EventOutputTranscript, Text: "good work"})
	transport.push(&ServerEvent{Type: EventTurnComplete})
	waitFor(t, "turn", func() bool { return len(sess.Transcript().Turns()) == 1 })
	sess.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(recorded) != 1 {
		t.Fatalf("recorded %d summaries; want 1", len(recorded))
	}
	if recorded[0].State != StateEnded {
		t.Errorf("recorded state = %v; want ended", recorded[0].State)
	}
	if len(recorded[0].Turns) != 1 || recorded[0].Turns[0].ModelOutput != "good work" {
		t.Errorf("recorded turns = %+v", recorded[0].Turns)
	}
}

type recorderFunc func(Summary)

func (f recorderFunc) RecordSession(s Summary) { f(s) }
