package coach

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pulsefit/livecoach/pkg/media"
	"github.com/pulsefit/livecoach/pkg/pose"
)

// Summary is the record of a finished session handed to a Recorder.
type Summary struct {
	StartedAt time.Time
	EndedAt   time.Time
	State     State
	Err       error
	Turns     []Turn

	// PeakHeartRate and AvgHeartRate summarize the telemetry sent during
	// the session. Zero when no sample was taken.
	PeakHeartRate int
	AvgHeartRate  int
}

// vitalsStats wraps a Vitals source, keeps the latest reading for the
// frame pipeline to snapshot, and aggregates what it produced.
type vitalsStats struct {
	Vitals

	mu     sync.Mutex
	latest Telemetry
	peak   int
	sum    int
	count  int
}

func (v *vitalsStats) Sample() Telemetry {
	t := v.Vitals.Sample()
	v.mu.Lock()
	v.latest = t
	if t.HeartRate > v.peak {
		v.peak = t.HeartRate
	}
	v.sum += t.HeartRate
	v.count++
	v.mu.Unlock()
	return t
}

// Current returns the most recent reading without advancing the walk.
func (v *vitalsStats) Current() Telemetry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest
}

func (v *vitalsStats) stats() (peak, avg int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.count == 0 {
		return 0, 0
	}
	return v.peak, v.sum / v.count
}

// Recorder persists finished sessions.
type Recorder interface {
	RecordSession(summary Summary)
}

// Config configures a Session. Media, Connector and Player are
// required; the rest default to sensible implementations.
type Config struct {
	// Media acquires the microphone and camera.
	Media media.Provider

	// Constraints override the default capture configuration.
	Constraints *media.Constraints

	// Connector opens the streaming connection.
	Connector Connector

	// Connect configures the connection (model, persona).
	Connect ConnectConfig

	// Pose detects body landmarks on camera frames. Defaults to
	// pose.Disabled.
	Pose pose.Estimator

	// Vitals produces physiological telemetry. Defaults to a fresh
	// SimulatedVitals.
	Vitals Vitals

	// Player renders model speech.
	Player Player

	// Clock is the playback timeline. Defaults to the Player's clock when
	// it is a *WriterPlayer, otherwise a wall clock.
	Clock Clock

	// Recorder, if set, receives a Summary when the session ends.
	Recorder Recorder

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// OnStateChange, if set, observes every state transition.
	OnStateChange func(State)
}

// Session is one live coaching session. A Session is reusable: after it
// reaches Ended or Error it can be started again, which clears the
// previous transcript.
type Session struct {
	cfg        Config
	log        *slog.Logger
	transcript Transcript
	vitals     Vitals

	mu        sync.Mutex
	state     State
	lastErr   error
	startedAt time.Time
	stream    *media.Stream
	transport Transport
	scheduler *Scheduler
	stopCh    chan struct{}
	stopOnce  *sync.Once
	stats     *vitalsStats
}

// NewSession returns an idle Session.
func NewSession(cfg Config) *Session {
	if cfg.Pose == nil {
		cfg.Pose = pose.Disabled{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		if wp, ok := cfg.Player.(*WriterPlayer); ok {
			cfg.Clock = wp.Clock()
		} else {
			cfg.Clock = NewWallClock()
		}
	}
	vitals := cfg.Vitals
	if vitals == nil {
		vitals = NewSimulatedVitals(nil)
	}
	return &Session{
		cfg:    cfg,
		log:    cfg.Logger,
		vitals: vitals,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the fatal error of the last run, if the session is in
// StateError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Transcript returns the session transcript. It is cleared on Start and
// stays readable after the session ends.
func (s *Session) Transcript() *Transcript {
	return &s.transcript
}

// Start acquires media, connects the transport and launches the
// streaming pipelines. It returns once the connection handshake
// completed, or with a typed *Error on any setup failure. Starting a
// session that is already preparing, connecting or active does nothing.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if !s.state.Terminal() {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StatePreparing)
	s.lastErr = nil
	s.startedAt = time.Now()
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.stopOnce = &sync.Once{}
	stats := &vitalsStats{Vitals: s.vitals}
	s.stats = stats
	s.mu.Unlock()

	s.transcript.Reset()

	constraints := media.DefaultConstraints()
	if s.cfg.Constraints != nil {
		constraints = *s.cfg.Constraints
	}

	stream, err := s.cfg.Media.Acquire(ctx, constraints)
	if err != nil {
		code := CodeDeviceFailure
		if errors.Is(err, media.ErrPermissionDenied) {
			code = CodePermissionDenied
		}
		return s.fail(newError(code, err))
	}
	s.mu.Lock()
	s.stream = stream
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()

	transport, err := s.cfg.Connector.Connect(ctx, &s.cfg.Connect)
	if err != nil {
		stream.Stop()
		return s.fail(newError(CodeTransportOpen, err))
	}

	scheduler := NewScheduler(s.cfg.Clock, s.cfg.Player)
	s.mu.Lock()
	if s.state != StateConnecting {
		// Stop raced the connect; teardown already ran with no transport
		// to close, so this handle is ours to release.
		s.mu.Unlock()
		if err := transport.Close(); err != nil {
			s.log.Warn("transport close failed", "err", err)
		}
		return nil
	}
	s.transport = transport
	s.scheduler = scheduler
	s.mu.Unlock()

	opened := make(chan error, 1)
	go s.eventLoop(transport, scheduler, opened, stopCh)

	select {
	case err := <-opened:
		if err != nil {
			s.teardown(StateError, newError(CodeTransportOpen, err))
			return s.Err()
		}
	case <-ctx.Done():
		s.teardown(StateEnded, nil)
		return ctx.Err()
	case <-stopCh:
		return nil
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Torn down between the handshake and here; stay terminal.
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateActive)
	s.mu.Unlock()

	// The session just went active: seed workout vitals and take the
	// first reading for the frame pipeline.
	stats.Begin()
	stats.Sample()

	go pumpAudio(stream.Mic, transport, stopCh, s.log)
	go pumpFrames(ctx, stream.Camera, s.cfg.Pose, stats, transport, stopCh, s.log)
	go advanceVitals(stats, stopCh)

	s.log.Info("session active", "model", s.cfg.Connect.Model)
	return nil
}

// Stop ends the session and releases every acquired resource. It is
// safe to call from any state, any number of times.
func (s *Session) Stop() {
	s.teardown(StateEnded, nil)
}

// eventLoop consumes server events until the transport closes or fails.
func (s *Session) eventLoop(transport Transport, scheduler *Scheduler, opened chan<- error, stopCh <-chan struct{}) {
	handshook := false
	for ev, err := range transport.Events() {
		if err != nil {
			if !handshook {
				opened <- err
				return
			}
			select {
			case <-stopCh:
			default:
				s.teardown(StateError, newError(CodeTransportRuntime, err))
			}
			return
		}

		switch ev.Type {
		case EventOpened:
			if !handshook {
				handshook = true
				opened <- nil
			}
		case EventServerAudio:
			if _, err := scheduler.Enqueue(ev.Audio, ev.AudioFormat); err != nil {
				// A chunk that cannot play is dropped; the stream goes on.
				s.log.Warn("playback enqueue failed", "err", err)
			}
		case EventInputTranscript:
			s.transcript.AddUserDelta(ev.Text)
		case EventOutputTranscript:
			s.transcript.AddModelDelta(ev.Text)
		case EventTurnComplete:
			s.transcript.CompleteTurn()
		case EventInterrupted:
			scheduler.Flush()
		case EventClosed:
			s.teardown(StateEnded, nil)
			return
		}
	}

	select {
	case <-stopCh:
	default:
		s.teardown(StateEnded, nil)
	}
}

// fail tears the session down after a setup failure and returns the
// typed error for the caller.
func (s *Session) fail(err *Error) error {
	s.teardown(StateError, err)
	return err
}

// teardown releases everything exactly once per run and records the
// terminal state.
func (s *Session) teardown(final State, fatal *Error) {
	s.mu.Lock()
	once := s.stopOnce
	s.mu.Unlock()
	if once == nil {
		return
	}

	once.Do(func() {
		s.mu.Lock()
		stopCh := s.stopCh
		transport := s.transport
		stream := s.stream
		scheduler := s.scheduler
		s.transport = nil
		s.stream = nil
		s.scheduler = nil
		if fatal != nil {
			s.lastErr = fatal
			s.setStateLocked(StateError)
		} else {
			s.setStateLocked(final)
		}
		startedAt := s.startedAt
		stats := s.stats
		s.mu.Unlock()

		if stopCh != nil {
			close(stopCh)
		}
		if transport != nil {
			if err := transport.Close(); err != nil {
				s.log.Warn("transport close failed", "err", err)
			}
		}
		if stream != nil {
			stream.Stop()
		}
		if scheduler != nil {
			scheduler.Flush()
		}
		s.vitals.Reset()

		if fatal != nil {
			s.log.Error("session terminated", "code", fatal.Code, "err", fatal.Cause)
		} else {
			s.log.Info("session ended")
		}

		if s.cfg.Recorder != nil {
			var recErr error
			if fatal != nil {
				recErr = fatal
			}
			var peak, avg int
			if stats != nil {
				peak, avg = stats.stats()
			}
			s.cfg.Recorder.RecordSession(Summary{
				StartedAt:     startedAt,
				EndedAt:       time.Now(),
				State:         s.State(),
				Err:           recErr,
				Turns:         s.transcript.Turns(),
				PeakHeartRate: peak,
				AvgHeartRate:  avg,
			})
		}
	})
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(state)
	}
}
