package coach

import (
	"io"
	"sync"
	"time"

	"github.com/pulsefit/livecoach/pkg/audio/pcm"
)

// Clock reads the playback timeline. Implementations return the elapsed
// time on a monotonically advancing audio clock.
type Clock interface {
	Now() time.Duration
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Duration

// Now implements Clock.
func (f ClockFunc) Now() time.Duration { return f() }

// WallClock is a Clock backed by the wall clock, anchored at creation.
type WallClock struct {
	start time.Time
}

// NewWallClock returns a WallClock anchored at the current time.
func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

// Now implements Clock.
func (c *WallClock) Now() time.Duration { return time.Since(c.start) }

// Handle is one chunk of audio in flight on a Player.
type Handle interface {
	// Stop cancels the chunk. Safe to call after the chunk finished.
	Stop()

	// Done is closed when the chunk finished playing or was stopped.
	Done() <-chan struct{}
}

// Player renders PCM chunks at scheduled offsets on its clock.
type Player interface {
	// Play schedules data to start at offset at on the player's clock. An
	// offset at or before the current clock reading starts immediately.
	Play(data []byte, format pcm.Format, at time.Duration) (Handle, error)
}

// Scheduler queues model speech chunks back to back so playback is
// gapless: each chunk starts exactly when the previous one ends, or
// immediately when the queue has drained.
type Scheduler struct {
	clock  Clock
	player Player

	mu        sync.Mutex
	nextStart time.Duration
	live      map[Handle]struct{}
}

// NewScheduler returns a Scheduler playing through player on clock.
func NewScheduler(clock Clock, player Player) *Scheduler {
	return &Scheduler{
		clock:  clock,
		player: player,
		live:   make(map[Handle]struct{}),
	}
}

// Enqueue schedules one chunk after everything already queued and
// returns its start offset. The cursor never points into the past: if
// the queue drained, the chunk starts now.
func (s *Scheduler) Enqueue(data []byte, format pcm.Format) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.nextStart
	if now := s.clock.Now(); start < now {
		start = now
	}

	h, err := s.player.Play(data, format, start)
	if err != nil {
		return 0, err
	}
	s.nextStart = start + format.Duration(int64(len(data)))
	s.live[h] = struct{}{}
	go func() {
		<-h.Done()
		s.mu.Lock()
		delete(s.live, h)
		s.mu.Unlock()
	}()
	return start, nil
}

// Flush stops every chunk still scheduled or playing and rewinds the
// cursor, so the next Enqueue starts immediately. Used on interruption
// and on teardown.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	handles := make([]Handle, 0, len(s.live))
	for h := range s.live {
		handles = append(handles, h)
	}
	s.live = make(map[Handle]struct{})
	s.nextStart = 0
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Pending returns the number of chunks scheduled or playing.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// WriterPlayer is a Player that renders chunks to an io.Writer in real
// time, sleeping until each chunk's scheduled start. It backs headless
// and file-output playback.
type WriterPlayer struct {
	w     io.Writer
	clock Clock

	mu sync.Mutex
	// written is how far into the timeline the output covers, used to
	// pad idle stretches with silence.
	written time.Duration
}

// NewWriterPlayer returns a WriterPlayer writing PCM to w.
func NewWriterPlayer(w io.Writer) *WriterPlayer {
	return &WriterPlayer{w: w, clock: NewWallClock()}
}

// Clock returns the player's playback clock.
func (p *WriterPlayer) Clock() Clock { return p.clock }

// Play implements Player.
func (p *WriterPlayer) Play(data []byte, format pcm.Format, at time.Duration) (Handle, error) {
	h := &writerHandle{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go func() {
		defer close(h.doneCh)
		gap := at - p.clock.Now()
		if gap > 0 {
			select {
			case <-time.After(gap):
			case <-h.stopCh:
				return
			}
		}
		select {
		case <-h.stopCh:
			return
		default:
		}
		p.mu.Lock()
		if pad := at - p.written; pad > 0 {
			// Pad idle time so the written PCM stays a continuous
			// timeline.
			format.SilenceChunk(pad).WriteTo(p.w)
			p.written = at
		}
		format.DataChunk(data).WriteTo(p.w)
		p.written += format.Duration(int64(len(data)))
		p.mu.Unlock()
		// Occupy the timeline for the chunk's duration so Done tracks
		// real playback, not write completion.
		select {
		case <-time.After(format.Duration(int64(len(data)))):
		case <-h.stopCh:
		}
	}()
	return h, nil
}

type writerHandle struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func (h *writerHandle) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *writerHandle) Done() <-chan struct{} { return h.doneCh }
