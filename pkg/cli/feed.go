package cli

import (
	"strings"
	"sync"
)

// Feed is a bounded line buffer for a Frame section: it keeps the last
// maxLines lines written and hands out a snapshot for rendering. It
// implements io.Writer so it can sit behind a slog handler.
type Feed struct {
	mu       sync.Mutex
	lines    []string
	maxLines int
}

// NewFeed creates a Feed keeping at most maxLines lines.
func NewFeed(maxLines int) *Feed {
	if maxLines <= 0 {
		maxLines = 100
	}
	return &Feed{maxLines: maxLines}
}

// Add appends one line.
func (f *Feed) Add(line string) {
	f.mu.Lock()
	f.lines = append(f.lines, line)
	if len(f.lines) > f.maxLines {
		f.lines = f.lines[len(f.lines)-f.maxLines:]
	}
	f.mu.Unlock()
}

// SetLast replaces the most recent line, adding one if the feed is
// empty. Used for in-place transcription deltas.
func (f *Feed) SetLast(line string) {
	f.mu.Lock()
	if len(f.lines) == 0 {
		f.lines = append(f.lines, line)
	} else {
		f.lines[len(f.lines)-1] = line
	}
	f.mu.Unlock()
}

// Lines returns a snapshot of the buffered lines.
func (f *Feed) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lines))
	copy(out, f.lines)
	return out
}

// Write implements io.Writer, splitting multi-line input.
func (f *Feed) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for _, line := range strings.Split(text, "\n") {
		f.Add(line)
	}
	return len(p), nil
}
