package coach

import "sync"

// Turn is one completed user/model exchange.
type Turn struct {
	UserInput   string `json:"userInput"`
	ModelOutput string `json:"modelOutput"`
}

// Transcript accumulates transcription deltas and completed turns. It
// is append-only for the lifetime of a session and cleared only when a
// new session starts.
type Transcript struct {
	mu      sync.Mutex
	turns   []Turn
	current Turn
}

// AddUserDelta appends a delta of the user's speech transcription to
// the turn in progress.
func (t *Transcript) AddUserDelta(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.UserInput += text
}

// AddModelDelta appends a delta of the model's speech transcription to
// the turn in progress.
func (t *Transcript) AddModelDelta(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current.ModelOutput += text
}

// CompleteTurn closes the turn in progress. Empty turns, where neither
// side produced text, are discarded.
func (t *Transcript) CompleteTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current.UserInput != "" || t.current.ModelOutput != "" {
		t.turns = append(t.turns, t.current)
	}
	t.current = Turn{}
}

// Turns returns a copy of the completed turns.
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Partial returns the turn in progress.
func (t *Transcript) Partial() Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Reset discards all turns and the turn in progress.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
	t.current = Turn{}
}
