package sessionlog

import (
	"context"
	"log/slog"

	"github.com/pulsefit/livecoach/pkg/coach"
)

// Recorder persists session summaries into a Log. It implements
// coach.Recorder; persistence failures are logged, never surfaced into
// the session teardown path.
type Recorder struct {
	Log    *Log
	Logger *slog.Logger
}

// RecordSession implements coach.Recorder.
func (r *Recorder) RecordSession(s coach.Summary) {
	rec := FromSummary(s)
	if err := r.Log.Put(context.Background(), rec); err != nil {
		log := r.Logger
		if log == nil {
			log = slog.Default()
		}
		log.Error("session record failed", "id", rec.ID, "err", err)
		return
	}
}

var _ coach.Recorder = (*Recorder)(nil)
