package sessionlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pulsefit/livecoach/pkg/coach"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory error: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLog_PutGet(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	rec := &Record{
		ID:        "abc",
		StartedAt: time.Unix(1000, 0).UTC(),
		EndedAt:   time.Unix(1600, 0).UTC(),
		Status:    "ended",
		Turns: []coach.Turn{
			{UserInput: "check my form", ModelOutput: "widen your stance"},
		},
		PeakHeartRate: 162,
		AvgHeartRate:  121,
	}
	if err := l.Put(ctx, rec); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := l.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != "ended" || got.PeakHeartRate != 162 || len(got.Turns) != 1 {
		t.Errorf("Get = %+v", got)
	}
	if !got.StartedAt.Equal(rec.StartedAt) {
		t.Errorf("StartedAt = %v; want %v", got.StartedAt, rec.StartedAt)
	}
	if got.Duration() != 10*time.Minute {
		t.Errorf("Duration = %v; want 10m", got.Duration())
	}

	if _, err := l.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing = %v; want ErrNotFound", err)
	}
}

func TestLog_PutRequiresID(t *testing.T) {
	l := openTestLog(t)
	if err := l.Put(context.Background(), &Record{}); err == nil {
		t.Fatal("Put without ID succeeded")
	}
}

func TestLog_ListNewestFirst(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	base := time.Unix(5000, 0).UTC()
	for i := 0; i < 3; i++ {
		rec := &Record{
			ID:        fmt.Sprintf("rec-%d", i),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			Status:    "ended",
		}
		if err := l.Put(ctx, rec); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}

	var ids []string
	for rec, err := range l.List(ctx) {
		if err != nil {
			t.Fatalf("List error: %v", err)
		}
		ids = append(ids, rec.ID)
	}
	want := []string{"rec-2", "rec-1", "rec-0"}
	if len(ids) != len(want) {
		t.Fatalf("List = %v; want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("List = %v; want %v", ids, want)
		}
	}
}

func TestLog_Delete(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	l.Put(ctx, &Record{ID: "gone", Status: "ended"})
	if err := l.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := l.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v; want ErrNotFound", err)
	}
	if err := l.Delete(ctx, "gone"); err != nil {
		t.Errorf("repeat Delete error: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	l := openTestLog(t)

	rec := &Recorder{Log: l}
	rec.RecordSession(coach.Summary{
		StartedAt:     time.Unix(100, 0),
		EndedAt:       time.Unix(400, 0),
		State:         coach.StateEnded,
		Turns:         []coach.Turn{{ModelOutput: "good pace"}},
		PeakHeartRate: 150,
		AvgHeartRate:  118,
	})

	var records []*Record
	for r, err := range l.List(context.Background()) {
		if err != nil {
			t.Fatalf("List error: %v", err)
		}
		records = append(records, r)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d; want 1", len(records))
	}
	if records[0].ID == "" {
		t.Error("recorded session has no ID")
	}
	if records[0].Status != "ended" || records[0].PeakHeartRate != 150 {
		t.Errorf("record = %+v", records[0])
	}
}

func TestFromSummary_Error(t *testing.T) {
	rec := FromSummary(coach.Summary{
		State: coach.StateError,
		Err:   &coach.Error{Code: coach.CodeTransportRuntime, Message: "stream reset"},
	})
	if rec.Status != "error" {
		t.Errorf("Status = %q; want error", rec.Status)
	}
	if rec.Error == "" {
		t.Error("Error field empty")
	}
}
