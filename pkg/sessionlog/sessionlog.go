// Package sessionlog persists finished coaching sessions in a local
// BadgerDB store so past workouts survive restarts and can be listed,
// inspected and exported.
package sessionlog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pulsefit/livecoach/pkg/coach"
)

// ErrNotFound is returned when a session record does not exist.
var ErrNotFound = errors.New("sessionlog: not found")

// Record is one persisted session.
type Record struct {
	ID        string       `json:"id" msgpack:"id"`
	StartedAt time.Time    `json:"startedAt" msgpack:"started_at"`
	EndedAt   time.Time    `json:"endedAt" msgpack:"ended_at"`
	Status    string       `json:"status" msgpack:"status"`
	Error     string       `json:"error,omitempty" msgpack:"error,omitempty"`
	Turns     []coach.Turn `json:"turns" msgpack:"turns"`

	PeakHeartRate int `json:"peakHeartRate" msgpack:"peak_heart_rate"`
	AvgHeartRate  int `json:"avgHeartRate" msgpack:"avg_heart_rate"`
}

// Duration returns the session length.
func (r *Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// FromSummary builds a Record with a fresh ID from a session summary.
func FromSummary(s coach.Summary) *Record {
	rec := &Record{
		ID:            uuid.NewString(),
		StartedAt:     s.StartedAt,
		EndedAt:       s.EndedAt,
		Status:        s.State.String(),
		Turns:         s.Turns,
		PeakHeartRate: s.PeakHeartRate,
		AvgHeartRate:  s.AvgHeartRate,
	}
	if s.Err != nil {
		rec.Error = s.Err.Error()
	}
	return rec
}

var recordPrefix = []byte("session:")

// Log is a session store backed by BadgerDB.
type Log struct {
	db *badger.DB
}

// Open opens (creating if needed) a session log in dir.
func Open(dir string) (*Log, error) {
	opts := badger.DefaultOptions(dir).WithLogger(quietLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: open %s: %w", dir, err)
	}
	return &Log{db: db}, nil
}

// OpenInMemory opens a session log with no disk persistence.
func OpenInMemory() (*Log, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(quietLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: open in-memory: %w", err)
	}
	return &Log{db: db}, nil
}

// Put stores a record, overwriting any record with the same ID.
func (l *Log) Put(_ context.Context, rec *Record) error {
	if rec.ID == "" {
		return errors.New("sessionlog: record has no ID")
	}
	val, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sessionlog: encode %s: %w", rec.ID, err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.ID), val)
	})
}

// Get retrieves a record by ID.
func (l *Log) Get(_ context.Context, id string) (*Record, error) {
	var rec Record
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record. Deleting an absent record is not an error.
func (l *Log) Delete(_ context.Context, id string) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(id))
	})
}

// List iterates over all records, most recent first.
func (l *Log) List(_ context.Context) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		var records []*Record
		err := l.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = recordPrefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(recordPrefix); it.ValidForPrefix(recordPrefix); it.Next() {
				var rec Record
				err := it.Item().Value(func(val []byte) error {
					return msgpack.Unmarshal(val, &rec)
				})
				if err != nil {
					return err
				}
				records = append(records, &rec)
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
			return
		}
		sort.Slice(records, func(i, j int) bool {
			return records[i].StartedAt.After(records[j].StartedAt)
		})
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// Close releases the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

func recordKey(id string) []byte {
	return append(append([]byte(nil), recordPrefix...), id...)
}

// quietLogger suppresses badger's info and debug chatter.
type quietLogger struct{}

func (quietLogger) Errorf(f string, v ...interface{})   { log.Printf("[badger] ERROR: "+f, v...) }
func (quietLogger) Warningf(f string, v ...interface{}) { log.Printf("[badger] WARN: "+f, v...) }
func (quietLogger) Infof(string, ...interface{})        {}
func (quietLogger) Debugf(string, ...interface{})       {}
