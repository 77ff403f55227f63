// Package archive exports finished coaching sessions as JSON documents
// to a file store, so workout history can be backed up to local disk or
// an S3-compatible object store.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pulsefit/livecoach/pkg/sessionlog"
)

// FileStore is the storage backend for exported sessions.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading. If the file does not exist,
	// an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating any existing
	// content. The caller must close the returned WriteCloser to flush.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Deleting an absent file is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// Exporter writes session records to a FileStore.
type Exporter struct {
	Store FileStore
}

// Path returns the store path of a session's export document.
func (e *Exporter) Path(id string) string {
	return "sessions/" + id + ".json"
}

// Export writes one record and returns its store path. An existing
// export for the same session is overwritten.
func (e *Exporter) Export(ctx context.Context, rec *sessionlog.Record) (string, error) {
	path := e.Path(rec.ID)
	w, err := e.Store.Write(ctx, path)
	if err != nil {
		return "", fmt.Errorf("archive: open %s: %w", path, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		w.Close()
		return "", fmt.Errorf("archive: encode %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("archive: flush %s: %w", path, err)
	}
	return path, nil
}

// ExportAll writes every record in the log and returns the number of
// sessions exported.
func (e *Exporter) ExportAll(ctx context.Context, log *sessionlog.Log) (int, error) {
	n := 0
	for rec, err := range log.List(ctx) {
		if err != nil {
			return n, err
		}
		if _, err := e.Export(ctx, rec); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Load reads one exported record back from the store.
func (e *Exporter) Load(ctx context.Context, id string) (*sessionlog.Record, error) {
	r, err := e.Store.Read(ctx, e.Path(id))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var rec sessionlog.Record
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("archive: decode %s: %w", id, err)
	}
	return &rec, nil
}
