package filestore

import (
	"context"
	"io"
	"time"
)

// FileStore reads and writes the file artifacts produced by backups and
// spreadsheet exports.
type FileStore interface {
	// Write replaces path with whatever fn writes. Readers never observe a
	// partially written file.
	Write(ctx context.Context, path string, fn func(w io.Writer) error) error
	// Open returns domain.ErrNotFound if path does not exist.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// List returns the regular files in dir whose name contains substr,
	// newest first. A missing dir yields an empty list.
	List(ctx context.Context, dir, substr string) ([]Entry, error)
}

type Entry struct {
	Name      string
	Path      string
	Size      int64
	CreatedAt time.Time
}
