package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vbonduro/invtrack/internal/domain"
	"github.com/vbonduro/invtrack/internal/filestore"
)

type LocalFileStore struct {
	perm os.FileMode
}

func NewLocalFileStore() *LocalFileStore {
	return &LocalFileStore{perm: 0o644}
}

// Write creates the parent directory if needed, writes to a temporary file
// next to path and renames it into place.
func (s *LocalFileStore) Write(ctx context.Context, path string, fn func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := f.Name()

	if err := fn(f); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(tmpPath); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(tmpPath); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmpPath, s.perm); err != nil {
		slog.Warn("failed to set file permissions", "path", tmpPath, "error", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if rerr := os.Remove(tmpPath); rerr != nil {
			slog.Error("failed to remove file after rename error", "error", rerr)
		}
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

func (s *LocalFileStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *LocalFileStore) List(ctx context.Context, dir, substr string) ([]filestore.Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []filestore.Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	needle := strings.ToLower(substr)
	out := []filestore.Entry{}
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !strings.Contains(strings.ToLower(e.Name()), needle) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, filestore.Entry{
			Name:      e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	slices.SortFunc(out, func(a, b filestore.Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Name, a.Name)
	})
	return out, nil
}
