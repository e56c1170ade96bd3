// Package backup writes and reads point-in-time snapshots and spreadsheet
// (CSV) interchange files for the inventory.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/invtrack/internal/domain"
	"github.com/vbonduro/invtrack/internal/filestore"
)

// FileMarker appears in the name of every snapshot file this package writes
// and is what GetBackupFiles looks for.
const FileMarker = "backup"

type itemStore interface {
	GetAll(ctx context.Context) ([]*domain.Item, error)
	ReplaceAll(ctx context.Context, items []*domain.Item) (int, error)
}

type itemImporter interface {
	ImportItem(ctx context.Context, actor string, item *domain.Item, source string) (*domain.Item, error)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

type Manager struct {
	items    itemStore
	importer itemImporter
	files    filestore.FileStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(items itemStore, importer itemImporter, files filestore.FileStore, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		items:    items,
		importer: importer,
		files:    files,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type RestoreResult struct {
	Restored     int
	SafetyBackup string
}

type RowError struct {
	Line   int
	Reason string
}

type ImportResult struct {
	Succeeded    int
	Failed       int
	Errors       []RowError
	SafetyBackup string
}

func (r *ImportResult) Message() string {
	if r.Failed == 0 {
		return fmt.Sprintf("imported %d items", r.Succeeded)
	}
	return fmt.Sprintf("imported %d items, %d rows failed", r.Succeeded, r.Failed)
}

// Err reports rejected rows as domain.ErrPartialImport. It is informational;
// the import itself completed.
func (r *ImportResult) Err() error {
	if r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d rows rejected", domain.ErrPartialImport, r.Failed, r.Succeeded+r.Failed)
}

// CreateBackup writes a snapshot of every active item to path, replacing any
// existing file, and returns the number of items written.
func (m *Manager) CreateBackup(ctx context.Context, path string) (int, error) {
	items, err := m.items.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load items: %w", err)
	}
	if err := m.writeSnapshot(ctx, path, items); err != nil {
		return 0, err
	}
	m.logger.Info("backup created", "path", path, "items", len(items))
	return len(items), nil
}

// RestoreBackup replaces the whole record store with the items in the
// snapshot at path. A safety snapshot of the current state is written next to
// path first. Items get new ids and history is left as is.
func (m *Manager) RestoreBackup(ctx context.Context, path string) (*RestoreResult, error) {
	r, err := m.files.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	items, err := decodeSnapshot(r)
	if cerr := r.Close(); cerr != nil {
		m.logger.Error("failed to close backup file", "path", path, "error", cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup %s: %w", path, err)
	}

	safety, err := m.writeSafetySnapshot(ctx, path, "pre_restore")
	if err != nil {
		return nil, err
	}

	n, err := m.items.ReplaceAll(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("failed to restore backup %s: %w", path, err)
	}
	m.logger.Info("backup restored", "path", path, "items", n, "safety_backup", safety)
	return &RestoreResult{Restored: n, SafetyBackup: safety}, nil
}

// ExportToCSV writes every active item to path and returns how many were written.
func (m *Manager) ExportToCSV(ctx context.Context, path string) (int, error) {
	items, err := m.items.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load items: %w", err)
	}
	err = m.files.Write(ctx, path, func(w io.Writer) error {
		return writeCSV(w, items)
	})
	if err != nil {
		return 0, domain.Storage("export csv", err)
	}
	m.logger.Info("csv exported", "path", path, "items", len(items))
	return len(items), nil
}

// ImportFromCSV inserts every well-formed row of the CSV file at path on
// behalf of actor. Rows are independent: a rejected row is tallied in the
// result and the import carries on. The returned error is non-nil only when
// the file itself cannot be used.
func (m *Manager) ImportFromCSV(ctx context.Context, actor, path string) (*ImportResult, error) {
	r, err := m.files.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	lines, err := readLines(r)
	if cerr := r.Close(); cerr != nil {
		m.logger.Error("failed to close csv file", "path", path, "error", cerr)
	}
	if err != nil {
		return nil, domain.Storage("read csv", err)
	}
	if countNonBlank(lines) < 2 {
		return nil, fmt.Errorf("%w: %s needs a header and at least one data row", domain.ErrValidation, path)
	}

	safety, err := m.writeSafetySnapshot(ctx, path, "pre_import")
	if err != nil {
		return nil, err
	}

	result := &ImportResult{SafetyBackup: safety}
	source := filepath.Base(path)
	header, _ := nextRecord(lines, 0)
	for i := header.next; ; {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rec, ok := nextRecord(lines, i)
		if !ok {
			break
		}
		item, err := parseRow(rec.text, m.now())
		if err != nil && rec.multiLine() && isMalformed(err) {
			// A stray quote must not take the following rows with it.
			rec = singleLine(lines, rec)
			item, err = parseRow(rec.text, m.now())
		}
		i = rec.next

		if err == nil {
			_, err = m.importer.ImportItem(ctx, actor, item, source)
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, RowError{Line: rec.line, Reason: err.Error()})
			m.logger.Warn("csv row rejected", "path", path, "line", rec.line, "error", err)
			continue
		}
		result.Succeeded++
	}

	m.logger.Info("csv imported", "path", path, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// GetBackupFiles lists the snapshot files in dir, newest first.
func (m *Manager) GetBackupFiles(ctx context.Context, dir string) ([]filestore.Entry, error) {
	return m.files.List(ctx, dir, FileMarker)
}

func (m *Manager) writeSnapshot(ctx context.Context, path string, items []*domain.Item) error {
	snap := &snapshot{
		BackupID:   uuid.NewString(),
		BackupDate: formatDate(m.now()),
		Version:    snapshotVersion,
		Items:      make([]snapshotItem, 0, len(items)),
	}
	for _, item := range items {
		snap.Items = append(snap.Items, toSnapshotItem(item))
	}

	err := m.files.Write(ctx, path, func(w io.Writer) error {
		return encodeSnapshot(w, snap)
	})
	if err != nil {
		return domain.Storage("write backup", err)
	}
	return nil
}

func (m *Manager) writeSafetySnapshot(ctx context.Context, target, reason string) (string, error) {
	items, err := m.items.GetAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load items: %w", err)
	}
	path := safetySnapshotPath(target, reason, m.now())
	if err := m.writeSnapshot(ctx, path, items); err != nil {
		return "", fmt.Errorf("failed to write safety backup: %w", err)
	}
	return path, nil
}

func safetySnapshotPath(target, reason string, now time.Time) string {
	name := fmt.Sprintf("inventory_%s_%s_%s_%03d.json",
		FileMarker, reason, now.Format("20060102_150405"), now.Nanosecond()/int(time.Millisecond))
	return filepath.Join(filepath.Dir(target), strings.ToLower(name))
}
