package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate is reported when a SKU or QR code is already reserved.
	ErrDuplicate     = fmt.Errorf("%w: sku or qr code already in use", ErrValidation)
	ErrStorage       = errors.New("storage failure")
	ErrCorruptBackup = errors.New("corrupt backup")
	ErrPartialImport = errors.New("partial import")
)

// StorageError wraps an underlying storage engine or I/O error.
// errors.Is(err, ErrStorage) holds for every StorageError.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage returns a *StorageError for op, or nil if err is nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
