package store

import (
	"errors"
	"fmt"
)

// StoreError reports a failed call to a store backend: network, auth or a response
// that could not be understood. Callers must not assume any part of the call succeeded.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("store %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Wrap turns err into a *StoreError for op. Validation and version errors pass through
// untouched so handlers can still tell them apart.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) || isDomainError(err) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err came from a failed backend call.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrVersionConflict,
		ErrInvalidLocale,
		ErrSectionMissing,
		ErrInvalidImageType,
		ErrInvalidImageNumber,
		ErrInvalidGalleryCase,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
