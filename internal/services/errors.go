// Package services defines the business logic for time zone selections and
// the per-user read model. This file centralizes service-level error values
// so that they can be returned consistently and checked with errors.Is/As.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownZone is returned when a zone id is not in the catalog.
	ErrUnknownZone = errors.New("unknown zone")

	// ErrSelectionNotFound indicates the user has not selected the zone.
	ErrSelectionNotFound = errors.New("selection not found")

	// ErrStorage marks persistence failures. The operation had no effect and
	// may be retried.
	ErrStorage = errors.New("storage unavailable")

	// ErrIntegrity marks selections that reference zones missing from the
	// catalog.
	ErrIntegrity = errors.New("selection references unknown zone")
)

// StorageError wraps a persistence failure for one operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrStorage and the underlying cause.
func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// Retryable reports that the operation can safely be attempted again.
func (e *StorageError) Retryable() bool { return true }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// IntegrityError lists a user's selections whose zones are not in the
// current catalog.
type IntegrityError struct {
	UserID  string
	ZoneIDs []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("user %s: %v: %s", e.UserID, ErrIntegrity, strings.Join(e.ZoneIDs, ", "))
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }
