// ABOUTME: Error taxonomy shared by the local store, cloud store, sync engine, and usage limiter
// ABOUTME: Typed errors match sentinel kinds through errors.Is so callers can branch on cause
package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrAccessDenied     = errors.New("access denied")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrQuotaExceeded    = errors.New("quota exceeded")
)

// ValidationError reports a bad field value on an entity.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a referenced map or stakeholder that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AccessDeniedError reports an attempt to write a cloud entity owned by someone else.
type AccessDeniedError struct {
	Kind   string
	ID     string
	UserID string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("%s %s is not owned by %s", e.Kind, e.ID, e.UserID)
}

func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// StoreError wraps a storage or network failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store unavailable during %s", e.Op)
	}
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// QuotaExceededError reports a metered call denied by the weekly limit.
type QuotaExceededError struct {
	Limit     int
	Usage     int
	ResetDate time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("weekly limit of %d calls reached (%d used), resets %s",
		e.Limit, e.Usage, e.ResetDate.Format(time.RFC3339))
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// WrapStoreError wraps err as a StoreError unless it already carries a
// more specific kind from the taxonomy.
func WrapStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
