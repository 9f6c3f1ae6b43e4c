package ledger

import (
	"errors"
	"fmt"
)

// Store sentinels. Store implementations wrap these so the engine can
// classify failures.
var (
	ErrNotFound            = errors.New("record not found")
	ErrConstraintViolation = errors.New("database constraint violation")
)

// ValidationError is returned before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing account or a transaction that is not live.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// StorageError wraps a persistence failure. It is never retried here.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// lookupErr turns a store read failure into NotFoundError or StorageError.
func lookupErr(op, resource, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return storageErr(op, err)
}

// classify keeps typed engine errors and wraps anything else, such as a
// failed commit, as a StorageError.
func classify(op string, err error) error {
	var ve *ValidationError
	var nf *NotFoundError
	var se *StorageError
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &se):
		return err
	default:
		return storageErr(op, err)
	}
}

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func isConstraint(err error) bool { return errors.Is(err, ErrConstraintViolation) }
