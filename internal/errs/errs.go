// Package errs defines the consensus-core error taxonomy and its
// propagation policy: validation errors drop the offending object,
// transient errors trigger a re-queue, storage/executor errors are
// fatal, and internal invariant violations abort with a diagnostic.
package errs

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ValidationError wraps a rejection of an incoming network object
// (bad signature, bad VRF, failed sortition, unknown pivot/tip, wrong
// level, oversized gas, chain-mismatch cert-votes, ...). The object is
// dropped; the error never propagates past the verifier that produced
// it.
type ValidationError struct {
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("validation: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// NewValidation builds a ValidationError.
func NewValidation(reason string, cause error) *ValidationError {
	return &ValidationError{Reason: reason, Cause: cause}
}

// TransientMissingData signals that the object can't be processed yet
// (pivot/tip not locally available, proposal period not computable,
// anchor epoch not fully synced). Callers must re-queue the object and
// may trigger a bounded-rate sync request.
type TransientMissingData struct {
	Reason string
}

func (e *TransientMissingData) Error() string {
	return fmt.Sprintf("transient: %s", e.Reason)
}

// NewTransient builds a TransientMissingData error.
func NewTransient(reason string) *TransientMissingData {
	return &TransientMissingData{Reason: reason}
}

// StorageError is fatal: the atomic-commit invariant on finalization
// makes recovering from a partial write impossible, so the node must
// not continue running against corrupted storage.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// NewStorage wraps a storage-layer failure as fatal.
func NewStorage(op string, cause error) *StorageError {
	return &StorageError{Op: op, Cause: cause}
}

// ExecutorError is fatal: the executor is the single source of truth
// for state transitions and its failure leaves the node unable to
// make progress safely.
type ExecutorError struct {
	Cause error
}

func (e *ExecutorError) Error() string { return fmt.Sprintf("executor: %v", e.Cause) }
func (e *ExecutorError) Unwrap() error { return e.Cause }

// NewExecutor wraps an executor failure.
func NewExecutor(cause error) *ExecutorError {
	return &ExecutorError{Cause: cause}
}

// InternalInvariantViolation signals an unreachable branch or a
// database inconsistency detected during replay. Panic is the only
// legitimate response.
type InternalInvariantViolation struct {
	Detail string
}

func (e *InternalInvariantViolation) Error() string {
	return fmt.Sprintf("internal invariant violated: %s", e.Detail)
}

// Abort panics with a formatted InternalInvariantViolation. Only call
// this for conditions that should be unreachable.
func Abort(format string, args ...interface{}) {
	panic(&InternalInvariantViolation{Detail: fmt.Sprintf(format, args...)})
}

// Wrap is a thin re-export of cockroachdb/errors.Wrap so callers don't
// need to import both packages for the common case.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf is the formatted variant of Wrap.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// Is delegates to cockroachdb/errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As delegates to cockroachdb/errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }
