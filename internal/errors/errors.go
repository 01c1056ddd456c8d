// Package errors provides centralized error definitions and error handling
// utilities for vmindex. It defines the index error taxonomy, a contextual
// error type for index operations, and classification helpers.
//
// # Error Types
//
// Sentinel errors cover the registry's failure taxonomy:
//   - ErrIndexCorrupted: the on-disk index is unparsable or has a bad version
//   - ErrMachineLocked: a machine's lock is already held elsewhere
//   - ErrLockAcquisition: a freshly minted machine's lock could not be taken
//   - ErrUnlockedWrite: a write was attempted without holding the lock
//
// IndexError wraps a sentinel with machine and provider context for
// diagnostics. NotFoundError is the semantic error used by callers that
// treat absence as a failure (the index itself reports absence as a
// normal non-error result).
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewIndexError("machine is in use", errors.ErrMachineLocked).
//		WithMachineID("0a1b2c").WithProvider("docker")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrMachineLocked) { ... }
//
//	var idxErr *errors.IndexError
//	if errors.As(err, &idxErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Index-related sentinel errors
var (
	// ErrIndexCorrupted indicates that the on-disk index file is not valid
	// JSON or carries an unsupported version. The index must be repaired
	// externally; it is never reset or upgraded automatically.
	ErrIndexCorrupted = New("machine index corrupted")

	// ErrMachineLocked indicates that a machine's lock file is already held,
	// by this process or another. The machine is in use; retry later.
	ErrMachineLocked = New("machine is locked")

	// ErrLockAcquisition indicates that the lock file for a freshly minted
	// machine id could not be created or locked. Since the id was just
	// generated, this signals an environment fault, not contention.
	ErrLockAcquisition = New("failed to acquire machine lock")

	// ErrUnlockedWrite indicates an attempt to persist an existing machine
	// without holding its lock. This is a caller contract violation.
	ErrUnlockedWrite = New("machine write attempted without lock")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain Errors
// -----------------------------------------------------------------------------

// IndexError represents errors raised by machine index operations.
//
// Example:
//
//	err := errors.NewIndexError("machine is in use", errors.ErrMachineLocked)
//	err = err.WithMachineID("0a1b2c").WithProvider("docker")
//	fmt.Println(err) // "index error [machine=0a1b2c, provider=docker]: machine is in use: machine is locked"
type IndexError struct {
	baseError
	MachineID string
	Provider  string
	Path      string
}

// NewIndexError creates a new IndexError.
func NewIndexError(message string, cause error) *IndexError {
	return &IndexError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithMachineID adds a machine id to the error context.
func (e *IndexError) WithMachineID(id string) *IndexError {
	e.MachineID = id
	return e
}

// WithProvider adds a provider tag to the error context.
func (e *IndexError) WithProvider(provider string) *IndexError {
	e.Provider = provider
	return e
}

// WithPath adds a file path to the error context.
func (e *IndexError) WithPath(path string) *IndexError {
	e.Path = path
	return e
}

// WithDetail records an underlying failure alongside the sentinel cause.
// The sentinel remains matchable via errors.Is.
func (e *IndexError) WithDetail(err error) *IndexError {
	if err == nil {
		return e
	}
	if e.cause == nil {
		e.cause = err
		return e
	}
	e.cause = fmt.Errorf("%w: %v", e.cause, err)
	return e
}

// WithSeverity sets the error severity.
func (e *IndexError) WithSeverity(s Severity) *IndexError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *IndexError) WithRetryable(r bool) *IndexError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *IndexError) Error() string {
	var parts []string
	if e.MachineID != "" {
		parts = append(parts, fmt.Sprintf("machine=%s", e.MachineID))
	}
	if e.Provider != "" {
		parts = append(parts, fmt.Sprintf("provider=%s", e.Provider))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "index error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("index error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *IndexError) Is(target error) bool {
	if _, ok := target.(*IndexError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError represents a machine that could not be found. The index
// itself reports absence as a normal result; this type exists for callers
// (such as the CLI) that need to surface absence as a failure.
//
// Example:
//
//	err := errors.NewNotFoundError("machine", "0a1b2c")
//	fmt.Println(err) // "machine '0a1b2c' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// classifiable is implemented by errors that carry their own classification.
type classifiable interface {
	error
	Severity() Severity
	IsRetryable() bool
	IsUserFacing() bool
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Lock contention is the canonical retryable
// condition: the holder will eventually release the machine.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var c classifiable
	if As(err, &c) {
		return c.IsRetryable()
	}

	return Is(err, ErrMachineLocked)
}

// IsUserFacing returns true if the error message is safe to display to
// end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var c classifiable
	if As(err, &c) {
		return c.IsUserFacing()
	}

	var notFound *NotFoundError
	return As(err, &notFound)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that carry no classification.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var c classifiable
	if As(err, &c) {
		return c.Severity()
	}

	return SeverityError
}

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to persist index")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to load machine %s", id)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
