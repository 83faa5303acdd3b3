// Package shared contains common error types and utilities.
package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Common domain errors used across the application.
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates that input validation failed
	ErrValidation = errors.New("validation failed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrDependencyFailure indicates that an external dependency failed
	ErrDependencyFailure = errors.New("dependency failure")

	// ErrInternal indicates an internal error
	ErrInternal = errors.New("internal error")
)

// Kind represents a category of error for easier classification and handling.
type Kind int

const (
	// KindUnknown represents an unclassified error
	KindUnknown Kind = iota
	// KindNotFound represents resource not found errors
	KindNotFound
	// KindValidation represents input validation errors
	KindValidation
	// KindTimeout represents timeout errors
	KindTimeout
	// KindDependencyFailure represents external dependency failures
	KindDependencyFailure
	// KindInternal represents internal errors
	KindInternal
	// KindCanceled represents context cancellation
	KindCanceled
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindValidation:
		return "Validation"
	case KindTimeout:
		return "Timeout"
	case KindDependencyFailure:
		return "DependencyFailure"
	case KindInternal:
		return "Internal"
	case KindCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// kindToSentinel maps error kinds to their corresponding sentinel errors.
var kindToSentinel = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindValidation:        ErrValidation,
	KindTimeout:           ErrTimeout,
	KindDependencyFailure: ErrDependencyFailure,
	KindInternal:          ErrInternal,
}

// kindPriorities defines the deterministic order for error classification:
// cancellation and timeouts first, internal errors last.
var kindPriorities = []Kind{
	KindCanceled,
	KindTimeout,
	KindNotFound,
	KindValidation,
	KindDependencyFailure,
	KindInternal,
}

// KindOf returns the Kind of the given error by checking against known
// sentinel errors. It traverses the error chain to find the classification
// using the deterministic priority order. Returns KindUnknown for
// unrecognized errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, kind := range kindPriorities {
		switch kind {
		case KindCanceled:
			if IsCanceled(err) {
				return KindCanceled
			}
		case KindTimeout:
			if IsTimeout(err) {
				return KindTimeout
			}
		default:
			if errors.Is(err, kindToSentinel[kind]) {
				return kind
			}
		}
	}
	return KindUnknown
}

// ErrorOf returns the sentinel error for the given Kind.
// For KindUnknown and KindCanceled, it returns nil.
func ErrorOf(kind Kind) error {
	return kindToSentinel[kind]
}

// MarkKind wraps an error with the sentinel error for the given kind,
// preserving the original error through error wrapping. Marking is
// idempotent: an error that already has the kind is returned unchanged.
func MarkKind(err error, kind Kind) error {
	if err == nil {
		return ErrorOf(kind)
	}
	sentinel := ErrorOf(kind)
	if sentinel == nil {
		return err
	}
	if KindOf(err) == kind {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wrap wraps an error with additional context.
// It returns a new error that formats as "context: err".
// If err is nil, Wrap returns nil.
// If context is empty, returns the original error.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	if context == "" {
		return err
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsCanceled reports whether the error indicates a canceled context.
func IsCanceled(err error) bool {
	return err != nil && errors.Is(err, context.Canceled)
}

// IsTimeout reports whether the error indicates a timeout.
// It checks for context.DeadlineExceeded, net.Error timeouts, and our ErrTimeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsNotFound reports whether the error indicates a resource not found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether the error indicates input validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDependencyFailure reports whether the error indicates an external dependency failure.
func IsDependencyFailure(err error) bool {
	return errors.Is(err, ErrDependencyFailure)
}
